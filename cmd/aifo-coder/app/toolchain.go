// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aifo-ai/aifo-coder/pkg/container/docker"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
	"github.com/aifo-ai/aifo-coder/pkg/process"
	"github.com/aifo-ai/aifo-coder/pkg/routing"
	"github.com/aifo-ai/aifo-coder/pkg/sidecar"
)

func toolchainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolchain",
		Short: "Manage toolchain sidecar containers",
		Long: `Manage the per-session language toolchain sidecar containers without
running the proxy. Useful for pre-pulling images and for cleaning up
sidecars left behind by a crashed session.`,
	}

	cmd.AddCommand(toolchainStartCmd())
	cmd.AddCommand(toolchainStopCmd())

	return cmd
}

func toolchainStartCmd() *cobra.Command {
	var kinds []string
	var workspace string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "start --session ID --toolchain KIND [--toolchain KIND ...]",
		Short: "Start toolchain sidecars for a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			if len(kinds) == 0 {
				return fmt.Errorf("at least one --toolchain is required")
			}
			normalized := make([]string, 0, len(kinds))
			for _, k := range kinds {
				normalized = append(normalized, sidecar.NormalizeKind(k))
			}
			if workspace == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to determine workspace directory: %w", err)
				}
				workspace = wd
			}

			rt, err := docker.NewClient(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create container runtime client: %w", err)
			}
			mgr := sidecar.NewManager(rt, sessionID, workspace)
			if err := mgr.StartSession(cmd.Context(), normalized); err != nil {
				return fmt.Errorf("failed to start toolchain sidecars: %w", err)
			}
			for _, k := range normalized {
				logger.Infof("Started sidecar %s", mgr.ContainerNameFor(k))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&kinds, "toolchain", nil,
		"Toolchain sidecar kind to start (repeatable): rust, node, python, c-cpp, go")
	cmd.Flags().StringVar(&workspace, "workspace", "",
		"Host workspace directory mounted into sidecars (default: current directory)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier")

	return cmd
}

func toolchainStopCmd() *cobra.Command {
	var kinds []string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "stop --session ID [--toolchain KIND ...]",
		Short: "Stop and remove toolchain sidecars for a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			stop := kinds
			if len(stop) == 0 {
				stop = routing.Kinds
			}
			normalized := make([]string, 0, len(stop))
			for _, k := range stop {
				normalized = append(normalized, sidecar.NormalizeKind(k))
			}

			// A proxy left behind by a crashed agent holds the session's
			// listener; terminate it before removing its sidecars.
			if pid, err := process.ReadPIDFile(sessionID); err == nil {
				if alive, _ := process.FindProcess(pid); alive {
					logger.Infof("Stopping session proxy (pid %d)", pid)
					if err := process.KillProcess(pid); err != nil {
						logger.Warnf("Failed to stop session proxy: %v", err)
					}
				}
				_ = process.RemovePIDFile(sessionID)
			}

			rt, err := docker.NewClient(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create container runtime client: %w", err)
			}
			mgr := sidecar.NewManager(rt, sessionID, "")
			if err := mgr.StopSession(cmd.Context(), normalized); err != nil {
				return fmt.Errorf("failed to stop toolchain sidecars: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&kinds, "toolchain", nil,
		"Toolchain sidecar kind to stop (repeatable, default: all kinds)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier")

	return cmd
}
