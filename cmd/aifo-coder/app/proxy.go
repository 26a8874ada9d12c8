// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aifo-ai/aifo-coder/pkg/config"
	"github.com/aifo-ai/aifo-coder/pkg/container/docker"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
	"github.com/aifo-ai/aifo-coder/pkg/process"
	"github.com/aifo-ai/aifo-coder/pkg/proxy"
	"github.com/aifo-ai/aifo-coder/pkg/session"
	"github.com/aifo-ai/aifo-coder/pkg/sidecar"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy [flags]",
	Short: "Start toolchain sidecars and the tool execution proxy",
	Long: `Start the language toolchain sidecars for a session and serve the tool
execution proxy until interrupted.

The proxy listens on a loopback TCP port (or a Unix socket when
AIFO_TOOLEEXEC_USE_UNIX=1 on Linux) and prints the AIFO_TOOLEEXEC_URL and
AIFO_TOOLEEXEC_TOKEN values the agent environment needs. Tool shims inside
the agent container use those to route compiler, interpreter, and package
manager invocations into the right sidecar.

Examples:

	aifo-coder proxy --toolchain rust
	aifo-coder proxy --toolchain c-cpp --toolchain python --workspace /src`,
	RunE: proxyCmdFunc,
}

var (
	proxyToolchains []string
	proxyWorkspace  string
	proxySessionID  string
)

func init() {
	proxyCmd.Flags().StringArrayVar(&proxyToolchains, "toolchain", nil,
		"Toolchain sidecar kind to start (repeatable): rust, node, python, c-cpp, go")
	proxyCmd.Flags().StringVar(&proxyWorkspace, "workspace", "",
		"Host workspace directory mounted into sidecars (default: current directory)")
	proxyCmd.Flags().StringVar(&proxySessionID, "session", "",
		"Session identifier used in container and network names (default: random)")
}

func proxyCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, stopSignal := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignal()

	if len(proxyToolchains) == 0 {
		return fmt.Errorf("at least one --toolchain is required")
	}
	kinds := make([]string, 0, len(proxyToolchains))
	for _, k := range proxyToolchains {
		kinds = append(kinds, sidecar.NormalizeKind(k))
	}

	workspace := proxyWorkspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine workspace directory: %w", err)
		}
		workspace = wd
	}

	sessionID := proxySessionID
	if sessionID == "" {
		sessionID = uuid.NewString()[:8]
	}

	if pid, err := process.ReadPIDFile(sessionID); err == nil {
		if alive, _ := process.FindProcess(pid); alive {
			return fmt.Errorf("session %s already has a running proxy (pid %d)", sessionID, pid)
		}
		_ = process.RemovePIDFile(sessionID)
	}

	sess, err := session.New(sessionID, kinds)
	if err != nil {
		return err
	}

	if err := process.WriteCurrentPIDFile(sess.ID()); err != nil {
		logger.Warnf("Failed to write session PID file: %v", err)
	} else {
		defer func() {
			if err := process.RemovePIDFile(sess.ID()); err != nil {
				logger.Warnf("Failed to remove session PID file: %v", err)
			}
		}()
	}

	rt, err := docker.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create container runtime client: %w", err)
	}

	mgr := sidecar.NewManager(rt, sess.ID(), workspace)
	logger.Infof("Starting toolchain sidecars for session %s: %v", sess.ID(), kinds)
	if err := mgr.StartSession(ctx, kinds); err != nil {
		return fmt.Errorf("failed to start toolchain sidecars: %w", err)
	}
	defer func() {
		if err := mgr.StopSession(cmd.Context(), kinds); err != nil {
			logger.Warnf("Failed to stop toolchain sidecars: %v", err)
		}
	}()

	srv, err := proxy.NewServer(sess, rt, mgr, config.Load())
	if err != nil {
		return fmt.Errorf("failed to start proxy listener: %w", err)
	}

	fmt.Printf("AIFO_TOOLEEXEC_URL=%s\n", srv.URL())
	fmt.Printf("AIFO_TOOLEEXEC_TOKEN=%s\n", sess.Token())

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down proxy...")
		srv.Shutdown()
	}()

	srv.Serve(ctx)
	return nil
}
