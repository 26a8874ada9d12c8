// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the aifo-coder command-line application.
package app

import (
	"github.com/spf13/cobra"

	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "aifo-coder",
	DisableAutoGenTag: true,
	Short:             "aifo-coder runs coding-agent toolchain commands inside container sidecars",
	Long: `aifo-coder brokers tool execution for coding agents. It starts language
toolchain sidecar containers for a session, then exposes a local HTTP proxy
that the agent's tool shims call to run compilers, package managers, and
interpreters inside the right sidecar.

Under the hood it is a thin client for the Docker/Podman socket API: sidecars
are plain containers sharing the workspace bind mount, and every proxied
command becomes a container exec with process-group supervision.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		logger.Initialize(debug)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the aifo-coder CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")

	rootCmd.AddCommand(proxyCmd)
	rootCmd.AddCommand(toolchainCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
