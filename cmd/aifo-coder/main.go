// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the aifo-coder CLI.
package main

import (
	"os"

	"github.com/aifo-ai/aifo-coder/cmd/aifo-coder/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
