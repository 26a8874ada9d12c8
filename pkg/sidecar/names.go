// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sidecar manages the per-session toolchain sidecar containers: their
// naming, images, shared network, and the exec command lines run inside them.
package sidecar

import (
	"fmt"
	"strings"
)

// kindAliases maps user-facing toolchain names to canonical kinds.
var kindAliases = map[string]string{
	"rust":       "rust",
	"node":       "node",
	"ts":         "node",
	"typescript": "node",
	"python":     "python",
	"py":         "python",
	"c":          "c-cpp",
	"cpp":        "c-cpp",
	"c-cpp":      "c-cpp",
	"c_cpp":      "c-cpp",
	"c++":        "c-cpp",
	"go":         "go",
	"golang":     "go",
}

// NormalizeKind canonicalizes a toolchain kind name. Unknown names are
// lower-cased and passed through.
func NormalizeKind(kind string) string {
	lower := strings.ToLower(kind)
	if canon, ok := kindAliases[lower]; ok {
		return canon
	}
	return lower
}

// ContainerName returns the sidecar container name for a kind in a session.
func ContainerName(kind, sessionID string) string {
	return fmt.Sprintf("aifo-tc-%s-%s", kind, sessionID)
}

// NetworkName returns the per-session network name shared by the agent and
// its sidecars.
func NetworkName(sessionID string) string {
	return fmt.Sprintf("aifo-net-%s", sessionID)
}
