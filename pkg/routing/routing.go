// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package routing maps tool names to toolchain sidecar kinds and enforces
// per-kind tool allowlists.
package routing

import (
	"os"
	"slices"
	"strings"

	"github.com/aifo-ai/aifo-coder/pkg/config"
)

// Sidecar kinds.
const (
	KindRust   = "rust"
	KindNode   = "node"
	KindPython = "python"
	KindCCPP   = "c-cpp"
	KindGo     = "go"
)

// Kinds lists every supported sidecar kind.
var Kinds = []string{KindRust, KindNode, KindPython, KindCCPP, KindGo}

// devTools are generic build tools that may exist across several sidecars.
var devTools = []string{
	"make", "cmake", "ninja", "pkg-config",
	"gcc", "g++", "clang", "clang++", "cc", "c++",
}

var allowRust = append([]string{"cargo", "rustc"}, devTools...)

var allowNode = append([]string{
	"node", "npm", "npx", "yarn", "pnpm", "deno", "bun", "tsc", "ts-node",
}, devTools...)

var allowPython = append([]string{
	"python", "python3", "pip", "pip3", "uv", "uvx",
}, devTools...)

var allowCCPP = []string{
	"gcc", "g++", "cc", "c++", "clang", "clang++",
	"make", "cmake", "ninja", "pkg-config",
}

var allowGo = append([]string{"go", "gofmt"}, devTools...)

// Allowlist returns the tool allowlist for a sidecar kind, including any
// extension from AIFO_TOOLEXEC_ALLOWLIST_<KIND>. Unknown kinds get an empty
// list.
func Allowlist(kind string) []string {
	var base []string
	switch kind {
	case KindRust:
		base = allowRust
	case KindNode:
		base = allowNode
	case KindPython:
		base = allowPython
	case KindCCPP:
		base = allowCCPP
	case KindGo:
		base = allowGo
	default:
		return nil
	}

	extra := os.Getenv(allowlistEnvKey(kind))
	if extra == "" {
		return base
	}
	out := slices.Clone(base)
	for _, t := range config.SplitList(extra, 64) {
		t = strings.ToLower(t)
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// allowlistEnvKey derives the extension variable name for a kind, e.g.
// "c-cpp" becomes AIFO_TOOLEXEC_ALLOWLIST_C_CPP.
func allowlistEnvKey(kind string) string {
	k := strings.ToUpper(strings.ReplaceAll(kind, "-", "_"))
	return "AIFO_TOOLEXEC_ALLOWLIST_" + k
}

// Allowed reports whether the tool is permitted in the given sidecar kind.
// Matching is case-insensitive on the tool name.
func Allowed(kind, tool string) bool {
	return slices.Contains(Allowlist(kind), strings.ToLower(tool))
}

// RouteTool maps a tool name to its primary sidecar kind. Unknown tools fall
// through to the node sidecar, whose allowlist then rejects them.
func RouteTool(tool string) string {
	switch strings.ToLower(tool) {
	case "cargo", "rustc":
		return KindRust
	case "node", "npm", "npx", "yarn", "pnpm", "deno", "bun", "tsc", "ts-node":
		return KindNode
	case "python", "python3", "pip", "pip3", "uv", "uvx":
		return KindPython
	case "gcc", "g++", "clang", "clang++", "make", "cmake", "ninja", "pkg-config":
		return KindCCPP
	case "go", "gofmt":
		return KindGo
	default:
		return KindNode
	}
}

// IsDevTool reports whether the tool is a generic build tool shared across
// allowlists.
func IsDevTool(tool string) bool {
	return slices.Contains(devTools, strings.ToLower(tool))
}

// PreferredKinds returns the sidecar kinds to try for a tool, in order. Dev
// tools may live in several images; everything else has a single home.
func PreferredKinds(tool string) []string {
	if IsDevTool(tool) {
		return []string{KindCCPP, KindRust, KindGo, KindNode, KindPython}
	}
	return []string{RouteTool(tool)}
}
