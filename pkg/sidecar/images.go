// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"fmt"
	"os"
	"strings"
)

// Environment overrides for toolchain images.
const (
	EnvRustImage   = "AIFO_RUST_TOOLCHAIN_IMAGE"
	EnvRustVersion = "AIFO_RUST_TOOLCHAIN_VERSION"
	EnvNodeImage   = "AIFO_NODE_TOOLCHAIN_IMAGE"
	EnvNodeVersion = "AIFO_NODE_TOOLCHAIN_VERSION"
)

// defaultImages are the per-kind toolchain images.
var defaultImages = map[string]string{
	"rust":   "aifo-coder-toolchain-rust:latest",
	"node":   "aifo-coder-toolchain-node:latest",
	"python": "python:3.12-slim",
	"c-cpp":  "aifo-coder-toolchain-cpp:latest",
	"go":     "golang:1.22-bookworm",
}

// imageVersionFormats build a versioned image reference per kind.
var imageVersionFormats = map[string]string{
	"rust":   "aifo-coder-toolchain-rust:%s",
	"node":   "aifo-coder-toolchain-node:%s",
	"python": "python:%s-slim",
	"c-cpp":  "aifo-coder-toolchain-cpp:%s",
	"go":     "golang:%s-bookworm",
}

// DefaultImage resolves the image for a toolchain kind, honoring explicit
// image and version overrides from the environment.
func DefaultImage(kind string) string {
	k := NormalizeKind(kind)

	switch k {
	case "rust":
		if img := strings.TrimSpace(os.Getenv(EnvRustImage)); img != "" {
			return img
		}
		if v := strings.TrimSpace(os.Getenv(EnvRustVersion)); v != "" {
			return fmt.Sprintf(imageVersionFormats[k], v)
		}
	case "node":
		if img := strings.TrimSpace(os.Getenv(EnvNodeImage)); img != "" {
			return img
		}
		if v := strings.TrimSpace(os.Getenv(EnvNodeVersion)); v != "" {
			return fmt.Sprintf(imageVersionFormats[k], v)
		}
	}

	if img, ok := defaultImages[k]; ok {
		return img
	}
	return "node:22-bookworm-slim"
}

// ImageForVersion resolves a versioned image reference for a kind.
func ImageForVersion(kind, version string) string {
	k := NormalizeKind(kind)
	if format, ok := imageVersionFormats[k]; ok {
		return fmt.Sprintf(format, version)
	}
	return DefaultImage(k)
}
