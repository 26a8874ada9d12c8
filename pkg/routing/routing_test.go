// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteTool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool string
		want string
	}{
		{"cargo", KindRust},
		{"rustc", KindRust},
		{"node", KindNode},
		{"tsc", KindNode},
		{"ts-node", KindNode},
		{"python3", KindPython},
		{"uvx", KindPython},
		{"gcc", KindCCPP},
		{"pkg-config", KindCCPP},
		{"go", KindGo},
		{"gofmt", KindGo},
		{"CARGO", KindRust},
		{"frobnicator", KindNode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RouteTool(tt.tool), "tool %q", tt.tool)
	}
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind string
		tool string
		want bool
	}{
		{"cargo in rust", KindRust, "cargo", true},
		{"node not in rust", KindRust, "node", false},
		{"make in rust", KindRust, "make", true},
		{"make in node", KindNode, "make", true},
		{"make in c-cpp", KindCCPP, "make", true},
		{"cargo not in c-cpp", KindCCPP, "cargo", false},
		{"pip in python", KindPython, "pip", true},
		{"gofmt in go", KindGo, "gofmt", true},
		{"case insensitive", KindGo, "GoFmt", true},
		{"unknown kind", "haskell", "ghc", false},
		{"arbitrary binary", KindNode, "bash", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Allowed(tt.kind, tt.tool))
		})
	}
}

func TestAllowlistEnvExtension(t *testing.T) {
	t.Setenv("AIFO_TOOLEXEC_ALLOWLIST_C_CPP", "bear, Ccache")

	assert.True(t, Allowed(KindCCPP, "bear"))
	assert.True(t, Allowed(KindCCPP, "ccache"))
	assert.False(t, Allowed(KindRust, "bear"))
}

func TestPreferredKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{KindRust}, PreferredKinds("cargo"))
	assert.Equal(t, []string{KindNode}, PreferredKinds("npx"))
	assert.Equal(t,
		[]string{KindCCPP, KindRust, KindGo, KindNode, KindPython},
		PreferredKinds("make"))
}

type fakeProber struct {
	exists    map[string]bool
	available map[string]bool
	probes    int
}

func (f *fakeProber) ContainerExists(_ context.Context, name string) bool {
	return f.exists[name]
}

func (f *fakeProber) ToolAvailable(_ context.Context, name, tool string) bool {
	f.probes++
	return f.available[name+"/"+tool]
}

func TestSelectKind(t *testing.T) {
	t.Parallel()

	nameFor := func(kind string) string { return "aifo-tc-" + kind + "-s1" }

	t.Run("dev tool prefers running sidecar with the tool", func(t *testing.T) {
		t.Parallel()
		prober := &fakeProber{
			exists:    map[string]bool{"aifo-tc-rust-s1": true},
			available: map[string]bool{"aifo-tc-rust-s1/make": true},
		}
		sel := NewSelector(prober, nameFor)
		assert.Equal(t, KindRust, sel.SelectKind(context.Background(), "make"))
	})

	t.Run("falls back to first preference when nothing runs", func(t *testing.T) {
		t.Parallel()
		sel := NewSelector(&fakeProber{}, nameFor)
		assert.Equal(t, KindCCPP, sel.SelectKind(context.Background(), "make"))
		assert.Equal(t, KindRust, sel.SelectKind(context.Background(), "cargo"))
	})

	t.Run("probe results are cached", func(t *testing.T) {
		t.Parallel()
		prober := &fakeProber{
			exists:    map[string]bool{"aifo-tc-c-cpp-s1": true},
			available: map[string]bool{"aifo-tc-c-cpp-s1/make": true},
		}
		sel := NewSelector(prober, nameFor)
		sel.SelectKind(context.Background(), "make")
		sel.SelectKind(context.Background(), "make")
		assert.Equal(t, 1, prober.probes)
	})
}
