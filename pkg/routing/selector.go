// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// defaultProbeTimeout bounds a single availability probe when no global exec
// timeout is configured.
const defaultProbeTimeout = 2 * time.Second

// probePollInterval is how often an in-flight probe exec is polled.
const probePollInterval = 50 * time.Millisecond

// Prober answers questions about running sidecars.
type Prober interface {
	// ContainerExists reports whether the named container is running.
	ContainerExists(ctx context.Context, name string) bool

	// ToolAvailable reports whether the tool resolves on PATH inside the
	// named container. Best-effort; failures read as unavailable.
	ToolAvailable(ctx context.Context, name, tool string) bool
}

// Selector picks the sidecar kind to run a tool in, preferring kinds whose
// container is up and actually has the tool. Probe results are cached per
// (container, tool) for the lifetime of the selector.
type Selector struct {
	prober        Prober
	containerName func(kind string) string

	mu    sync.Mutex
	cache map[string]bool
}

// NewSelector creates a Selector. containerName maps a sidecar kind to its
// container name within the current session.
func NewSelector(prober Prober, containerName func(kind string) string) *Selector {
	return &Selector{
		prober:        prober,
		containerName: containerName,
		cache:         make(map[string]bool),
	}
}

// SelectKind returns the best sidecar kind for the tool. When no running
// sidecar has the tool, the first preference is returned and higher layers
// surface the error.
func (s *Selector) SelectKind(ctx context.Context, tool string) string {
	prefs := PreferredKinds(tool)
	for _, kind := range prefs {
		name := s.containerName(kind)
		if !s.prober.ContainerExists(ctx, name) {
			continue
		}
		if s.toolAvailableCached(ctx, name, tool) {
			return kind
		}
	}
	return prefs[0]
}

func (s *Selector) toolAvailableCached(ctx context.Context, name, tool string) bool {
	key := name + "\x00" + strings.ToLower(tool)
	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return cached
	}

	avail := s.prober.ToolAvailable(ctx, name, tool)
	s.mu.Lock()
	s.cache[key] = avail
	s.mu.Unlock()
	return avail
}

// RuntimeProber probes sidecars through the container runtime.
type RuntimeProber struct {
	rt      runtime.Runtime
	timeout time.Duration
}

// NewRuntimeProber creates a prober. A zero timeout selects the default.
func NewRuntimeProber(rt runtime.Runtime, timeout time.Duration) *RuntimeProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &RuntimeProber{rt: rt, timeout: timeout}
}

// ContainerExists reports whether the named container is running.
func (p *RuntimeProber) ContainerExists(ctx context.Context, name string) bool {
	running, err := p.rt.IsWorkloadRunning(ctx, name)
	if err != nil {
		logger.Debugf("Probe of container %s failed: %v", name, err)
		return false
	}
	return running
}

// ToolAvailable runs `command -v <tool>` inside the container and waits for
// it to exit, bounded by the probe timeout.
func (p *RuntimeProber) ToolAvailable(ctx context.Context, name, tool string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	proc, err := p.rt.ExecWorkload(probeCtx, name, runtime.ExecSpec{
		Cmd: []string{"/bin/sh", "-c", fmt.Sprintf("command -v %s >/dev/null 2>&1", tool)},
	})
	if err != nil {
		logger.Debugf("Probe exec for %s in %s failed: %v", tool, name, err)
		return false
	}
	defer proc.Close()

	ticker := time.NewTicker(probePollInterval)
	defer ticker.Stop()
	for {
		code, exited, err := proc.Poll(probeCtx)
		if err != nil {
			return false
		}
		if exited {
			return code == 0
		}
		select {
		case <-probeCtx.Done():
			return false
		case <-ticker.C:
		}
	}
}
