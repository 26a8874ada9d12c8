// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/labels"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// Manager owns the sidecar containers and the shared network of one session.
type Manager struct {
	rt           runtime.Runtime
	sessionID    string
	workspaceDir string
}

// NewManager creates a Manager for the given session. workspaceDir is the
// host directory mounted at /workspace in every sidecar.
func NewManager(rt runtime.Runtime, sessionID, workspaceDir string) *Manager {
	return &Manager{rt: rt, sessionID: sessionID, workspaceDir: workspaceDir}
}

// ContainerNameFor returns the sidecar container name for a kind.
func (m *Manager) ContainerNameFor(kind string) string {
	return ContainerName(NormalizeKind(kind), m.sessionID)
}

// NetworkName returns the session network name.
func (m *Manager) NetworkName() string {
	return NetworkName(m.sessionID)
}

// IsKindRunning reports whether the sidecar for a kind is currently running.
func (m *Manager) IsKindRunning(ctx context.Context, kind string) bool {
	running, err := m.rt.IsWorkloadRunning(ctx, m.ContainerNameFor(kind))
	if err != nil {
		logger.Debugf("Sidecar state check for %s failed: %v", kind, err)
		return false
	}
	return running
}

// StartSession creates the session network and starts one sidecar per
// requested kind, pulling missing images. Sidecars start concurrently.
func (m *Manager) StartSession(ctx context.Context, kinds []string) error {
	network := m.NetworkName()
	if err := m.rt.CreateNetwork(ctx, network); err != nil {
		return fmt.Errorf("failed to create session network: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := NormalizeKind(kind)
		g.Go(func() error {
			return m.startSidecar(gctx, kind, network)
		})
	}
	return g.Wait()
}

func (m *Manager) startSidecar(ctx context.Context, kind, network string) error {
	image := DefaultImage(kind)
	exists, err := m.rt.ImageExists(ctx, image)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.rt.PullImage(ctx, image); err != nil {
			return err
		}
	}

	name := m.ContainerNameFor(kind)
	logger.Infof("Starting %s sidecar %s (image %s)", kind, name, image)
	containerLabels := map[string]string{}
	labels.AddSidecarLabels(containerLabels, name, m.sessionID, kind)
	_, err = m.rt.DeployWorkload(ctx, image, name, &runtime.DeployWorkloadOptions{
		// Keep the container alive; all work happens via exec.
		Command: []string{"sleep", "infinity"},
		Labels:  containerLabels,
		Mounts: []runtime.Mount{
			{Source: m.workspaceDir, Target: WorkspaceDir},
		},
		NetworkName: network,
		WorkingDir:  WorkspaceDir,
	})
	return err
}

// StopSession stops and removes the session's sidecars and network. Sidecars
// are discovered by label so a teardown with a different kind set than the
// start still removes everything the session created. Best-effort: the first
// error is reported after all teardown is attempted.
func (m *Manager) StopSession(ctx context.Context, kinds []string) error {
	var firstErr error
	removed := make(map[string]bool, len(kinds))
	for _, kind := range kinds {
		name := m.ContainerNameFor(kind)
		removed[name] = true
		if err := m.removeSidecar(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	leftovers, err := m.rt.ListWorkloads(ctx, labels.ManagedFilter(), labels.SessionFilter(m.sessionID))
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		for _, info := range leftovers {
			if removed[info.Name] {
				continue
			}
			logger.Infof("Removing leftover %s sidecar %s", labels.GetKind(info.Labels), info.Name)
			if err := m.removeSidecar(ctx, info.Name); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := m.rt.RemoveNetwork(ctx, m.NetworkName()); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (m *Manager) removeSidecar(ctx context.Context, name string) error {
	var firstErr error
	if err := m.rt.StopWorkload(ctx, name); err != nil {
		firstErr = err
	}
	if err := m.rt.RemoveWorkload(ctx, name); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
