// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import "sync"

// ExecRegistry tracks in-flight exec ids and the container each runs in, so
// the signal endpoint can target them.
type ExecRegistry struct {
	mu    sync.Mutex
	execs map[string]string
}

// NewExecRegistry creates an empty registry.
func NewExecRegistry() *ExecRegistry {
	return &ExecRegistry{execs: make(map[string]string)}
}

// Register records an exec id running in the named container.
func (r *ExecRegistry) Register(execID, container string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs[execID] = container
}

// Lookup returns the container for an exec id.
func (r *ExecRegistry) Lookup(execID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	container, ok := r.execs[execID]
	return container, ok
}

// Remove drops an exec id once the execution finishes.
func (r *ExecRegistry) Remove(execID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.execs, execID)
}
