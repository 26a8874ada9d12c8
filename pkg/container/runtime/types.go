// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package runtime defines the container runtime abstraction the proxy and
// sidecar lifecycle are built on. The Docker implementation lives in the
// sibling docker package; tests use in-memory fakes.
package runtime

import (
	"context"
	"io"
	"time"
)

// Type represents the type of container runtime.
type Type string

const (
	// TypeDocker represents the Docker runtime.
	TypeDocker Type = "docker"
	// TypePodman represents the Podman runtime.
	TypePodman Type = "podman"
)

// ContainerInfo represents information about a container.
type ContainerInfo struct {
	// ID is the container ID.
	ID string
	// Name is the container name.
	Name string
	// Image is the container image.
	Image string
	// State is the container state (running, exited, ...).
	State string
	// Created is the container creation timestamp.
	Created time.Time
	// Labels is the container labels.
	Labels map[string]string
}

// Mount represents a bind mount into a workload.
type Mount struct {
	// Source is the source path on the host.
	Source string
	// Target is the target path in the container.
	Target string
	// ReadOnly indicates if the mount is read-only.
	ReadOnly bool
}

// DeployWorkloadOptions configures workload creation.
type DeployWorkloadOptions struct {
	// Command overrides the image entrypoint.
	Command []string
	// EnvVars is the environment for the workload.
	EnvVars map[string]string
	// Labels to apply to the container.
	Labels map[string]string
	// Mounts are bind mounts into the container.
	Mounts []Mount
	// NetworkName attaches the workload to an existing network.
	NetworkName string
	// User is the uid:gid the workload runs as ("" keeps the image default).
	User string
	// WorkingDir is the initial working directory.
	WorkingDir string
}

// ExecSpec describes a command execution inside a running workload.
type ExecSpec struct {
	// Cmd is the argv to run.
	Cmd []string
	// WorkingDir is the directory the command runs in.
	WorkingDir string
	// Env is extra environment entries in KEY=VALUE form.
	Env []string
	// User is the uid:gid to run as ("" keeps the workload default).
	User string
	// TTY allocates a pseudo-terminal; stdout and stderr arrive merged.
	TTY bool
}

// ExecProcess is a handle on one in-flight exec. The supervisor polls it for
// completion rather than blocking, so a deadline can be enforced.
type ExecProcess interface {
	// ID returns the runtime's exec id.
	ID() string

	// Stdout returns the demultiplexed stdout stream. Under TTY it carries
	// the merged output and Stderr is empty.
	Stdout() io.Reader

	// Stderr returns the demultiplexed stderr stream.
	Stderr() io.Reader

	// Poll reports whether the process has exited and, if so, its exit
	// code. It never blocks on the process.
	Poll(ctx context.Context) (exitCode int, exited bool, err error)

	// Close releases the attached streams. It does not stop the process.
	Close() error
}

// Runtime defines the interface for container runtimes.
type Runtime interface {
	// IsRunning checks the health of the container runtime itself.
	IsRunning(ctx context.Context) error

	// DeployWorkload creates and starts a workload, returning its ID. An
	// existing container with the same name is reused when running.
	DeployWorkload(ctx context.Context, image, name string, options *DeployWorkloadOptions) (string, error)

	// StopWorkload gracefully stops a running workload.
	StopWorkload(ctx context.Context, name string) error

	// RemoveWorkload removes a workload, force-removing if needed.
	RemoveWorkload(ctx context.Context, name string) error

	// IsWorkloadRunning checks if the named workload is currently running.
	IsWorkloadRunning(ctx context.Context, name string) (bool, error)

	// GetWorkloadInfo returns information about the named workload.
	GetWorkloadInfo(ctx context.Context, name string) (ContainerInfo, error)

	// ListWorkloads returns all containers, running or not, matching every
	// given label filter (KEY=VALUE form).
	ListWorkloads(ctx context.Context, labelFilters ...string) ([]ContainerInfo, error)

	// ImageExists checks whether an image is available locally.
	ImageExists(ctx context.Context, image string) (bool, error)

	// PullImage pulls an image from a registry.
	PullImage(ctx context.Context, image string) error

	// CreateNetwork creates a bridge network if it does not already exist.
	CreateNetwork(ctx context.Context, name string) error

	// RemoveNetwork removes a network. Missing networks are not an error.
	RemoveNetwork(ctx context.Context, name string) error

	// ExecWorkload starts a command inside a running workload and returns a
	// handle on its streams and exit state.
	ExecWorkload(ctx context.Context, name string, spec ExecSpec) (ExecProcess, error)

	// SignalGroup delivers a signal to the process group recorded for the
	// given exec id inside the workload. Best-effort.
	SignalGroup(ctx context.Context, name, execID, signal string) error
}
