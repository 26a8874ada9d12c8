// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sdk provides a factory method for creating a Docker client.
package sdk

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// Environment variable names
const (
	// DockerSocketEnv is the environment variable for a custom Docker socket path
	DockerSocketEnv = "AIFO_DOCKER_SOCKET"
	// PodmanSocketEnv is the environment variable for a custom Podman socket path
	PodmanSocketEnv = "AIFO_PODMAN_SOCKET"
)

// Common socket paths
const (
	// PodmanSocketPath is the default Podman socket path
	PodmanSocketPath = "/var/run/podman/podman.sock"
	// PodmanXDGRuntimeSocketPath is the XDG runtime Podman socket path
	PodmanXDGRuntimeSocketPath = "podman/podman.sock"
	// DockerSocketPath is the default Docker socket path
	DockerSocketPath = "/var/run/docker.sock"
	// DockerDesktopMacSocketPath is the Docker Desktop socket path on macOS
	DockerDesktopMacSocketPath = ".docker/run/docker.sock"
)

var supportedSocketPaths = []runtime.Type{runtime.TypePodman, runtime.TypeDocker}

// NewDockerClient creates a new container client, trying Podman first and
// Docker as fallback.
func NewDockerClient(ctx context.Context) (*client.Client, string, runtime.Type, error) {
	var lastErr error

	for _, sp := range supportedSocketPaths {
		socketPath, runtimeType, err := findContainerSocket(sp)
		if err != nil {
			logger.Debugf("Failed to find socket for %s: %v", sp, err)
			lastErr = err
			continue
		}

		c, err := newClientWithSocketPath(ctx, socketPath)
		if err != nil {
			lastErr = err
			logger.Debugf("Failed to create client for %s: %v", sp, err)
			continue
		}

		logger.Debugf("Successfully connected to %s runtime", runtimeType)
		return c, socketPath, runtimeType, nil
	}

	if lastErr != nil {
		return nil, "", "", fmt.Errorf("no supported container runtime available: %w", lastErr)
	}
	return nil, "", "", runtime.ErrRuntimeNotFound
}

// newClientWithSocketPath creates a new container client with a specific socket path
func newClientWithSocketPath(ctx context.Context, socketPath string) (*client.Client, error) {
	_, opts := newPlatformClient(socketPath)

	dockerClient, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	// Make sure we can ping the server.
	if _, err := dockerClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Docker server at %s: %w", socketPath, err)
	}

	return dockerClient, nil
}
