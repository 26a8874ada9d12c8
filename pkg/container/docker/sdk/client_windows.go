// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sdk

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/docker/docker/client"

	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// Windows named pipe paths
const (
	// DockerDesktopWindowsPipePath is the Docker Desktop named pipe path on Windows
	DockerDesktopWindowsPipePath = `\\.\pipe\docker_engine`

	// PodmanDesktopWindowsPipePath is the Podman Desktop named pipe path on Windows
	PodmanDesktopWindowsPipePath = `\\.\pipe\podman-api`
)

// Windows named pipe connection timeout
const pipeConnectionTimeout = 2 * time.Second

// newPlatformClient creates a Docker client using Windows named pipes
func newPlatformClient(pipePath string) (*http.Client, []client.Opt) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				dialCtx, cancel := context.WithTimeout(ctx, pipeConnectionTimeout)
				defer cancel()
				return winio.DialPipeContext(dialCtx, pipePath)
			},
		},
	}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
		client.WithHost("npipe://" + pipePath),
	}

	return httpClient, opts
}

// findContainerSocket finds a container named pipe on Windows
func findContainerSocket(rt runtime.Type) (string, runtime.Type, error) {
	probe := func(pipePath string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), pipeConnectionTimeout)
		defer cancel()
		conn, err := winio.DialPipeContext(ctx, pipePath)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}

	if customPipePath := os.Getenv(PodmanSocketEnv); customPipePath != "" {
		if probe(customPipePath) {
			return customPipePath, runtime.TypePodman, nil
		}
		return "", runtime.TypePodman, runtime.ErrRuntimeNotFound
	}

	if customPipePath := os.Getenv(DockerSocketEnv); customPipePath != "" {
		if probe(customPipePath) {
			return customPipePath, runtime.TypeDocker, nil
		}
		return "", runtime.TypeDocker, runtime.ErrRuntimeNotFound
	}

	if rt == runtime.TypePodman && probe(PodmanDesktopWindowsPipePath) {
		logger.Debugf("Found Podman pipe at %s", PodmanDesktopWindowsPipePath)
		return PodmanDesktopWindowsPipePath, runtime.TypePodman, nil
	}

	if rt == runtime.TypeDocker && probe(DockerDesktopWindowsPipePath) {
		logger.Debugf("Found Docker pipe at %s", DockerDesktopWindowsPipePath)
		return DockerDesktopWindowsPipePath, runtime.TypeDocker, nil
	}

	return "", "", runtime.ErrRuntimeNotFound
}
