// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package docker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// pgidDir is where streaming execs record their process group id, one
// subdirectory per exec id.
const pgidDir = "/home/coder/.aifo-exec"

// ExecWorkload starts a command inside a running workload and returns a handle
// that exposes its output streams and exit state.
func (c *Client) ExecWorkload(ctx context.Context, name string, spec runtime.ExecSpec) (runtime.ExecProcess, error) {
	running, err := c.IsWorkloadRunning(ctx, name)
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, runtime.NewContainerError(runtime.ErrContainerNotRunning, name, "")
	}

	resp, err := c.client.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          spec.Cmd,
		WorkingDir:   spec.WorkingDir,
		Env:          spec.Env,
		User:         spec.User,
		Tty:          spec.TTY,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, runtime.NewContainerError(runtime.ErrExecFailed, name, fmt.Sprintf("failed to create exec: %v", err))
	}

	attach, err := c.client.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{Tty: spec.TTY})
	if err != nil {
		return nil, runtime.NewContainerError(runtime.ErrExecFailed, name, fmt.Sprintf("failed to attach exec: %v", err))
	}

	proc := &execProcess{
		client: c,
		id:     resp.ID,
		attach: attach,
	}
	if spec.TTY {
		// TTY output arrives merged on a single stream.
		proc.stdout = attach.Reader
		proc.stderr = strings.NewReader("")
	} else {
		outR, outW := io.Pipe()
		errR, errW := io.Pipe()
		proc.stdout = outR
		proc.stderr = errR
		go func() {
			_, copyErr := stdcopy.StdCopy(outW, errW, attach.Reader)
			outW.CloseWithError(copyErr)
			errW.CloseWithError(copyErr)
		}()
	}
	return proc, nil
}

// SignalGroup delivers a signal to the process group recorded for the given
// exec id. The pgid was written by the setsid wrapper at spawn time; if the
// file is missing the group is assumed gone already.
func (c *Client) SignalGroup(ctx context.Context, name, execID, signal string) error {
	script := fmt.Sprintf(
		`pg=%s/%s/pgid; if [ -f "$pg" ]; then n=$(cat "$pg" 2>/dev/null); case "$n" in ''|*[!0-9]*) exit 0;; esac; kill -s %s -- -"$n" 2>/dev/null || true; fi`,
		pgidDir, execID, signal,
	)

	resp, err := c.client.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          []string{"sh", "-c", script},
		AttachStdout: false,
		AttachStderr: false,
	})
	if err != nil {
		return runtime.NewContainerError(runtime.ErrExecFailed, name, fmt.Sprintf("failed to create signal exec: %v", err))
	}

	if err := c.client.ContainerExecStart(ctx, resp.ID, container.ExecStartOptions{Detach: true}); err != nil {
		return runtime.NewContainerError(runtime.ErrExecFailed, name, fmt.Sprintf("failed to deliver signal: %v", err))
	}
	logger.Debugf("Delivered %s to process group of exec %s in %s", signal, execID, name)
	return nil
}

// execProcess is the Docker-backed ExecProcess.
type execProcess struct {
	client *Client
	id     string
	attach types.HijackedResponse
	stdout io.Reader
	stderr io.Reader

	closeOnce sync.Once
}

func (p *execProcess) ID() string {
	return p.id
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Stderr() io.Reader {
	return p.stderr
}

// Poll inspects the exec and reports exit state without blocking on the
// process itself.
func (p *execProcess) Poll(ctx context.Context) (int, bool, error) {
	inspect, err := p.client.client.ContainerExecInspect(ctx, p.id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to inspect exec %s: %w", p.id, err)
	}
	if inspect.Running {
		return 0, false, nil
	}
	return inspect.ExitCode, true, nil
}

func (p *execProcess) Close() error {
	p.closeOnce.Do(func() {
		p.attach.Close()
	})
	return nil
}
