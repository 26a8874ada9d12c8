// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// startRetries covers the ETXTBSY window after a binary was just written.
	startRetries    = 10
	startRetryDelay = 50 * time.Millisecond
)

// HostProcess runs a command on the host and satisfies Process so it can be
// supervised like a container exec.
type HostProcess struct {
	cmd    *exec.Cmd
	stdout *io.PipeReader
	stderr *io.PipeReader

	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

// StartHostProcess starts path with args. A nil env inherits the parent
// environment; otherwise env is the complete environment for the child.
// Transient ETXTBSY failures on start are retried.
func StartHostProcess(ctx context.Context, path string, args []string, env []string) (*HostProcess, error) {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = outW
	cmd.Stderr = errW
	if env != nil {
		cmd.Env = env
	}

	var startErr error
	for attempt := 0; attempt < startRetries; attempt++ {
		startErr = cmd.Start()
		if startErr == nil {
			break
		}
		if !errors.Is(startErr, syscall.ETXTBSY) {
			break
		}
		time.Sleep(startRetryDelay)
	}
	if startErr != nil {
		outW.Close()
		errW.Close()
		return nil, fmt.Errorf("failed to start %s: %w", path, startErr)
	}

	p := &HostProcess{
		cmd:    cmd,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		outW.Close()
		errW.Close()
		p.mu.Lock()
		p.exitCode = exitCodeFromWait(cmd, err)
		p.waitErr = nil
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

func exitCodeFromWait(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return 1
}

func (p *HostProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *HostProcess) Stderr() io.Reader {
	return p.stderr
}

// Poll reports exit state without blocking on the child.
func (p *HostProcess) Poll(_ context.Context) (int, bool, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, true, p.waitErr
	default:
		return 0, false, nil
	}
}

// Close releases the output pipes. It does not stop the child.
func (p *HostProcess) Close() error {
	p.stdout.Close()
	p.stderr.Close()
	return nil
}

// Signal delivers a named signal to the child, for use as a SignalFunc.
func (p *HostProcess) Signal(_ context.Context, signal string) error {
	if p.cmd.Process == nil {
		return nil
	}
	var sig os.Signal
	switch signal {
	case "TERM":
		sig = syscall.SIGTERM
	case "KILL":
		sig = syscall.SIGKILL
	case "INT":
		sig = syscall.SIGINT
	case "HUP":
		sig = syscall.SIGHUP
	default:
		return fmt.Errorf("unsupported signal %q", signal)
	}
	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
