// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs a child process under a deadline. It polls the
// process rather than blocking in a wait, so timeouts can be enforced
// uniformly over container execs and host processes, and terminates the
// process group with TERM then KILL when the deadline passes.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// TimeoutExitCode is reported when the deadline fires, matching the
// timeout(1) convention.
const TimeoutExitCode = 124

const (
	pollInterval = 50 * time.Millisecond
	killGrace    = 2 * time.Second
	// gracePollInterval is the polling cadence inside the TERM grace window;
	// shorter than pollInterval so a child that dies on TERM does not delay
	// the client's timeout response.
	gracePollInterval = 25 * time.Millisecond
)

// ErrClientGone reports that the chunk sink rejected a write, i.e. the peer
// disconnected mid-stream.
var ErrClientGone = errors.New("client disconnected")

// Process is the supervised side of an execution. Both container execs and
// host processes satisfy it.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Poll(ctx context.Context) (exitCode int, exited bool, err error)
	Close() error
}

// SignalFunc delivers a named signal (TERM, KILL, ...) to the process group.
type SignalFunc func(ctx context.Context, signal string) error

// Result is the outcome of a supervised run.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
}

// Terminate stops a process group: TERM, then KILL only if the process is
// still alive after the grace period. The process is polled throughout the
// grace window so a child that dies on TERM releases the caller immediately.
func Terminate(ctx context.Context, proc Process, kill SignalFunc) {
	if kill == nil {
		return
	}
	if err := kill(ctx, "TERM"); err != nil {
		logger.Debugf("TERM delivery failed: %v", err)
	}
	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		if proc != nil {
			if _, exited, err := proc.Poll(ctx); err != nil || exited {
				return
			}
		}
		time.Sleep(gracePollInterval)
	}
	if err := kill(ctx, "KILL"); err != nil {
		logger.Debugf("KILL delivery failed: %v", err)
	}
}

// Run collects the process output to completion. A timeout of zero means no
// deadline. On timeout the process group is terminated and the result carries
// TimeoutExitCode along with whatever output was collected.
func Run(ctx context.Context, proc Process, timeout time.Duration, kill SignalFunc) (Result, error) {
	defer proc.Close()

	var outBuf, errBuf bytes.Buffer
	g := &errgroup.Group{}
	g.Go(func() error {
		_, err := io.Copy(&outBuf, proc.Stdout())
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, proc.Stderr())
		return err
	})

	code, timedOut, err := waitExit(ctx, proc, timeout)
	if timedOut {
		Terminate(ctx, proc, kill)
	}
	// Unblock the collectors if the streams have not reached EOF.
	proc.Close()
	_ = g.Wait()

	if err != nil {
		return Result{}, err
	}
	if timedOut {
		return Result{
			ExitCode: TimeoutExitCode,
			Stdout:   outBuf.Bytes(),
			Stderr:   errBuf.Bytes(),
			TimedOut: true,
		}, nil
	}
	return Result{ExitCode: code, Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes()}, nil
}

// ChunkWriter delivers one chunk of output to the client. A returned error
// means the client is gone.
type ChunkWriter func(chunk []byte) error

// Stream forwards the process stdout to the chunk writer as it is produced,
// then reports the exit code. Stderr is drained and discarded; streamed
// commands are spawned with stderr merged into stdout. On timeout the process
// group is terminated and the result carries TimeoutExitCode. When the writer
// fails, the process group is terminated and ErrClientGone is returned.
func Stream(ctx context.Context, proc Process, timeout time.Duration, kill SignalFunc, write ChunkWriter) (Result, error) {
	defer proc.Close()

	start := time.Now()
	chunks := make(chan []byte, 16)
	go func() {
		defer close(chunks)
		buf := make([]byte, 8192)
		for {
			n, err := proc.Stdout().Read(buf)
			if n > 0 {
				c := make([]byte, n)
				copy(c, buf[:n])
				chunks <- c
			}
			if err != nil {
				return
			}
		}
	}()
	go func() {
		_, _ = io.Copy(io.Discard, proc.Stderr())
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for chunks != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if err := write(chunk); err != nil {
				Terminate(ctx, proc, kill)
				return Result{}, ErrClientGone
			}
		case <-deadline:
			Terminate(ctx, proc, kill)
			proc.Close()
			drainChunks(chunks, write)
			return Result{ExitCode: TimeoutExitCode, TimedOut: true}, nil
		case <-ctx.Done():
			Terminate(ctx, proc, kill)
			return Result{}, ctx.Err()
		}
	}

	// One deadline governs the whole exec: the final wait gets whatever
	// budget the streaming phase left over.
	remaining := timeout
	if timeout > 0 {
		remaining = timeout - time.Since(start)
		if remaining <= 0 {
			Terminate(ctx, proc, kill)
			return Result{ExitCode: TimeoutExitCode, TimedOut: true}, nil
		}
	}
	code, timedOut, err := waitExit(ctx, proc, remaining)
	if err != nil {
		return Result{}, err
	}
	if timedOut {
		Terminate(ctx, proc, kill)
		return Result{ExitCode: TimeoutExitCode, TimedOut: true}, nil
	}
	return Result{ExitCode: code}, nil
}

// drainChunks forwards whatever output is already buffered, best-effort.
func drainChunks(chunks <-chan []byte, write ChunkWriter) {
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if err := write(chunk); err != nil {
				return
			}
		default:
			return
		}
	}
}

// waitExit polls until the process exits or the deadline passes.
func waitExit(ctx context.Context, proc Process, timeout time.Duration) (code int, timedOut bool, err error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		code, exited, err := proc.Poll(ctx)
		if err != nil {
			return 0, false, err
		}
		if exited {
			return code, false, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, true, nil
		}
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-ticker.C:
		}
	}
}
