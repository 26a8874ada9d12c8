// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifo-ai/aifo-coder/pkg/config"
	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/session"
)

const testToken = "sekrit-token"

// fakeProc is an immediately-exiting exec unless runFor is set.
type fakeProc struct {
	id     string
	stdout *strings.Reader
	stderr *strings.Reader
	code   int
	exitAt time.Time

	mu     sync.Mutex
	killed bool
}

func (f *fakeProc) ID() string        { return f.id }
func (f *fakeProc) Stdout() io.Reader { return f.stdout }
func (f *fakeProc) Stderr() io.Reader { return f.stderr }
func (f *fakeProc) Close() error      { return nil }

func (f *fakeProc) kill() {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
}

func (f *fakeProc) Poll(context.Context) (int, bool, error) {
	f.mu.Lock()
	killed := f.killed
	f.mu.Unlock()
	if killed || time.Now().After(f.exitAt) {
		return f.code, true, nil
	}
	return 0, false, nil
}

// fakeRuntime serves execs from canned results and records signals.
type fakeRuntime struct {
	runtime.Runtime

	mu      sync.Mutex
	running map[string]bool
	tools   map[string]bool
	stdout  string
	stderr  string
	code    int
	runFor  time.Duration
	execErr error

	// termKills makes the next TERM delivery end the last started exec,
	// like a process that honors the signal.
	termKills bool
	lastExec  *fakeProc

	execSpecs []runtime.ExecSpec
	signals   []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		running: make(map[string]bool),
		tools:   make(map[string]bool),
	}
}

func (f *fakeRuntime) IsWorkloadRunning(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[name], nil
}

func (f *fakeRuntime) ExecWorkload(_ context.Context, _ string, spec runtime.ExecSpec) (runtime.ExecProcess, error) {
	script := strings.Join(spec.Cmd, " ")
	if strings.Contains(script, "command -v") {
		code := 1
		f.mu.Lock()
		for tool, ok := range f.tools {
			if ok && strings.Contains(script, tool) {
				code = 0
			}
		}
		f.mu.Unlock()
		return &fakeProc{stdout: strings.NewReader(""), stderr: strings.NewReader(""), code: code}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.execSpecs = append(f.execSpecs, spec)
	proc := &fakeProc{
		stdout: strings.NewReader(f.stdout),
		stderr: strings.NewReader(f.stderr),
		code:   f.code,
		exitAt: time.Now().Add(f.runFor),
	}
	f.lastExec = proc
	return proc, nil
}

func (f *fakeRuntime) SignalGroup(_ context.Context, _, _, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal)
	if signal == "TERM" && f.termKills && f.lastExec != nil {
		f.lastExec.kill()
	}
	return nil
}

func (f *fakeRuntime) enableSidecar(kind string, tools ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running["aifo-tc-"+kind+"-s1"] = true
	for _, t := range tools {
		f.tools[t] = true
	}
}

// fakeSidecars resolves names against the fake runtime's running set.
type fakeSidecars struct {
	rt *fakeRuntime
}

func (f *fakeSidecars) ContainerNameFor(kind string) string {
	return "aifo-tc-" + kind + "-s1"
}

func (f *fakeSidecars) IsKindRunning(ctx context.Context, kind string) bool {
	running, _ := f.rt.IsWorkloadRunning(ctx, f.ContainerNameFor(kind))
	return running
}

func newTestHandler(rt *fakeRuntime, cfg config.Config) *Handler {
	sess := session.NewWithToken("s1", testToken, []string{"rust", "node"})
	return NewHandler(sess, rt, &fakeSidecars{rt: rt}, cfg)
}

// roundTrip writes a raw request and returns the raw response.
func roundTrip(t *testing.T, h *Handler, raw string) string {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.HandleConnection(context.Background(), server)
		server.Close()
		close(done)
	}()

	_, err := client.Write([]byte(raw))
	require.NoError(t, err)
	resp, err := io.ReadAll(client)
	require.NoError(t, err)
	<-done
	client.Close()
	return string(resp)
}

func postReq(path, body string, headers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", path)
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n%s", len(body), body)
	return b.String()
}

func authed(path, body string, proto string) string {
	return postReq(path, body,
		"Authorization: Bearer "+testToken,
		"X-Aifo-Proto: "+proto,
	)
}

func statusLine(resp string) string {
	line, _, _ := strings.Cut(resp, "\r\n")
	return line
}

func bodyOf(resp string) string {
	_, body, _ := strings.Cut(resp, "\r\n\r\n")
	return body
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})
	resp := roundTrip(t, h, authed("/whatever", "tool=go", "1"))
	assert.Equal(t, "HTTP/1.1 404 Not Found", statusLine(resp))
	assert.Contains(t, resp, "X-Exit-Code: 86")
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})
	resp := roundTrip(t, h, "GET /exec HTTP/1.1\r\nAuthorization: Bearer "+testToken+"\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 405 Method Not Allowed", statusLine(resp))
}

func TestMissingAuth(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})

	resp := roundTrip(t, h, postReq("/exec", "tool=cargo", "X-Aifo-Proto: 1"))
	assert.Equal(t, "HTTP/1.1 401 Unauthorized", statusLine(resp))
	assert.Equal(t, "unauthorized\n", bodyOf(resp))
	assert.Contains(t, resp, "X-Exit-Code: 86")
}

func TestWrongToken(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})
	resp := roundTrip(t, h, postReq("/exec", "tool=cargo",
		"Authorization: Bearer not-the-token", "X-Aifo-Proto: 1"))
	assert.Equal(t, "HTTP/1.1 401 Unauthorized", statusLine(resp))
}

func TestBadProto(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})

	for _, proto := range []string{"", "3", "x"} {
		headers := []string{"Authorization: Bearer " + testToken}
		if proto != "" {
			headers = append(headers, "X-Aifo-Proto: "+proto)
		}
		resp := roundTrip(t, h, postReq("/exec", "tool=cargo", headers...))
		assert.Equal(t, "HTTP/1.1 426 Upgrade Required", statusLine(resp), "proto %q", proto)
		assert.Contains(t, bodyOf(resp), "1 or 2")
	}
}

func TestForbiddenTool(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	h := newTestHandler(rt, config.Config{})

	resp := roundTrip(t, h, authed("/exec", "tool=ls", "1"))
	assert.Equal(t, "HTTP/1.1 403 Forbidden", statusLine(resp))
	assert.Equal(t, "forbidden\n", bodyOf(resp))
	assert.Contains(t, resp, "X-Exit-Code: 86")
}

func TestNoSidecarRunning(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})

	resp := roundTrip(t, h, authed("/exec", "tool=make", "1"))
	assert.Equal(t, "HTTP/1.1 409 Conflict", statusLine(resp))
	assert.Contains(t, bodyOf(resp), "tool 'make' not available")
	assert.Contains(t, bodyOf(resp), "--toolchain")
}

func TestEmptyTool(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})
	resp := roundTrip(t, h, authed("/exec", "", "1"))
	assert.Equal(t, "HTTP/1.1 400 Bad Request", statusLine(resp))
}

func TestBufferedExec(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.stdout = "out-part"
	rt.stderr = "err-part"
	rt.code = 3
	h := newTestHandler(rt, config.Config{})

	resp := roundTrip(t, h, authed("/exec", "tool=cargo&arg=build", "1"))
	assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))
	assert.Contains(t, resp, "X-Exit-Code: 3")
	// stdout fully precedes stderr
	assert.Equal(t, "out-parterr-part", bodyOf(resp))

	require.Len(t, rt.execSpecs, 1)
	spec := rt.execSpecs[0]
	assert.False(t, spec.TTY)
	assert.Contains(t, strings.Join(spec.Cmd, " "), "cargo build")
}

func TestStreamingExec(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.stdout = "streamed text"
	h := newTestHandler(rt, config.Config{StreamTTY: true})

	resp := roundTrip(t, h, authed("/exec", "tool=cargo&arg=--version", "2"))
	assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))

	head, body, _ := strings.Cut(resp, "\r\n\r\n")
	assert.Contains(t, head, "Transfer-Encoding: chunked")
	assert.Contains(t, head, "Trailer: X-Exit-Code")
	assert.Contains(t, head, "X-Exec-Id: ")
	assert.Contains(t, body, "streamed text")
	assert.True(t, strings.HasSuffix(body, "0\r\nX-Exit-Code: 0\r\n\r\n"))

	require.Len(t, rt.execSpecs, 1)
	spec := rt.execSpecs[0]
	assert.True(t, spec.TTY)
	assert.Contains(t, strings.Join(spec.Cmd, " "), "setsid")
}

func TestStreamingExecIDFromHeader(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	h := newTestHandler(rt, config.Config{})

	raw := postReq("/exec", "tool=cargo",
		"Authorization: Bearer "+testToken,
		"X-Aifo-Proto: 2",
		"X-Aifo-Exec-Id: my-exec-id")
	resp := roundTrip(t, h, raw)
	assert.Contains(t, resp, "X-Exec-Id: my-exec-id")
}

func TestSpawnFailure(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.execErr = fmt.Errorf("exec create failed")
	h := newTestHandler(rt, config.Config{})

	resp := roundTrip(t, h, authed("/exec", "tool=cargo", "2"))
	assert.Equal(t, "HTTP/1.1 500 Internal Server Error", statusLine(resp))
	assert.Contains(t, resp, "X-Exit-Code: 86")
	assert.Contains(t, bodyOf(resp), "proxy error")
}

func TestBufferedTimeout(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.runFor = time.Hour
	h := newTestHandler(rt, config.Config{ExecTimeout: 200 * time.Millisecond})

	resp := roundTrip(t, h, authed("/exec", "tool=cargo", "1"))
	assert.Equal(t, "HTTP/1.1 504 Gateway Timeout", statusLine(resp))
	assert.Contains(t, resp, "X-Exit-Code: 124")

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, []string{"TERM", "KILL"}, rt.signals)
}

func TestBufferedTimeoutRespondsPromptly(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.runFor = time.Hour
	rt.termKills = true
	h := newTestHandler(rt, config.Config{ExecTimeout: 200 * time.Millisecond})

	start := time.Now()
	resp := roundTrip(t, h, authed("/exec", "tool=cargo", "1"))
	elapsed := time.Since(start)

	assert.Equal(t, "HTTP/1.1 504 Gateway Timeout", statusLine(resp))
	assert.Contains(t, resp, "X-Exit-Code: 124")
	// A child that honors TERM must not cost the client the KILL grace
	// on top of the timeout.
	assert.Less(t, elapsed, 1500*time.Millisecond)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, []string{"TERM"}, rt.signals)
}

func TestStreamingTimeoutTrailer(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.runFor = time.Hour
	rt.stdout = "partial"
	h := newTestHandler(rt, config.Config{ExecTimeout: 200 * time.Millisecond})

	resp := roundTrip(t, h, authed("/exec", "tool=cargo", "2"))
	assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))
	assert.True(t, strings.HasSuffix(resp, "0\r\nX-Exit-Code: 124\r\n\r\n"))
}

func TestSignalEndpoint(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	h := newTestHandler(rt, config.Config{})
	h.registry.Register("e1", "aifo-tc-rust-s1")

	t.Run("delivers allowed signal", func(t *testing.T) {
		resp := roundTrip(t, h, authed("/signal", "exec_id=e1&signal=int", "1"))
		assert.Equal(t, "HTTP/1.1 204 No Content", statusLine(resp))
		assert.NotContains(t, resp, "X-Exit-Code")
		rt.mu.Lock()
		defer rt.mu.Unlock()
		assert.Contains(t, rt.signals, "INT")
	})

	t.Run("unknown exec id", func(t *testing.T) {
		resp := roundTrip(t, h, authed("/signal", "exec_id=nope", "1"))
		assert.Equal(t, "HTTP/1.1 404 Not Found", statusLine(resp))
	})

	t.Run("missing exec id", func(t *testing.T) {
		resp := roundTrip(t, h, authed("/signal", "signal=TERM", "1"))
		assert.Equal(t, "HTTP/1.1 400 Bad Request", statusLine(resp))
	})

	t.Run("disallowed signal", func(t *testing.T) {
		resp := roundTrip(t, h, authed("/signal", "exec_id=e1&signal=SEGV", "1"))
		assert.Equal(t, "HTTP/1.1 400 Bad Request", statusLine(resp))
	})

	t.Run("requires auth", func(t *testing.T) {
		resp := roundTrip(t, h, postReq("/signal", "exec_id=e1", "X-Aifo-Proto: 1"))
		assert.Equal(t, "HTTP/1.1 401 Unauthorized", statusLine(resp))
	})
}

func TestNotifyPolicyRefusal(t *testing.T) {
	rt := newFakeRuntime()
	h := newTestHandler(rt, config.Config{})
	t.Setenv(config.EnvNotifyConfig, "/nonexistent/aider.conf.yml")

	resp := roundTrip(t, h, authed("/notify", "cmd=say&arg=hello", "1"))
	assert.Equal(t, "HTTP/1.1 403 Forbidden", statusLine(resp))
	assert.Contains(t, resp, "X-Exit-Code: 86")
}

func TestNotifyRequiresAuthWithoutOptOut(t *testing.T) {
	rt := newFakeRuntime()
	h := newTestHandler(rt, config.Config{})

	resp := roundTrip(t, h, postReq("/notify", "cmd=say", "X-Aifo-Proto: 1"))
	assert.Equal(t, "HTTP/1.1 401 Unauthorized", statusLine(resp))
}

func TestOversizedBody(t *testing.T) {
	t.Parallel()
	h := newTestHandler(newFakeRuntime(), config.Config{})

	raw := fmt.Sprintf("POST /exec HTTP/1.1\r\nContent-Length: %d\r\n\r\n", 2<<20)
	resp := roundTrip(t, h, raw)
	assert.Equal(t, "HTTP/1.1 400 Bad Request", statusLine(resp))
}

func TestIdempotentExec(t *testing.T) {
	t.Parallel()
	rt := newFakeRuntime()
	rt.enableSidecar("rust", "cargo")
	rt.stdout = "v1"
	h := newTestHandler(rt, config.Config{})

	first := roundTrip(t, h, authed("/exec", "tool=cargo&arg=--version", "1"))
	second := roundTrip(t, h, authed("/exec", "tool=cargo&arg=--version", "1"))
	assert.Equal(t, statusLine(first), statusLine(second))
	assert.Equal(t, bodyOf(first), bodyOf(second))

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Len(t, rt.execSpecs, 2)
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()
	r := NewExecRegistry()
	r.Register("a", "c1")

	container, ok := r.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "c1", container)

	r.Remove("a")
	_, ok = r.Lookup("a")
	assert.False(t, ok)
}
