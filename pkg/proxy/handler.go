// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aifo-ai/aifo-coder/pkg/auth"
	"github.com/aifo-ai/aifo-coder/pkg/config"
	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
	"github.com/aifo-ai/aifo-coder/pkg/notifications"
	"github.com/aifo-ai/aifo-coder/pkg/routing"
	"github.com/aifo-ai/aifo-coder/pkg/session"
	"github.com/aifo-ai/aifo-coder/pkg/sidecar"
	"github.com/aifo-ai/aifo-coder/pkg/supervisor"
	"github.com/aifo-ai/aifo-coder/pkg/wire"
)

// execIDHeader lets a client pin the exec id of its request.
const execIDHeader = "x-aifo-exec-id"

// allowedSignals is the subset of signals the signal endpoint delivers.
var allowedSignals = map[string]bool{"INT": true, "TERM": true, "HUP": true, "KILL": true}

// SidecarDirectory resolves the sidecars of the current session.
type SidecarDirectory interface {
	// IsKindRunning reports whether the kind's sidecar is currently running.
	IsKindRunning(ctx context.Context, kind string) bool

	// ContainerNameFor returns the sidecar container name for a kind.
	ContainerNameFor(kind string) string
}

// Handler serves one parsed request per connection. All fields are read-only
// after construction; handlers for concurrent connections share them safely.
type Handler struct {
	sess     *session.Session
	rt       runtime.Runtime
	sidecars SidecarDirectory
	selector *routing.Selector
	registry *ExecRegistry
	cfg      config.Config
	execUser string
}

// NewHandler wires a Handler for the session.
func NewHandler(sess *session.Session, rt runtime.Runtime, sidecars SidecarDirectory, cfg config.Config) *Handler {
	prober := routing.NewRuntimeProber(rt, cfg.ExecTimeout)
	return &Handler{
		sess:     sess,
		rt:       rt,
		sidecars: sidecars,
		selector: routing.NewSelector(prober, sidecars.ContainerNameFor),
		registry: NewExecRegistry(),
		cfg:      cfg,
		execUser: currentUser(),
	}
}

// currentUser returns the uid:gid execs run as, or "" where unavailable.
func currentUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

// HandleConnection parses one request off the connection, serves it, and
// returns. The connection is closed by the caller.
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn) {
	if h.cfg.ExecTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ExecTimeout))
	}

	req, err := wire.ReadRequest(conn)
	if err != nil {
		respondPlain(conn, "400 Bad Request", ExitRefused, bodyBadRequest)
		return
	}

	endpoint := req.Endpoint()
	if endpoint == wire.EndpointUnknown {
		respondPlain(conn, "404 Not Found", ExitRefused, bodyNotFound)
		return
	}
	if req.Method != wire.MethodPost {
		respondPlain(conn, "405 Method Not Allowed", ExitRefused, bodyMethodNotAllowed)
		return
	}

	result, proto := auth.Validate(req.Headers, h.sess.Token())

	switch endpoint {
	case wire.EndpointNotify:
		h.handleNotify(ctx, conn, req, result)
	case wire.EndpointSignal:
		h.handleSignal(ctx, conn, req, result)
	case wire.EndpointExec:
		h.handleExec(ctx, conn, req, result, proto)
	}
}

// refuse writes the response for a failed auth or proto check.
func refuse(w io.Writer, result auth.Result) {
	if result == auth.Unauthorized {
		respondPlain(w, "401 Unauthorized", ExitRefused, bodyUnauthorized)
	} else {
		respondPlain(w, "426 Upgrade Required", ExitRefused, bodyBadProto)
	}
}

func (h *Handler) handleNotify(ctx context.Context, conn net.Conn, req *wire.Request, result auth.Result) {
	// The notify endpoint may be opened up for agents that cannot carry the
	// token, by explicit opt-in.
	noauth := os.Getenv(config.EnvNotifyNoAuth) == "1"
	if !noauth && result != auth.Authorized {
		refuse(conn, result)
		return
	}

	form := wire.DecodeExecForm(req)
	code, output, err := notifications.HandleRequest(ctx, form.Tool, form.Args, h.cfg.ExecTimeout)

	var policyErr *notifications.PolicyError
	switch {
	case err == nil:
		respondPlain(conn, "200 OK", code, output)
	case errors.Is(err, notifications.ErrTimeout):
		respondPlain(conn, "504 Gateway Timeout", supervisor.TimeoutExitCode, output)
	case errors.As(err, &policyErr):
		respondPlain(conn, "403 Forbidden", ExitRefused, []byte(err.Error()+"\n"))
	default:
		respondPlain(conn, "500 Internal Server Error", ExitRefused, []byte(err.Error()+"\n"))
	}
}

func (h *Handler) handleSignal(ctx context.Context, conn net.Conn, req *wire.Request, result auth.Result) {
	if result != auth.Authorized {
		refuse(conn, result)
		return
	}

	execID := ""
	signal := "TERM"
	for _, p := range wire.ParseForm(string(req.Body)) {
		switch p.Key {
		case "exec_id":
			execID = p.Value
		case "signal":
			signal = p.Value
		}
	}
	if execID == "" {
		respondPlain(conn, "400 Bad Request", ExitRefused, bodyBadRequest)
		return
	}
	container, ok := h.registry.Lookup(execID)
	if !ok {
		respondPlain(conn, "404 Not Found", ExitRefused, bodyNotFound)
		return
	}
	signal = strings.ToUpper(signal)
	if !allowedSignals[signal] {
		respondPlain(conn, "400 Bad Request", ExitRefused, bodyBadRequest)
		return
	}

	if err := h.rt.SignalGroup(ctx, container, execID, signal); err != nil {
		logger.Debugf("Signal %s to exec %s failed: %v", signal, execID, err)
	}
	respondNoContent(conn)
}

func (h *Handler) handleExec(ctx context.Context, conn net.Conn, req *wire.Request, result auth.Result, proto auth.Proto) {
	if result != auth.Authorized {
		refuse(conn, result)
		return
	}

	form := wire.DecodeExecForm(req)
	if form.Tool == "" {
		respondPlain(conn, "400 Bad Request", ExitRefused, bodyBadRequest)
		return
	}
	logger.Debugf("Exec request: tool=%s args=%d cwd=%s proto=%d", form.Tool, len(form.Args), form.Cwd, proto)

	if !allowedAnyKind(form.Tool) {
		respondPlain(conn, "403 Forbidden", ExitRefused, bodyForbidden)
		return
	}

	kind := h.selector.SelectKind(ctx, form.Tool)
	if !routing.Allowed(kind, form.Tool) {
		respondPlain(conn, "403 Forbidden", ExitRefused, bodyForbidden)
		return
	}
	if !h.sidecars.IsKindRunning(ctx, kind) {
		msg := fmt.Sprintf(
			"tool '%s' not available in running sidecars; start an appropriate toolchain (e.g., --toolchain c-cpp or --toolchain rust)\n",
			form.Tool,
		)
		respondPlain(conn, "409 Conflict", ExitRefused, []byte(msg))
		return
	}
	container := h.sidecars.ContainerNameFor(kind)

	execID := strings.TrimSpace(req.Header(execIDHeader))
	if execID == "" {
		execID = uuid.NewString()
	}
	h.registry.Register(execID, container)
	defer h.registry.Remove(execID)

	spec := sidecar.BuildExecSpec(sidecar.ExecRequest{
		Tool:      form.Tool,
		Args:      form.Args,
		HostCwd:   form.Cwd,
		ExecID:    execID,
		User:      h.execUser,
		Streaming: proto == auth.ProtoV2,
		TTY:       h.cfg.StreamTTY,
	})

	proc, err := h.rt.ExecWorkload(ctx, container, spec)
	if err != nil {
		body := fmt.Sprintf("aifo-coder proxy error: %v\n", err)
		respondPlain(conn, "500 Internal Server Error", ExitRefused, []byte(body))
		return
	}

	kill := func(ctx context.Context, signal string) error {
		return h.rt.SignalGroup(ctx, container, execID, signal)
	}

	// The exec deadline is enforced by the supervisor; stop the read deadline
	// from tearing the connection down mid-response.
	_ = conn.SetReadDeadline(time.Time{})

	started := time.Now()
	if proto == auth.ProtoV2 {
		h.streamExec(ctx, conn, proc, execID, kill)
	} else {
		h.bufferExec(ctx, conn, proc, kill)
	}
	logger.Debugf("Exec %s finished in %s", form.Tool, time.Since(started))
}

// bufferExec serves protocol v1: collect everything, then answer once.
// Stdout fully precedes stderr in the body.
func (h *Handler) bufferExec(ctx context.Context, conn net.Conn, proc runtime.ExecProcess, kill supervisor.SignalFunc) {
	res, err := supervisor.Run(ctx, proc, h.cfg.ExecTimeout, kill)
	if err != nil {
		body := fmt.Sprintf("aifo-coder proxy error: %v\n", err)
		respondPlain(conn, "500 Internal Server Error", ExitRefused, []byte(body))
		return
	}

	body := append(res.Stdout, res.Stderr...)
	if res.TimedOut {
		respondPlain(conn, "504 Gateway Timeout", supervisor.TimeoutExitCode, body)
		return
	}
	respondPlain(conn, "200 OK", res.ExitCode, body)
}

// streamExec serves protocol v2: prelude, chunks as output arrives, exit code
// in the trailer. Once the prelude is out every outcome ends in a trailer.
func (h *Handler) streamExec(ctx context.Context, conn net.Conn, proc runtime.ExecProcess, execID string, kill supervisor.SignalFunc) {
	respondChunkedPrelude(conn, execID)

	res, err := supervisor.Stream(ctx, proc, h.cfg.ExecTimeout, kill, func(chunk []byte) error {
		return writeChunk(conn, chunk)
	})
	if err != nil {
		// Client gone or context cancelled; nothing left to write.
		logger.Debugf("Streaming exec %s aborted: %v", execID, err)
		return
	}
	respondChunkedTrailer(conn, res.ExitCode)
}

// allowedAnyKind reports whether any sidecar kind's allowlist carries the
// tool.
func allowedAnyKind(tool string) bool {
	for _, kind := range routing.Kinds {
		if routing.Allowed(kind, tool) {
			return true
		}
	}
	return false
}
