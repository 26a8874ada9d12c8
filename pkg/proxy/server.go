// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"

	"github.com/aifo-ai/aifo-coder/pkg/config"
	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
	"github.com/aifo-ai/aifo-coder/pkg/session"
)

// unixBaseDir is where per-session socket directories are created.
const unixBaseDir = "/run/aifo"

// Server is the toolexec proxy listener: one session, one listener, one
// goroutine per connection.
type Server struct {
	handler  *Handler
	listener net.Listener
	url      string
	sockDir  string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewServer binds a listener for the session and prepares the handler. With
// cfg.UseUnixSocket it listens on a Unix socket under /run/aifo; otherwise on
// an ephemeral TCP port — all interfaces on Linux so sidecar networks can
// reach it, loopback elsewhere.
func NewServer(sess *session.Session, rt runtime.Runtime, sidecars SidecarDirectory, cfg config.Config) (*Server, error) {
	s := &Server{handler: NewHandler(sess, rt, sidecars, cfg)}

	if cfg.UseUnixSocket {
		dir := filepath.Join(unixBaseDir, "aifo-"+sess.ID())
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("proxy unix dir failed: %w", err)
		}
		sock := filepath.Join(dir, "toolexec.sock")
		_ = os.Remove(sock)
		listener, err := net.Listen("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("proxy unix bind failed: %w", err)
		}
		s.listener = listener
		s.sockDir = dir
		s.url = "unix://" + sock
		return s, nil
	}

	host := "127.0.0.1"
	if goruntime.GOOS == "linux" {
		host = "0.0.0.0"
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("proxy bind failed: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port
	s.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	return s, nil
}

// URL returns the address clients use to reach the proxy.
func (s *Server) URL() string {
	return s.url
}

// Serve accepts connections until Shutdown. Each connection is handled on
// its own goroutine and carries exactly one request.
func (s *Server) Serve(ctx context.Context) {
	logger.Infof("Toolexec proxy listening on %s", s.url)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			logger.Debugf("Accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handler.HandleConnection(ctx, conn)
		}()
	}
	s.wg.Wait()
	logger.Infof("Toolexec proxy stopped")
}

// Shutdown stops accepting and waits for in-flight requests to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.listener.Close()
	s.wg.Wait()

	if s.sockDir != "" {
		_ = os.Remove(filepath.Join(s.sockDir, "toolexec.sock"))
		_ = os.Remove(s.sockDir)
	}
}
