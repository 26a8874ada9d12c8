// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session models one proxy run: its id, bearer token, and the set of
// toolchain kinds started for it. A Session is immutable after creation and
// is shared read-only across connection handlers.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
)

// Session is the read-only state of one proxy run.
type Session struct {
	id    string
	token string
	kinds []string
}

// New creates a session with a fresh bearer token. The kind list is copied;
// callers keep no way to mutate the session afterwards.
func New(id string, kinds []string) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	return &Session{
		id:    id,
		token: token,
		kinds: slices.Clone(kinds),
	}, nil
}

// NewWithToken creates a session with a caller-supplied token. Intended for
// tests; production sessions use New.
func NewWithToken(id, token string, kinds []string) *Session {
	return &Session{id: id, token: token, kinds: slices.Clone(kinds)}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Token returns the bearer token for this run.
func (s *Session) Token() string { return s.token }

// Kinds returns the toolchain kinds this session was started with.
func (s *Session) Kinds() []string { return slices.Clone(s.kinds) }

// HasKind reports whether the session was started with the given kind.
func (s *Session) HasKind(kind string) bool {
	return slices.Contains(s.kinds, kind)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
