// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth validates the proxy's bearer token and protocol version
// headers. The session token is the only credential; there is no user model.
package auth

import (
	"crypto/subtle"
	"strings"
	"unicode"
)

// Proto is a negotiated response protocol version.
type Proto int

// Supported protocol versions.
const (
	// ProtoV1 buffers the full execution result into a single response.
	ProtoV1 Proto = 1
	// ProtoV2 streams output as chunks and trails the exit code.
	ProtoV2 Proto = 2
)

// ProtoHeader carries the requested protocol version.
const ProtoHeader = "x-aifo-proto"

// Result is the tri-state outcome of validating a request's credentials.
type Result int

// Validation outcomes, checked in order: auth first, then protocol.
const (
	// Unauthorized means the Authorization header is missing or wrong.
	Unauthorized Result = iota
	// UnsupportedProto means auth passed but X-Aifo-Proto is missing or
	// not an accepted version.
	UnsupportedProto
	// Authorized means both checks passed.
	Authorized
)

// BearerMatches reports whether an Authorization header value authorizes the
// given token under the RFC 6750 Bearer scheme. The scheme is
// case-insensitive and separated from the credentials by ASCII whitespace;
// the credentials themselves must match the token exactly. A bare token
// without a scheme never matches.
func BearerMatches(value, token string) bool {
	v := strings.TrimSpace(value)
	idx := strings.IndexFunc(v, func(r rune) bool {
		return r < unicode.MaxASCII && unicode.IsSpace(r)
	})
	if idx < 0 {
		return false
	}
	scheme, cred := v[:idx], strings.TrimSpace(v[idx:])
	if !strings.EqualFold(scheme, "bearer") || cred == "" {
		return false
	}
	if len(cred) != len(token) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cred), []byte(token)) == 1
}

// Validate checks the Authorization and X-Aifo-Proto headers against the
// session token. Authorization is checked first: a request with bad
// credentials learns nothing about protocol support. On Authorized the
// negotiated Proto is returned; otherwise Proto is zero.
func Validate(headers map[string]string, token string) (Result, Proto) {
	if !BearerMatches(headers["authorization"], token) {
		return Unauthorized, 0
	}
	switch strings.TrimSpace(headers[ProtoHeader]) {
	case "1":
		return Authorized, ProtoV1
	case "2":
		return Authorized, ProtoV2
	default:
		return UnsupportedProto, 0
	}
}
