// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the proxy's narrow HTTP-like request framing.
//
// The agent-side shim is not a general HTTP client: some variants terminate
// headers with bare LF, omit Content-Length on empty bodies, or send chunked
// request bodies. The framer here is a deliberate state machine with explicit
// fallback branches rather than a strict parser, so a malformed boundary
// degrades to "whatever was read is the header block" instead of a hang.
package wire

import (
	"strings"
)

// Method is the request method of a parsed request. Only GET and POST are
// meaningful to the proxy; everything else is carried as Other.
type Method int

// Supported methods.
const (
	MethodGet Method = iota
	MethodPost
	MethodOther
)

// Endpoint identifies the proxy surface a request path maps onto.
type Endpoint int

// Recognized endpoints.
const (
	// EndpointUnknown is any path the proxy does not serve.
	EndpointUnknown Endpoint = iota
	// EndpointExec is the tool execution endpoint.
	EndpointExec
	// EndpointNotify is the host notification endpoint.
	EndpointNotify
	// EndpointSignal delivers signals to in-flight executions.
	EndpointSignal
)

// Pair is an ordered key/value from a query string or form body.
type Pair struct {
	Key   string
	Value string
}

// Request is a parsed inbound call. The path is lower-cased, header keys are
// lower-cased with last-value-wins on duplicates, and query pairs preserve
// their request order.
type Request struct {
	Method  Method
	RawPath string
	Path    string
	Query   []Pair
	Headers map[string]string
	Body    []byte
}

// Header returns the value for a header key (any case), or "".
func (r *Request) Header(key string) string {
	return r.Headers[strings.ToLower(key)]
}

// Endpoint classifies the request path by exact match on the lower-cased
// path.
func (r *Request) Endpoint() Endpoint {
	return ClassifyEndpoint(r.Path)
}

// ClassifyEndpoint maps a lower-cased path to a proxy endpoint.
func ClassifyEndpoint(path string) Endpoint {
	switch path {
	case "/exec":
		return EndpointExec
	case "/notify":
		return EndpointNotify
	case "/signal":
		return EndpointSignal
	default:
		return EndpointUnknown
	}
}

// parseRequestLine splits "POST /exec?tool=go HTTP/1.1" into its method, the
// lower-cased path, and decoded query pairs. A missing or mangled request
// line yields MethodOther with an empty path; the caller decides how to fail.
func parseRequestLine(line string) (Method, string, string, []Pair) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 2 {
		return MethodOther, "", "", nil
	}

	var method Method
	switch strings.ToUpper(fields[0]) {
	case "GET":
		method = MethodGet
	case "POST":
		method = MethodPost
	default:
		method = MethodOther
	}

	target := fields[1]
	rawPath := target
	var query []Pair
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		rawPath = target[:idx]
		query = ParseForm(target[idx+1:])
	}
	return method, rawPath, strings.ToLower(rawPath), query
}

// parseHeaders consumes "Key: value" lines into a lower-cased map.
// Duplicate keys keep the last value seen.
func parseHeaders(lines []string) map[string]string {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(line[idx+1:])
	}
	return headers
}
