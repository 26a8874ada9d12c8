// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package proxy is the toolexec proxy: it accepts authenticated HTTP-like
// requests on a loopback listener, routes tools to running sidecars, and
// returns execution results buffered or as a chunked stream with an exit
// code trailer.
package proxy

import (
	"fmt"
	"io"
)

// ExitRefused is the sentinel exit code for requests the proxy refused
// before any process ran.
const ExitRefused = 86

// Canonical error bodies.
var (
	bodyBadRequest       = []byte("bad request\n")
	bodyUnauthorized     = []byte("unauthorized\n")
	bodyForbidden        = []byte("forbidden\n")
	bodyNotFound         = []byte("not found\n")
	bodyMethodNotAllowed = []byte("method not allowed\n")
	bodyBadProto         = []byte("unsupported protocol: expected X-Aifo-Proto 1 or 2\n")
)

// respondPlain writes a complete buffered response with the exit code header.
func respondPlain(w io.Writer, status string, exitCode int, body []byte) {
	header := fmt.Sprintf(
		"HTTP/1.1 %s\r\nContent-Type: text/plain; charset=utf-8\r\nX-Exit-Code: %d\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		status, exitCode, len(body),
	)
	_, _ = io.WriteString(w, header)
	_, _ = w.Write(body)
}

// respondNoContent writes a 204 without an exit code header.
func respondNoContent(w io.Writer) {
	_, _ = io.WriteString(w, "HTTP/1.1 204 No Content\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
}

// respondChunkedPrelude opens a streaming response announcing the exit code
// trailer. The exec id is exposed so the client can signal the run.
func respondChunkedPrelude(w io.Writer, execID string) {
	header := "HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=utf-8\r\nTransfer-Encoding: chunked\r\nTrailer: X-Exit-Code\r\nConnection: close\r\n"
	if execID != "" {
		header += "X-Exec-Id: " + execID + "\r\n"
	}
	header += "\r\n"
	_, _ = io.WriteString(w, header)
}

// writeChunk emits one chunked-transfer chunk. Empty chunks are skipped; a
// zero-length chunk would terminate the stream.
func writeChunk(w io.Writer, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%X\r\n", len(chunk)); err != nil {
		return err
	}
	if _, err := w.Write(chunk); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// respondChunkedTrailer closes a chunked stream with the exit code trailer.
func respondChunkedTrailer(w io.Writer, exitCode int) {
	_, _ = fmt.Fprintf(w, "0\r\nX-Exit-Code: %d\r\n\r\n", exitCode)
}
