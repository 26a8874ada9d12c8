// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// HeaderCap bounds the bytes scanned for the header/body boundary.
	HeaderCap = 64 * 1024
	// BodyCap bounds the request body read off the connection.
	BodyCap = 1024 * 1024
)

// ErrBodyTooLarge is returned when a request body exceeds BodyCap. The
// connection must not be read further once this is reported.
var ErrBodyTooLarge = errors.New("request body exceeds cap")

// findHeaderEnd locates the header terminator, tolerating both CRLFCRLF and
// bare LFLF. It returns the index just past the terminator.
func findHeaderEnd(buf []byte) (int, bool) {
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))
	lflf := bytes.Index(buf, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lflf < 0 || crlf+1 <= lflf):
		return crlf + 4, true
	case lflf >= 0:
		return lflf + 2, true
	default:
		return 0, false
	}
}

// ReadRequest parses a single request from the reader.
//
// Headers are scanned up to HeaderCap; if no terminator appears before the
// cap or EOF, everything read so far is treated as the header block. The
// body is then read directly from the reader per Content-Length (or
// de-chunked for Transfer-Encoding: chunked), capped at BodyCap.
func ReadRequest(r io.Reader) (*Request, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 1024)
	headerEnd := -1

	for headerEnd < 0 && len(buf) < HeaderCap {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if end, ok := findHeaderEnd(buf); ok {
				headerEnd = end
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}

	var headerBytes, rest []byte
	if headerEnd >= 0 {
		switch {
		case headerEnd >= 4 && bytes.Equal(buf[headerEnd-4:headerEnd], []byte("\r\n\r\n")):
			headerBytes = buf[:headerEnd-4]
		case headerEnd >= 2 && bytes.Equal(buf[headerEnd-2:headerEnd], []byte("\n\n")):
			headerBytes = buf[:headerEnd-2]
		default:
			headerBytes = buf[:headerEnd]
		}
		rest = buf[headerEnd:]
	} else {
		// No terminator before the cap or EOF: the header block is whatever
		// was read. There is no body to recover in this case.
		headerBytes = buf
	}

	lines := splitHeaderLines(string(headerBytes))
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty request")
	}

	method, rawPath, path, query := parseRequestLine(lines[0])
	headers := parseHeaders(lines[1:])

	req := &Request{
		Method:  method,
		RawPath: rawPath,
		Path:    path,
		Query:   query,
		Headers: headers,
	}

	if strings.Contains(strings.ToLower(headers["transfer-encoding"]), "chunked") {
		body, err := readChunkedBody(r, rest)
		if err != nil {
			return nil, err
		}
		req.Body = body
		return req, nil
	}

	body, err := readBody(r, rest, headers["content-length"])
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func splitHeaderLines(block string) []string {
	if block == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// readBody returns any bytes already buffered past the header boundary plus
// whatever Content-Length still owes, read directly from the connection.
func readBody(r io.Reader, rest []byte, contentLength string) ([]byte, error) {
	body := append([]byte(nil), rest...)
	if len(body) > BodyCap {
		return nil, ErrBodyTooLarge
	}

	cl := strings.TrimSpace(contentLength)
	if cl == "" {
		return body, nil
	}
	want, err := strconv.Atoi(cl)
	if err != nil || want < 0 {
		return body, nil
	}
	if want > BodyCap {
		return nil, ErrBodyTooLarge
	}
	for len(body) < want {
		tmp := make([]byte, min(4096, want-len(body)))
		n, err := r.Read(tmp)
		if n > 0 {
			body = append(body, tmp[:n]...)
		}
		if err != nil {
			break
		}
	}
	if len(body) > want {
		body = body[:want]
	}
	return body, nil
}

// readChunkedBody de-chunks a chunked request body, consuming any trailer
// lines, and enforces BodyCap on the decoded payload.
func readChunkedBody(r io.Reader, rest []byte) ([]byte, error) {
	br := &lineReader{r: r, buf: append([]byte(nil), rest...)}
	var body []byte
	for {
		line, ok := br.readLine()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sizeHex := line
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			sizeHex = line[:idx]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(sizeHex), 16, 32)
		if err != nil {
			break
		}
		if size == 0 {
			// Consume trailers up to the blank line.
			for {
				tr, ok := br.readLine()
				if !ok || strings.TrimSpace(tr) == "" {
					break
				}
			}
			break
		}
		chunk, ok := br.readN(int(size))
		if len(body)+len(chunk) > BodyCap {
			return nil, ErrBodyTooLarge
		}
		body = append(body, chunk...)
		if !ok {
			break
		}
		// Skip the CRLF (or LF) after the chunk payload.
		br.skipLineEnding()
	}
	return body, nil
}

// lineReader reads lines and exact byte counts from a reader with a spill
// buffer of bytes already consumed from the connection.
type lineReader struct {
	r   io.Reader
	buf []byte
}

func (lr *lineReader) fill() bool {
	tmp := make([]byte, 1024)
	n, err := lr.r.Read(tmp)
	if n > 0 {
		lr.buf = append(lr.buf, tmp[:n]...)
		return true
	}
	return err == nil
}

func (lr *lineReader) readLine() (string, bool) {
	for {
		if idx := bytes.IndexByte(lr.buf, '\n'); idx >= 0 {
			line := lr.buf[:idx]
			lr.buf = lr.buf[idx+1:]
			return strings.TrimSuffix(string(line), "\r"), true
		}
		if !lr.fill() {
			return "", false
		}
	}
}

func (lr *lineReader) readN(n int) ([]byte, bool) {
	for len(lr.buf) < n {
		if !lr.fill() {
			out := lr.buf
			lr.buf = nil
			return out, false
		}
	}
	out := lr.buf[:n]
	lr.buf = lr.buf[n:]
	return out, true
}

func (lr *lineReader) skipLineEnding() {
	if len(lr.buf) == 0 {
		_ = lr.fill()
	}
	if len(lr.buf) > 0 && lr.buf[0] == '\r' {
		lr.buf = lr.buf[1:]
	}
	if len(lr.buf) > 0 && lr.buf[0] == '\n' {
		lr.buf = lr.buf[1:]
	}
}
