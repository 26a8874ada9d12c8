// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"strings"
)

// ParseForm decodes an application/x-www-form-urlencoded payload (or query
// string) into ordered pairs. Keys without '=' become pairs with an empty
// value. Decoding never fails: '+' becomes a space and malformed %-escapes
// are preserved literally.
func ParseForm(s string) []Pair {
	if s == "" {
		return nil
	}
	var pairs []Pair
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, Pair{
			Key:   decodeComponent(key),
			Value: decodeComponent(value),
		})
	}
	return pairs
}

// decodeComponent url-decodes one form component. Unlike net/url it never
// errors: a '%' not followed by two hex digits is kept as-is.
func decodeComponent(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				hi, okHi := unhex(s[i+1])
				lo, okLo := unhex(s[i+2])
				if okHi && okLo {
					b.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// ExecForm is the decoded shape of an /exec (or /notify) body: the tool (or
// command), the working directory, and the ordered argument list.
type ExecForm struct {
	Tool string
	Cwd  string
	Args []string
}

// DefaultWorkdir is the workspace mount shared with every sidecar.
const DefaultWorkdir = "/workspace"

// DecodeExecForm merges query pairs and the form body into an ExecForm.
// Later values win for tool and cwd; arg values accumulate in order.
func DecodeExecForm(req *Request) ExecForm {
	form := ExecForm{Cwd: DefaultWorkdir}
	apply := func(pairs []Pair) {
		for _, p := range pairs {
			switch strings.ToLower(p.Key) {
			case "tool", "cmd":
				form.Tool = p.Value
			case "cwd":
				form.Cwd = p.Value
			case "arg":
				form.Args = append(form.Args, p.Value)
			}
		}
	}
	apply(req.Query)
	apply(ParseForm(string(req.Body)))
	return form
}
