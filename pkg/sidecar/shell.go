// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package sidecar

import "strings"

// ShellEscape quotes a string for inclusion in a POSIX shell command line.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if isShellSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_=./:@", r):
		default:
			return false
		}
	}
	return true
}

// ShellJoin escapes and joins argv into a single shell command line.
func ShellJoin(args []string) string {
	escaped := make([]string, 0, len(args))
	for _, a := range args {
		escaped = append(escaped, ShellEscape(a))
	}
	return strings.Join(escaped, " ")
}
