// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package notifications validates and runs the host notification command
// configured in ~/.aider.conf.yml, under a strict execution policy.
package notifications

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aifo-ai/aifo-coder/pkg/config"
)

// configKey is the YAML key carrying the notification command.
const configKey = "notifications-command"

// argsPlaceholder marks where request arguments are appended. It is only
// legal as the final token.
const argsPlaceholder = "{args}"

// Command is the validated notification command configuration.
type Command struct {
	// ExecPath is the absolute, symlink-resolved executable path.
	ExecPath string
	// FixedArgs are the arguments configured before the placeholder.
	FixedArgs []string
	// HasPlaceholder is true when the command ends with the {args} token.
	HasPlaceholder bool
}

// Basename returns the executable file name.
func (c Command) Basename() string {
	return filepath.Base(c.ExecPath)
}

// LoadCommand reads the notification command from the configured YAML file
// and enforces its structural invariants.
func LoadCommand() (Command, error) {
	path, err := config.NotifyConfigPath()
	if err != nil {
		return Command{}, &PolicyError{Reason: err.Error()}
	}
	return loadCommandFromFile(path)
}

func loadCommandFromFile(path string) (Command, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Command{}, &PolicyError{Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	tokens, err := parseTokens(path, raw)
	if err != nil {
		return Command{}, err
	}
	return commandFromTokens(tokens)
}

// parseTokens extracts the notifications-command node as argv tokens. A
// string value is split shell-like; a sequence is taken verbatim.
func parseTokens(path string, raw []byte) ([]string, error) {
	content := strings.TrimRight(string(raw), " \t\r\n")
	// Some helpers write a literal "\n" at the end of the file.
	content = strings.TrimSuffix(content, `\n`)

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, &PolicyError{Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}

	node, ok := doc[configKey]
	if !ok {
		return nil, &PolicyError{Reason: configKey + " not found in " + path}
	}

	switch v := node.(type) {
	case string:
		tokens := SplitShellArgs(v)
		if len(tokens) == 0 {
			return nil, &PolicyError{Reason: configKey + " parsed to an empty command"}
		}
		return tokens, nil
	case []any:
		if len(v) == 0 {
			return nil, &PolicyError{Reason: configKey + " is empty or malformed"}
		}
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &PolicyError{Reason: configKey + " must be a sequence of strings"}
			}
			tokens = append(tokens, s)
		}
		return tokens, nil
	default:
		return nil, &PolicyError{Reason: configKey + " must be a string or sequence"}
	}
}

func commandFromTokens(tokens []string) (Command, error) {
	if len(tokens) == 0 {
		return Command{}, &PolicyError{Reason: configKey + " is empty"}
	}
	execPath := tokens[0]
	if !strings.HasPrefix(execPath, "/") {
		return Command{}, &PolicyError{Reason: configKey + " executable must be an absolute path"}
	}

	hasPlaceholder := tokens[len(tokens)-1] == argsPlaceholder
	rest := tokens[1:]
	if hasPlaceholder {
		rest = tokens[1 : len(tokens)-1]
	}
	for _, t := range rest {
		if t == argsPlaceholder {
			return Command{}, &PolicyError{
				Reason: "invalid " + configKey + ": '" + argsPlaceholder + "' placeholder must be trailing",
			}
		}
	}

	// Resolve symlinks so the safe-directory check sees the real location.
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	return Command{
		ExecPath:       execPath,
		FixedArgs:      append([]string(nil), rest...),
		HasPlaceholder: hasPlaceholder,
	}, nil
}

// SplitShellArgs is a minimal shell-like tokenizer supporting single and
// double quotes. It does not support escapes; quotes preserve spaces.
func SplitShellArgs(s string) []string {
	var out []string
	var current strings.Builder
	inSingle, inDouble := false, false

	for _, ch := range s {
		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case isSpace(ch) && !inSingle && !inDouble:
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
