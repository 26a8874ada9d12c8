// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifications

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aifo-ai/aifo-coder/pkg/config"
)

// Policy limits on caller-supplied input.
const (
	maxCmdLen    = 128
	maxArgCount  = 128
	maxArgLen    = 4096
	allowlistCap = 16
	envAllowCap  = 16
	envKeyMaxLen = 64

	defaultMaxArgs = 8
	minMaxArgs     = 1
	maxMaxArgs     = 32
)

// defaultSafeDirs are the host directories notification executables may live
// in unless explicitly overridden.
var defaultSafeDirs = []string{"/usr/bin", "/bin", "/usr/local/bin", "/opt/homebrew/bin"}

// PolicyError reports a request or configuration that the notification
// policy rejects. It maps to a refusal, not an execution failure.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// allowedBasenames returns the executable basenames permitted for
// notifications: "say" plus any extension from the environment, capped.
func allowedBasenames() []string {
	out := []string{"say"}
	extra := os.Getenv(config.EnvNotifyAllowlist)
	if extra == "" {
		return out
	}
	for _, name := range config.SplitList(extra, 0) {
		if name == "say" {
			continue
		}
		out = append(out, name)
		if len(out) >= allowlistCap {
			break
		}
	}
	return out
}

// safeDirs returns the directories a notification executable must reside in.
// Overriding requires the explicit unsafe opt-in.
func safeDirs() []string {
	dirs := defaultSafeDirs
	if os.Getenv(config.EnvNotifyUnsafeAllow) == "1" {
		if v := os.Getenv(config.EnvNotifySafeDirs); v != "" {
			if override := config.SplitList(v, allowlistCap); len(override) > 0 {
				dirs = override
			}
		}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if resolved, err := filepath.EvalSymlinks(d); err == nil {
			d = resolved
		}
		out = append(out, d)
	}
	return out
}

func inSafeDir(execPath string) bool {
	for _, d := range safeDirs() {
		if strings.HasPrefix(execPath, strings.TrimRight(d, "/")+"/") {
			return true
		}
	}
	return false
}

// envAllowlist parses the extra environment variable names preserved under
// trimming. Keys must be [A-Z0-9_] and at most 64 characters.
func envAllowlist() []string {
	v := os.Getenv(config.EnvNotifyEnvAllow)
	if v == "" {
		return nil
	}
	var out []string
	for _, key := range config.SplitList(v, 0) {
		if len(key) > envKeyMaxLen || !validEnvKey(key) {
			continue
		}
		out = append(out, key)
		if len(out) >= envAllowCap {
			break
		}
	}
	return out
}

func validEnvKey(key string) bool {
	for i := 0; i < len(key); i++ {
		b := key[i]
		if (b < 'A' || b > 'Z') && (b < '0' || b > '9') && b != '_' {
			return false
		}
	}
	return len(key) > 0
}

// maxRequestArgs returns the cap on caller-supplied arguments, clamped.
func maxRequestArgs() int {
	n := defaultMaxArgs
	if v := strings.TrimSpace(os.Getenv(config.EnvNotifyMaxArgs)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			n = min(max(parsed, minMaxArgs), maxMaxArgs)
		}
	}
	return n
}

// validate checks the request against the loaded command configuration and
// returns the final argv (excluding the executable).
func validate(cfg Command, cmd string, args []string) ([]string, error) {
	if !inSafeDir(cfg.ExecPath) {
		return nil, &PolicyError{
			Reason: fmt.Sprintf("notifications executable '%s' is not in a safe directory", cfg.ExecPath),
		}
	}

	basename := cfg.Basename()
	allowed := false
	for _, b := range allowedBasenames() {
		if b == basename {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &PolicyError{Reason: fmt.Sprintf("command '%s' not allowed for notifications", basename)}
	}

	if len(cmd) > maxCmdLen {
		return nil, &PolicyError{Reason: "cmd too long"}
	}
	if cmd != basename {
		return nil, &PolicyError{
			Reason: fmt.Sprintf("only executable basename '%s' is accepted (got '%s')", basename, cmd),
		}
	}

	if len(args) > maxArgCount {
		return nil, &PolicyError{Reason: "too many or too long args"}
	}
	for _, a := range args {
		if len(a) > maxArgLen {
			return nil, &PolicyError{Reason: "too many or too long args"}
		}
	}

	if cfg.HasPlaceholder {
		limit := maxRequestArgs()
		final := append([]string(nil), cfg.FixedArgs...)
		if len(args) > limit {
			args = args[:limit]
		}
		return append(final, args...), nil
	}

	// Without a placeholder the request must match the fixed args exactly.
	if len(args) != len(cfg.FixedArgs) {
		return nil, argsMismatch(cfg.FixedArgs, args)
	}
	for i := range args {
		if args[i] != cfg.FixedArgs[i] {
			return nil, argsMismatch(cfg.FixedArgs, args)
		}
	}
	return append([]string(nil), cfg.FixedArgs...), nil
}

func argsMismatch(configured, requested []string) error {
	return &PolicyError{
		Reason: fmt.Sprintf("arguments mismatch: configured %q vs requested %q", configured, requested),
	}
}
