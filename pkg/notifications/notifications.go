// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifications

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aifo-ai/aifo-coder/pkg/config"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
	"github.com/aifo-ai/aifo-coder/pkg/supervisor"
)

// ErrTimeout reports that the notification command ran past the deadline and
// was terminated.
var ErrTimeout = errors.New("notification command timed out")

// SpawnError reports that the executable could not be started.
type SpawnError struct {
	Basename string
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("host '%s' execution failed: %v", e.Basename, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExecBasename returns the configured executable basename after structural
// validation, for callers that authenticate by command name.
func ExecBasename() (string, error) {
	cfg, err := LoadCommand()
	if err != nil {
		return "", err
	}
	return cfg.Basename(), nil
}

// HandleRequest validates the requested command against the configured
// policy and, if allowed, runs it with the given timeout. The returned bytes
// are stdout followed by stderr.
func HandleRequest(ctx context.Context, cmd string, args []string, timeout time.Duration) (int, []byte, error) {
	cfg, err := LoadCommand()
	if err != nil {
		return 0, nil, err
	}

	finalArgs, err := validate(cfg, cmd, args)
	if err != nil {
		return 0, nil, err
	}

	logger.Debugf("Running notification command %s with %d args", cfg.ExecPath, len(finalArgs))
	proc, err := supervisor.StartHostProcess(ctx, cfg.ExecPath, finalArgs, childEnv())
	if err != nil {
		return 0, nil, &SpawnError{Basename: cfg.Basename(), Err: err}
	}

	res, err := supervisor.Run(ctx, proc, timeout, proc.Signal)
	if err != nil {
		return 0, nil, &SpawnError{Basename: cfg.Basename(), Err: err}
	}
	output := append(res.Stdout, res.Stderr...)
	if res.TimedOut {
		return supervisor.TimeoutExitCode, output, ErrTimeout
	}
	return res.ExitCode, output, nil
}

// childEnv builds the child environment. Without the trim opt-in the parent
// environment is inherited. With it, only PATH, HOME, LANG, LC_* and the
// explicit allowlist survive.
func childEnv() []string {
	if os.Getenv(config.EnvNotifyTrimEnv) != "1" {
		return nil
	}

	var env []string
	if v := os.Getenv("PATH"); v != "" {
		env = append(env, "PATH="+v)
	} else {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	if v := os.Getenv("HOME"); v != "" {
		env = append(env, "HOME="+v)
	}
	if v := os.Getenv("LANG"); v != "" {
		env = append(env, "LANG="+v)
	} else {
		env = append(env, "LANG=C.UTF-8")
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "LC_") {
			if eq := strings.IndexByte(kv, '='); eq > 0 && eq < len(kv)-1 {
				env = append(env, kv)
			}
		}
	}
	for _, key := range envAllowlist() {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}
