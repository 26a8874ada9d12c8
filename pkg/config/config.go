// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the environment-controlled knobs of the toolexec
// proxy. All settings are read from the environment via viper; nothing here
// is persisted.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment variable names understood by the proxy.
const (
	// EnvExecMaxSecs bounds the total wait for a supervised execution.
	EnvExecMaxSecs = "AIFO_TOOLEEXEC_MAX_SECS"
	// EnvExecTimeoutSecs is the legacy spelling of EnvExecMaxSecs.
	EnvExecTimeoutSecs = "AIFO_TOOLEEXEC_TIMEOUT_SECS"
	// EnvUseUnixSocket selects a Unix domain socket transport (Linux only).
	EnvUseUnixSocket = "AIFO_TOOLEEXEC_USE_UNIX"
	// EnvStreamTTY disables TTY allocation for streaming execs when "0".
	EnvStreamTTY = "AIFO_TOOLEEXEC_TTY"
	// EnvNotifyConfig overrides the notification policy file path.
	EnvNotifyConfig = "AIFO_NOTIFICATIONS_CONFIG"
	// EnvNotifyAllowlist extends the notification basename allow-list.
	EnvNotifyAllowlist = "AIFO_NOTIFICATIONS_ALLOWLIST"
	// EnvNotifyMaxArgs caps caller-supplied notification arguments.
	EnvNotifyMaxArgs = "AIFO_NOTIFICATIONS_MAX_ARGS"
	// EnvNotifyNoAuth skips bearer auth on the notifications endpoint.
	EnvNotifyNoAuth = "AIFO_NOTIFICATIONS_NOAUTH"
	// EnvNotifyTrimEnv trims the child environment for notifications.
	EnvNotifyTrimEnv = "AIFO_NOTIFICATIONS_TRIM_ENV"
	// EnvNotifyEnvAllow lists extra env vars preserved under EnvNotifyTrimEnv.
	EnvNotifyEnvAllow = "AIFO_NOTIFICATIONS_ENV_ALLOW"
	// EnvNotifySafeDirs overrides the safe executable directories.
	EnvNotifySafeDirs = "AIFO_NOTIFICATIONS_SAFE_DIRS"
	// EnvNotifyUnsafeAllow must be "1" for EnvNotifySafeDirs to take effect.
	EnvNotifyUnsafeAllow = "AIFO_NOTIFICATIONS_UNSAFE_ALLOWLIST"
)

// DefaultExecTimeout bounds supervised executions when no env override is
// set. An explicit "0" disables the limit.
const DefaultExecTimeout = 10 * time.Second

// Config captures the proxy's environment-derived settings, resolved once at
// startup. The zero value disables the timeout and uses TCP transport.
type Config struct {
	// ExecTimeout bounds each supervised execution. Zero means no limit.
	ExecTimeout time.Duration

	// UseUnixSocket selects a Unix domain socket listener on Linux.
	UseUnixSocket bool

	// StreamTTY allocates a TTY for streaming execs to improve flushing.
	StreamTTY bool
}

// Load reads the proxy configuration from the environment.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	timeout := DefaultExecTimeout
	if raw := v.GetString(EnvExecMaxSecs); raw != "" {
		timeout = time.Duration(v.GetInt(EnvExecMaxSecs)) * time.Second
	} else if raw := v.GetString(EnvExecTimeoutSecs); raw != "" {
		timeout = time.Duration(v.GetInt(EnvExecTimeoutSecs)) * time.Second
	}
	if timeout < 0 {
		timeout = 0
	}

	return Config{
		ExecTimeout:   timeout,
		UseUnixSocket: runtime.GOOS == "linux" && v.GetString(EnvUseUnixSocket) == "1",
		StreamTTY:     v.GetString(EnvStreamTTY) != "0",
	}
}

// NotifyConfigPath resolves the notification policy file: the override env
// var when set, otherwise ~/.aider.conf.yml.
func NotifyConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvNotifyConfig)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aider.conf.yml"), nil
}

// SplitList parses a comma-separated env list into trimmed, de-duplicated
// entries, capped at max (0 means no cap).
func SplitList(value string, max int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(value, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
