// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTimeout(t *testing.T) {
	tests := []struct {
		name     string
		envs     map[string]string
		expected time.Duration
	}{
		{
			name:     "unset uses the default",
			envs:     nil,
			expected: DefaultExecTimeout,
		},
		{
			name:     "max secs wins",
			envs:     map[string]string{EnvExecMaxSecs: "7", EnvExecTimeoutSecs: "3"},
			expected: 7 * time.Second,
		},
		{
			name:     "legacy spelling honored",
			envs:     map[string]string{EnvExecTimeoutSecs: "3"},
			expected: 3 * time.Second,
		},
		{
			name:     "explicit zero disables the timeout",
			envs:     map[string]string{EnvExecMaxSecs: "0"},
			expected: 0,
		},
		{
			name:     "garbage disables rather than guessing",
			envs:     map[string]string{EnvExecTimeoutSecs: "nope"},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}
			cfg := Load()
			assert.Equal(t, tt.expected, cfg.ExecTimeout)
		})
	}
}

func TestLoadStreamTTY(t *testing.T) {
	cfg := Load()
	assert.True(t, cfg.StreamTTY, "TTY allocation defaults on")

	t.Setenv(EnvStreamTTY, "0")
	cfg = Load()
	assert.False(t, cfg.StreamTTY)
}

func TestNotifyConfigPath(t *testing.T) {
	t.Setenv(EnvNotifyConfig, "/tmp/custom.yml")
	p, err := NotifyConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yml", p)

	t.Setenv(EnvNotifyConfig, "   ")
	p, err = NotifyConfigPath()
	require.NoError(t, err)
	assert.Equal(t, ".aider.conf.yml", filepath.Base(p))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("", 0))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a , b ,, a ", 0))
	assert.Equal(t, []string{"a", "b"}, SplitList("a,b,c,d", 2))
}
