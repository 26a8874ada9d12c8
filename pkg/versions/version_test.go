// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package versions

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) { //nolint:paralleltest // modifies package globals
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		check     func(t *testing.T, v VersionInfo)
	}{
		{
			name:      "release version with RFC3339 date",
			version:   "v1.2.3",
			commit:    "abc123def456789",
			buildDate: "2026-01-15T10:30:00Z",
			check: func(t *testing.T, v VersionInfo) {
				t.Helper()
				assert.Equal(t, "v1.2.3", v.Version)
				assert.Equal(t, "abc123def456789", v.Commit)
				assert.Equal(t, "2026-01-15 10:30:00 UTC", v.BuildDate)
			},
		},
		{
			name:      "dev version derives pseudo-version from commit",
			version:   "dev",
			commit:    "abc123def456789",
			buildDate: unknownStr,
			check: func(t *testing.T, v VersionInfo) {
				t.Helper()
				assert.Equal(t, "build-abc123de", v.Version)
				assert.Equal(t, unknownStr, v.BuildDate)
			},
		},
		{
			name:      "dev version with short commit",
			version:   "dev",
			commit:    "short",
			buildDate: unknownStr,
			check: func(t *testing.T, v VersionInfo) {
				t.Helper()
				assert.Equal(t, "build-short", v.Version)
			},
		},
		{
			name:      "dev version without commit",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			check: func(t *testing.T, v VersionInfo) {
				t.Helper()
				assert.True(t, strings.HasPrefix(v.Version, "build-"))
				assert.Equal(t, unknownStr, v.Commit)
			},
		},
		{
			name:      "unparseable date passes through",
			version:   "v2.0.0",
			commit:    "def456",
			buildDate: "not-a-date",
			check: func(t *testing.T, v VersionInfo) {
				t.Helper()
				assert.Equal(t, "not-a-date", v.BuildDate)
			},
		},
	}

	for _, tt := range tests { //nolint:paralleltest // modifies package globals
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, BuildDate = tt.version, tt.commit, tt.buildDate

			got := GetVersionInfo()
			tt.check(t, got)
			assert.Equal(t, runtime.Version(), got.GoVersion)
			assert.Equal(t, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), got.Platform)
		})
	}
}
