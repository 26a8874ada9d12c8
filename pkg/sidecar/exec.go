// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// Paths shared with the sidecar images.
const (
	// WorkspaceDir is where the agent workspace is mounted in every sidecar.
	WorkspaceDir = "/workspace"
	// homeDir is the fixed home of the sidecar user.
	homeDir = "/home/coder"
	// execStateDir holds per-exec process group files for signal delivery.
	execStateDir = "/home/coder/.aifo-exec"
)

// ExecRequest describes one tool invocation inside a sidecar.
type ExecRequest struct {
	// Tool is the requested tool name.
	Tool string
	// Args are the tool arguments.
	Args []string
	// HostCwd is the request working directory on the host, used to detect a
	// project-local tsc install.
	HostCwd string
	// ExecID identifies this execution for later signal delivery.
	ExecID string
	// User is the uid:gid to run as ("" keeps the image default).
	User string
	// Streaming wraps the command so its process group can be signalled and
	// stderr is merged into stdout.
	Streaming bool
	// TTY allocates a pseudo-terminal on the streaming path.
	TTY bool
}

// BuildExecSpec translates an ExecRequest into the runtime exec spec.
func BuildExecSpec(req ExecRequest) runtime.ExecSpec {
	argv := resolveToolArgv(req.Tool, req.Args, req.HostCwd)

	env := []string{
		"HOME=" + homeDir,
		"GNUPGHOME=" + homeDir + "/.gnupg",
	}
	if req.ExecID != "" {
		env = append(env, "AIFO_EXEC_ID="+req.ExecID)
	}

	spec := runtime.ExecSpec{
		WorkingDir: WorkspaceDir,
		Env:        env,
		User:       req.User,
	}
	switch {
	case req.Streaming:
		spec.Cmd = []string{"sh", "-c", groupWrapper(argv, true)}
		spec.TTY = req.TTY
	case req.ExecID != "":
		// Buffered execs still record a pgid so a timeout can kill the
		// whole group, but keep stdout and stderr separate.
		spec.Cmd = []string{"sh", "-c", groupWrapper(argv, false)}
	default:
		spec.Cmd = argv
	}
	return spec
}

// resolveToolArgv builds the argv for a tool. tsc prefers the project-local
// install and falls back to npx.
func resolveToolArgv(tool string, args []string, hostCwd string) []string {
	var argv []string
	if tool == "tsc" {
		local := filepath.Join(hostCwd, "node_modules", ".bin", "tsc")
		if _, err := os.Stat(local); err == nil {
			logger.Debugf("tsc via local node_modules")
			argv = []string{"./node_modules/.bin/tsc"}
		} else {
			logger.Debugf("tsc via npx")
			argv = []string{"npx", "tsc"}
		}
	} else {
		argv = []string{tool}
	}
	return append(argv, args...)
}

// groupWrapper wraps argv in a setsid subshell that records its process group
// id under the exec state dir, so the whole group can be signalled later. On
// the streaming path stderr is merged into stdout. Without an exec id the
// command runs directly.
func groupWrapper(argv []string, mergeStderr bool) string {
	inner := ShellJoin(argv)
	redirect := ""
	if mergeStderr {
		redirect = " 2>&1"
	}
	return fmt.Sprintf(
		`set -e; d="%s/${AIFO_EXEC_ID:-}"; if [ -z "$d" ]; then exec %s%s; fi; `+
			`mkdir -p "$d"; ( setsid sh -lc "exec %s%s" ) & pg=$!; printf "%%s" "$pg" > "$d/pgid"; wait "$pg"`,
		execStateDir, inner, redirect, inner, redirect,
	)
}
