// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// killGracePeriod is how long KillProcess waits after SIGTERM before
// escalating to SIGKILL.
const killGracePeriod = 500 * time.Millisecond

// KillProcess terminates a process by its ID. It sends SIGTERM first and
// escalates to SIGKILL when the process is still alive after a short grace
// period.
func KillProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}

	time.Sleep(killGracePeriod)

	alive, err := FindProcess(pid)
	if err != nil || !alive {
		return nil
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to send SIGKILL to process: %w", err)
	}
	return nil
}
