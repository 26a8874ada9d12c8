// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package process

import (
	"errors"
	"syscall"
)

// FindProcess checks whether a process with the given ID is running.
func FindProcess(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	// Signal 0 performs the permission and existence checks without
	// delivering a signal.
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return false, nil
	}
	if errors.Is(err, syscall.EPERM) {
		// The process exists but belongs to another user.
		return true, nil
	}
	return false, err
}
