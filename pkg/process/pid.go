// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package process provides utilities for managing process-related operations,
// such as session PID files and process termination.
package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

// GetPIDFilePath returns the path to the PID file for a proxy session.
func GetPIDFilePath(sessionID string) (string, error) {
	pidPath, err := xdg.DataFile(filepath.Join("aifo-coder", "sessions", fmt.Sprintf("%s.pid", sessionID)))
	if err != nil {
		return "", fmt.Errorf("failed to get PID file path: %w", err)
	}
	return pidPath, nil
}

// WritePIDFile records a process ID for a proxy session.
func WritePIDFile(sessionID string, pid int) error {
	path, err := GetPIDFilePath(sessionID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// WriteCurrentPIDFile records the current process ID for a proxy session.
func WriteCurrentPIDFile(sessionID string) error {
	return WritePIDFile(sessionID, os.Getpid())
}

// ReadPIDFile reads the recorded process ID for a proxy session.
func ReadPIDFile(sessionID string) (int, error) {
	path, err := GetPIDFilePath(sessionID)
	if err != nil {
		return 0, err
	}
	pidBytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file of a proxy session. A missing file is
// not an error.
func RemovePIDFile(sessionID string) error {
	path, err := GetPIDFilePath(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
