// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package process

import (
	"fmt"
	"syscall"
	"unsafe"
)

const (
	processQueryInformation = 0x0400
	stillActive             = 259
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	openProcess        = kernel32.NewProc("OpenProcess")
	getExitCodeProcess = kernel32.NewProc("GetExitCodeProcess")
	closeHandle        = kernel32.NewProc("CloseHandle")
)

// FindProcess checks whether a process with the given ID is running.
func FindProcess(pid int) (bool, error) {
	handle, _, _ := openProcess.Call(
		uintptr(processQueryInformation),
		uintptr(0),
		uintptr(pid),
	)
	if handle == 0 {
		return false, nil
	}
	defer closeHandle.Call(handle)

	var exitCode uint32
	ret, _, err := getExitCodeProcess.Call(
		handle,
		uintptr(unsafe.Pointer(&exitCode)),
	)
	if ret == 0 {
		return false, fmt.Errorf("failed to get process exit code: %w", err)
	}
	return exitCode == stillActive, nil
}
