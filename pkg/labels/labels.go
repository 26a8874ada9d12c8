// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package labels provides utilities for managing container labels
// used by the aifo-coder application.
package labels

import (
	"fmt"
	"strings"
)

const (
	// LabelManaged is the label that indicates a container or network is
	// managed by aifo-coder.
	LabelManaged = "aifo-coder"

	// LabelSession is the label that contains the session identifier.
	LabelSession = "aifo-coder-session"

	// LabelKind is the label that contains the toolchain kind of a sidecar.
	LabelKind = "aifo-coder-kind"

	// LabelName is the label that contains the resource name.
	LabelName = "aifo-coder-name"

	// LabelManagedValue is the value for the LabelManaged label.
	LabelManagedValue = "true"
)

// AddSidecarLabels adds the standard labels to a toolchain sidecar container.
func AddSidecarLabels(labels map[string]string, name, sessionID, kind string) {
	labels[LabelManaged] = LabelManagedValue
	labels[LabelName] = name
	labels[LabelSession] = sessionID
	labels[LabelKind] = kind
}

// AddNetworkLabels adds the standard labels to a session network.
func AddNetworkLabels(labels map[string]string, name string) {
	labels[LabelManaged] = LabelManagedValue
	labels[LabelName] = name
}

// ManagedFilter formats a list filter matching aifo-coder managed resources.
func ManagedFilter() string {
	return fmt.Sprintf("%s=%s", LabelManaged, LabelManagedValue)
}

// SessionFilter formats a list filter matching one session's resources.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s=%s", LabelSession, sessionID)
}

// IsManaged checks whether a label set belongs to an aifo-coder resource.
func IsManaged(labels map[string]string) bool {
	value, ok := labels[LabelManaged]
	return ok && strings.EqualFold(value, LabelManagedValue)
}

// GetSessionID gets the session identifier from labels.
func GetSessionID(labels map[string]string) string {
	return labels[LabelSession]
}

// GetKind gets the toolchain kind from labels.
func GetKind(labels map[string]string) string {
	return labels[LabelKind]
}
