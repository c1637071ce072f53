// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrInvalidIntent indicates a structurally invalid or inapplicable intent.
// The engine rejects such intents wholesale: no state change, no effects.
var ErrInvalidIntent = errors.New("invalid intent")

// ErrTurnRunning indicates a thread already has a running turn and the
// caller did not request cancel-and-send.
var ErrTurnRunning = errors.New("turn already running")

// ErrLastTab indicates an attempt to close or archive the last open tab.
var ErrLastTab = errors.New("cannot close the last open tab")
