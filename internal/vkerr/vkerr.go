// Package vkerr names the kinds of failure the timing layer can surface,
// following the taxonomy it is observational about: setup failures,
// duplicate registration, instrumentation failures, harvest anomalies, and
// unsupported queues.
package vkerr

import "errors"

var (
	ErrAlreadyRegistered = errors.New("vktiming: handle already registered")
	ErrNotRegistered     = errors.New("vktiming: handle not registered")
	ErrUnsupportedQueue  = errors.New("vktiming: queue family does not support timestamps")
	ErrSubmitFailed      = errors.New("vktiming: wrapped submit failed")
	ErrSyncAbandoned     = errors.New("vktiming: sync handshake abandoned after poll budget exhausted")
	ErrQueueExiting      = errors.New("vktiming: queue is tearing down")
	ErrHarvestAnomaly    = errors.New("vktiming: query result unavailable or disjoint")
)
