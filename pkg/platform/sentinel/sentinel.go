package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: employee or note does not exist in the store
// - ErrConflict: uniqueness constraint hit (employee email)
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, out-of-enumeration stages), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
