package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Ledger stores return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: a unique constraint already holds a different row
//   - ErrInvalidState: a conditional write matched no row (e.g. insufficient spendable)
//   - ErrUnavailable: store unreachable or timed out; outcome unknown
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
