package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: no session state stored under the key
//   - ErrConflict: compare-and-swap lost against a newer write
//   - ErrExpired: cookie or session past its lifetime
//   - ErrUnavailable: backing store or upstream API temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
