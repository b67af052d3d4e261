package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can branch on the fact without knowing
// the backend.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in a store
// - ErrUnavailable: store or registry temporarily unreachable
// - ErrUnknownIdentity: the credential registry has no record of the device
// - ErrUnresolved: no connect event matched the log query window
var (
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("unavailable")
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrUnresolved      = errors.New("unresolved")
)
