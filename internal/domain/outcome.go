package domain

// Outcome identifies which branch of the verification gate fired for a
// telemetry submission. Callers and tests assert on the variant instead of
// inferring it from the absence of a side effect.
type Outcome int

const (
	// OutcomeAccepted: fingerprint verified (cache or store), reading persisted.
	OutcomeAccepted Outcome = iota
	// OutcomeRejectedMismatch: a binding exists but disagrees with the
	// submission's fingerprint, or no binding exists at all.
	OutcomeRejectedMismatch
	// OutcomeRejectedMalformed: required fields missing; dropped with no
	// side effects.
	OutcomeRejectedMalformed
	// OutcomeRejectedUnresolved: no connect event matched within the window,
	// so the source port could not be recovered.
	OutcomeRejectedUnresolved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejectedMismatch:
		return "rejected_mismatch"
	case OutcomeRejectedMalformed:
		return "rejected_malformed"
	case OutcomeRejectedUnresolved:
		return "rejected_unresolved"
	default:
		return "unknown"
	}
}

// Rejected reports whether the outcome is any rejection variant.
func (o Outcome) Rejected() bool {
	return o != OutcomeAccepted
}

// Banned reports whether the outcome produced a ban record and revocation.
// Malformed input is dropped before the gate runs and never bans.
func (o Outcome) Banned() bool {
	return o == OutcomeRejectedMismatch || o == OutcomeRejectedUnresolved
}
