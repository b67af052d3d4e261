package store

import (
	"context"
	"time"

	"vigil/internal/domain"
)

// Stores are interface-driven so the verification state machine can be
// exercised against in-memory fakes and swapped onto Redis or Postgres
// without rewiring business code. Each keyed record set gets its own
// single-capability contract.

// WindowStore holds challenge windows keyed by device.
type WindowStore interface {
	Save(ctx context.Context, window domain.ChallengeWindow) error
	Find(ctx context.Context, deviceID string) (domain.ChallengeWindow, error)
}

// BindingStore holds the last-verified fingerprint per device.
type BindingStore interface {
	Save(ctx context.Context, binding domain.VerifiedBinding) error
	Find(ctx context.Context, deviceID string) (domain.VerifiedBinding, error)
	// Touch refreshes only the binding's lastCheckedAt.
	Touch(ctx context.Context, deviceID string, at time.Time) error
}

// BanStore is append-only; repeated bans each produce a new record.
type BanStore interface {
	Append(ctx context.Context, ban domain.BanRecord) error
}

// ReadingStore is append-only; readings are never read back by this core.
type ReadingStore interface {
	Append(ctx context.Context, reading domain.SensorReading) error
}
