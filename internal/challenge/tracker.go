package challenge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vigil/internal/domain"
	"vigil/internal/revoke"
	"vigil/internal/store"
	"vigil/pkg/platform/sentinel"
)

var (
	windowsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_challenge_windows_opened_total",
		Help: "Challenge windows opened for device handshakes",
	})
	timeoutRevocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_challenge_timeout_revocations_total",
		Help: "Devices revoked for missing the challenge deadline",
	})
)

// Revoker is the slice of the revocation service the tracker needs.
type Revoker interface {
	Revoke(ctx context.Context, deviceID string) (revoke.Report, error)
}

// Tracker opens bounded challenge windows and enforces their deadlines. A
// device that never establishes a verified binding within its window loses
// every credential attached to its identity.
type Tracker struct {
	windows        store.WindowStore
	bindings       store.BindingStore
	revoker        Revoker
	logger         *slog.Logger
	responseWindow time.Duration
}

func NewTracker(windows store.WindowStore, bindings store.BindingStore, revoker Revoker, logger *slog.Logger, responseWindow time.Duration) *Tracker {
	return &Tracker{
		windows:        windows,
		bindings:       bindings,
		revoker:        revoker,
		logger:         logger,
		responseWindow: responseWindow,
	}
}

// OpenWindow records the challenge completion deadline for a device,
// replacing any prior window. A missing deviceID is a no-op: nothing to
// track.
func (t *Tracker) OpenWindow(ctx context.Context, deviceID string, now time.Time) error {
	if deviceID == "" {
		return nil
	}
	window := domain.ChallengeWindow{
		DeviceID:  deviceID,
		ExpiresAt: now.Add(t.responseWindow),
	}
	if err := t.windows.Save(ctx, window); err != nil {
		return err
	}
	windowsOpened.Inc()
	t.logger.Info("challenge window opened",
		"device_id", deviceID, "expires_at", window.ExpiresAt)
	return nil
}

// CheckAndEnforceTimeout runs once per window expiry, invoked by the
// external scheduler. A device that already completed its handshake holds a
// verified binding and is never penalized for window bookkeeping; without
// one, every attached credential is revoked. Returns whether revocation
// fired so the scheduler can observe the enforcement.
func (t *Tracker) CheckAndEnforceTimeout(ctx context.Context, deviceID string, now time.Time) (bool, error) {
	if deviceID == "" {
		return false, nil
	}

	_, err := t.bindings.Find(ctx, deviceID)
	if err == nil {
		t.logger.Info("device completed handshake in time, no action",
			"device_id", deviceID)
		return false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		// Store trouble is not proof the device missed its deadline;
		// leave enforcement to the scheduler's retry.
		return false, err
	}

	// A still-live window means the scheduler fired early; the device may
	// yet complete its handshake. Revoking here would be a false positive.
	if window, werr := t.windows.Find(ctx, deviceID); werr == nil && !window.Expired(now) {
		t.logger.Info("challenge window still open, deferring timeout check",
			"device_id", deviceID, "expires_at", window.ExpiresAt)
		return false, nil
	}

	t.logger.Warn("challenge window expired without a verified binding, revoking",
		"device_id", deviceID, "checked_at", now)
	report, err := t.revoker.Revoke(ctx, deviceID)
	if err != nil {
		return false, err
	}
	timeoutRevocations.Inc()
	t.logger.Info("timeout revocation complete",
		"device_id", deviceID,
		"revoked", report.Revoked(),
		"failed", report.Failed())
	return true, nil
}
