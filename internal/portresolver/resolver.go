package portresolver

import (
	"context"
	"log/slog"
	"time"

	"vigil/pkg/platform/sentinel"
)

// ConnectEvent is one connection-open record from the transport's connect
// logs. SourcePort is the port the network actually saw, which makes the
// log history the source of truth for fingerprint resolution.
type ConnectEvent struct {
	ClientID   string
	IPAddr     string
	SourcePort int
	Timestamp  time.Time
}

// LogQuery retrieves connect events for a client identity within a trailing
// window. An empty ip matches any address (the lenient variant).
type LogQuery interface {
	ConnectEvents(ctx context.Context, clientID, ip string, since time.Time) ([]ConnectEvent, error)
}

// Resolver recovers the source port observed for a device's most recent
// connection. Unresolved is a value, not a fault: callers treat it as a
// verification failure.
type Resolver struct {
	logs   LogQuery
	logger *slog.Logger
}

func New(logs LogQuery, logger *slog.Logger) *Resolver {
	return &Resolver{logs: logs, logger: logger}
}

// Resolve returns the source port of the single most recent connect event
// matching the device (and ip, when non-empty) within the trailing window
// ending at now. Stale matches are ignored; no match maps to
// sentinel.ErrUnresolved, as does a log-query transport failure — an
// inability to confirm what the network saw must never resolve to a port.
func (r *Resolver) Resolve(ctx context.Context, deviceID, ip string, window time.Duration, now time.Time) (int, error) {
	since := now.Add(-window)
	events, err := r.logs.ConnectEvents(ctx, deviceID, ip, since)
	if err != nil {
		r.logger.Warn("connect log query failed, treating as unresolved",
			"device_id", deviceID, "ip", ip, "error", err)
		return 0, sentinel.ErrUnresolved
	}

	var (
		best  ConnectEvent
		found bool
	)
	for _, ev := range events {
		if ev.ClientID != deviceID {
			continue
		}
		if ip != "" && ev.IPAddr != ip {
			continue
		}
		if ev.Timestamp.Before(since) {
			continue
		}
		if !found || ev.Timestamp.After(best.Timestamp) {
			best = ev
			found = true
		}
	}
	if !found {
		return 0, sentinel.ErrUnresolved
	}
	return best.SourcePort, nil
}
