package verify

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vigil/internal/domain"
	"vigil/internal/portresolver"
	"vigil/internal/revoke"
	"vigil/internal/store"
)

var (
	gateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_gate_outcomes_total",
		Help: "Telemetry submissions by gate outcome",
	}, []string{"outcome"})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_verification_cache_hits_total",
		Help: "Verifications satisfied by the fast-path cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_verification_cache_misses_total",
		Help: "Verifications that fell through to the binding store",
	})
	gateDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigil_gate_duration_ms",
		Help:    "Latency of gate decisions in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})
)

// TelemetryEvent is one inbound telemetry submission. Temperature and
// Humidity are pointers so a missing field is distinguishable from zero.
type TelemetryEvent struct {
	DeviceID    string
	IPAddr      string
	Timestamp   time.Time
	Temperature *float64
	Humidity    *float64
}

// Revoker is the slice of the revocation service the gate needs.
type Revoker interface {
	Revoke(ctx context.Context, deviceID string) (revoke.Report, error)
}

// Gate re-verifies every telemetry submission against the device's
// last-verified fingerprint and routes it to "accept and persist" or
// "reject and revoke". It fails closed: an inability to confirm trust is
// never treated as trust.
type Gate struct {
	cache          *Cache
	bindings       store.BindingStore
	readings       store.ReadingStore
	bans           store.BanStore
	resolver       *portresolver.Resolver
	revoker        Revoker
	logger         *slog.Logger
	resolverWindow time.Duration
}

func NewGate(
	cache *Cache,
	bindings store.BindingStore,
	readings store.ReadingStore,
	bans store.BanStore,
	resolver *portresolver.Resolver,
	revoker Revoker,
	logger *slog.Logger,
	resolverWindow time.Duration,
) *Gate {
	return &Gate{
		cache:          cache,
		bindings:       bindings,
		readings:       readings,
		bans:           bans,
		resolver:       resolver,
		revoker:        revoker,
		logger:         logger,
		resolverWindow: resolverWindow,
	}
}

// Process runs one submission through the verification state machine and
// returns which branch fired. Malformed input short-circuits with zero side
// effects; every other rejection writes exactly one ban record and issues
// revocation.
func (g *Gate) Process(ctx context.Context, ev TelemetryEvent, now time.Time) (domain.Outcome, error) {
	start := time.Now()
	defer func() {
		gateDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if !g.wellFormed(ev) {
		g.logger.Error("malformed telemetry event dropped",
			"device_id", ev.DeviceID, "ip", ev.IPAddr)
		gateOutcomes.WithLabelValues(domain.OutcomeRejectedMalformed.String()).Inc()
		return domain.OutcomeRejectedMalformed, nil
	}

	g.cache.PurgeExpired(now)

	port, err := g.resolver.Resolve(ctx, ev.DeviceID, ev.IPAddr, g.resolverWindow, now)
	unresolved := err != nil
	if unresolved {
		// The sentinel can never equal a stored binding's port, so an
		// unresolved submission is guaranteed to fall through to rejection.
		port = domain.PortUnresolved
		g.logger.Warn("source port unresolved",
			"device_id", ev.DeviceID, "ip", ev.IPAddr)
	}

	fp := domain.Fingerprint{DeviceID: ev.DeviceID, IPAddr: ev.IPAddr, Port: port}

	if g.cache.Lookup(fp.CacheKey(), now) {
		cacheHits.Inc()
		if err := g.persistReading(ctx, ev, port, now); err != nil {
			return domain.OutcomeAccepted, err
		}
		gateOutcomes.WithLabelValues(domain.OutcomeAccepted.String()).Inc()
		return domain.OutcomeAccepted, nil
	}
	cacheMisses.Inc()

	// A store read failure is deliberately folded into "no binding": the
	// gate fails closed, not open.
	binding, err := g.bindings.Find(ctx, ev.DeviceID)
	verified := err == nil && binding.Matches(fp)

	if verified {
		g.cache.Insert(fp.CacheKey(), now)
		if err := g.persistReading(ctx, ev, port, now); err != nil {
			return domain.OutcomeAccepted, err
		}
		if err := g.bindings.Touch(ctx, ev.DeviceID, now); err != nil {
			g.logger.Warn("failed to refresh binding last-checked time",
				"device_id", ev.DeviceID, "error", err)
		}
		gateOutcomes.WithLabelValues(domain.OutcomeAccepted.String()).Inc()
		return domain.OutcomeAccepted, nil
	}

	outcome := domain.OutcomeRejectedMismatch
	if unresolved {
		outcome = domain.OutcomeRejectedUnresolved
	}
	g.logger.Warn("fingerprint verification failed, banning device",
		"device_id", ev.DeviceID, "ip", ev.IPAddr, "port", port,
		"outcome", outcome.String())

	ban := domain.BanRecord{
		DeviceID: ev.DeviceID,
		IPAddr:   ev.IPAddr,
		Port:     port,
		BannedAt: now,
	}
	if err := g.bans.Append(ctx, ban); err != nil {
		g.logger.Error("failed to persist ban record",
			"device_id", ev.DeviceID, "error", err)
	}
	if _, err := g.revoker.Revoke(ctx, ev.DeviceID); err != nil {
		g.logger.Error("revocation failed",
			"device_id", ev.DeviceID, "error", err)
	}
	gateOutcomes.WithLabelValues(outcome.String()).Inc()
	return outcome, nil
}

func (g *Gate) wellFormed(ev TelemetryEvent) bool {
	if ev.DeviceID == "" || ev.IPAddr == "" {
		return false
	}
	if ev.Temperature == nil || ev.Humidity == nil {
		return false
	}
	return net.ParseIP(ev.IPAddr) != nil
}

func (g *Gate) persistReading(ctx context.Context, ev TelemetryEvent, port int, now time.Time) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = now
	}
	reading := domain.SensorReading{
		DeviceID:    ev.DeviceID,
		Timestamp:   ts,
		IPAddr:      ev.IPAddr,
		Port:        port,
		Temperature: *ev.Temperature,
		Humidity:    *ev.Humidity,
	}
	return g.readings.Append(ctx, reading)
}
