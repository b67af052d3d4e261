package verify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/domain"
	"vigil/internal/portresolver"
	"vigil/internal/revoke"
	"vigil/internal/store"
)

const (
	gateDevice   = "sensor-42"
	gateIP       = "10.0.0.5"
	gatePort     = 51000
	gateResolver = 5 * time.Minute
)

type fakeLogQuery struct {
	mu     sync.Mutex
	events []portresolver.ConnectEvent
	err    error
}

func (f *fakeLogQuery) ConnectEvents(_ context.Context, _, _ string, _ time.Time) ([]portresolver.ConnectEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]portresolver.ConnectEvent{}, f.events...), nil
}

func (f *fakeLogQuery) setPort(deviceID, ip string, port int, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = []portresolver.ConnectEvent{
		{ClientID: deviceID, IPAddr: ip, SourcePort: port, Timestamp: at},
	}
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeRevoker) Revoke(_ context.Context, deviceID string) (revoke.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, deviceID)
	return revoke.Report{DeviceID: deviceID}, nil
}

func (f *fakeRevoker) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.revoked...)
}

// countingBindingStore wraps the in-memory store to observe read traffic.
type countingBindingStore struct {
	*store.InMemoryBindingStore
	mu    sync.Mutex
	finds int
}

func (c *countingBindingStore) Find(ctx context.Context, deviceID string) (domain.VerifiedBinding, error) {
	c.mu.Lock()
	c.finds++
	c.mu.Unlock()
	return c.InMemoryBindingStore.Find(ctx, deviceID)
}

func (c *countingBindingStore) findCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finds
}

// downBindingStore simulates an unreachable durable store.
type downBindingStore struct{}

func (downBindingStore) Save(context.Context, domain.VerifiedBinding) error {
	return errors.New("store unavailable")
}

func (downBindingStore) Find(context.Context, string) (domain.VerifiedBinding, error) {
	return domain.VerifiedBinding{}, errors.New("store unavailable")
}

func (downBindingStore) Touch(context.Context, string, time.Time) error {
	return errors.New("store unavailable")
}

type GateSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	logs     *fakeLogQuery
	revoker  *fakeRevoker
	bindings *countingBindingStore
	bans     *store.InMemoryBanStore
	readings *store.InMemoryReadingStore
	cache    *Cache
	gate     *Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.logs = &fakeLogQuery{}
	s.revoker = &fakeRevoker{}
	s.bindings = &countingBindingStore{InMemoryBindingStore: store.NewInMemoryBindingStore()}
	s.bans = store.NewInMemoryBanStore()
	s.readings = store.NewInMemoryReadingStore()
	s.cache = NewCache(time.Hour)

	logger := slog.New(slog.DiscardHandler)
	resolver := portresolver.New(s.logs, logger)
	s.gate = NewGate(s.cache, s.bindings, s.readings, s.bans, resolver, s.revoker, logger, gateResolver)
}

func (s *GateSuite) event() TelemetryEvent {
	temp, hum := 21.5, 40.0
	return TelemetryEvent{
		DeviceID:    gateDevice,
		IPAddr:      gateIP,
		Timestamp:   s.now,
		Temperature: &temp,
		Humidity:    &hum,
	}
}

func (s *GateSuite) bindDevice() {
	s.Require().NoError(s.bindings.Save(s.ctx, domain.VerifiedBinding{
		DeviceID:      gateDevice,
		IPAddr:        gateIP,
		Port:          gatePort,
		LastCheckedAt: s.now.Add(-time.Minute),
	}))
}

func (s *GateSuite) TestMalformedInputHasNoSideEffects() {
	temp := 21.5
	cases := map[string]TelemetryEvent{
		"missing device id":   {IPAddr: gateIP, Temperature: &temp, Humidity: &temp},
		"missing ip":          {DeviceID: gateDevice, Temperature: &temp, Humidity: &temp},
		"missing temperature": {DeviceID: gateDevice, IPAddr: gateIP, Humidity: &temp},
		"missing humidity":    {DeviceID: gateDevice, IPAddr: gateIP, Temperature: &temp},
		"invalid ip":          {DeviceID: gateDevice, IPAddr: "not-an-ip", Temperature: &temp, Humidity: &temp},
	}
	for name, ev := range cases {
		s.Run(name, func() {
			outcome, err := s.gate.Process(s.ctx, ev, s.now)
			s.Require().NoError(err)
			s.Equal(domain.OutcomeRejectedMalformed, outcome)
		})
	}

	bans, _ := s.bans.List(s.ctx)
	readings, _ := s.readings.List(s.ctx)
	s.Empty(bans)
	s.Empty(readings)
	s.Empty(s.revoker.calls())
}

// Matching fingerprint: one reading, zero bans, cache populated.
func (s *GateSuite) TestStoreMatchAccepts() {
	s.bindDevice()
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-time.Minute))

	outcome, err := s.gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeAccepted, outcome)

	readings, _ := s.readings.List(s.ctx)
	s.Require().Len(readings, 1)
	s.Equal(gateDevice, readings[0].DeviceID)
	s.Equal(gatePort, readings[0].Port)

	bans, _ := s.bans.List(s.ctx)
	s.Empty(bans)
	s.Empty(s.revoker.calls())
	s.Equal(1, s.cache.Len())

	binding, err := s.bindings.Find(s.ctx, gateDevice)
	s.Require().NoError(err)
	s.Equal(s.now, binding.LastCheckedAt)
}

// Second submission of the same fingerprint must not touch the store.
func (s *GateSuite) TestCacheHitSkipsStore() {
	s.bindDevice()
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-time.Minute))

	_, err := s.gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	storeReads := s.bindings.findCalls()

	outcome, err := s.gate.Process(s.ctx, s.event(), s.now.Add(5*time.Second))
	s.Require().NoError(err)
	s.Equal(domain.OutcomeAccepted, outcome)
	s.Equal(storeReads, s.bindings.findCalls())

	readings, _ := s.readings.List(s.ctx)
	s.Len(readings, 2)
}

func (s *GateSuite) TestNoBindingBans() {
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-time.Minute))

	outcome, err := s.gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeRejectedMismatch, outcome)

	bans, _ := s.bans.List(s.ctx)
	s.Require().Len(bans, 1)
	s.Equal(gateDevice, bans[0].DeviceID)
	s.Equal(gateIP, bans[0].IPAddr)
	s.Equal(gatePort, bans[0].Port)

	readings, _ := s.readings.List(s.ctx)
	s.Empty(readings)
	s.Equal([]string{gateDevice}, s.revoker.calls())
}

func (s *GateSuite) TestFingerprintMismatchBans() {
	s.bindDevice()
	// Device shows up from a different address with a different port.
	s.logs.setPort(gateDevice, "10.0.0.9", 62000, s.now.Add(-time.Minute))
	ev := s.event()
	ev.IPAddr = "10.0.0.9"

	outcome, err := s.gate.Process(s.ctx, ev, s.now)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeRejectedMismatch, outcome)

	bans, _ := s.bans.List(s.ctx)
	s.Require().Len(bans, 1)
	s.Equal(62000, bans[0].Port)
	s.Equal([]string{gateDevice}, s.revoker.calls())
}

func (s *GateSuite) TestUnresolvedPortBans() {
	s.bindDevice()
	// No connect events at all: the sentinel port can never match.
	outcome, err := s.gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeRejectedUnresolved, outcome)

	bans, _ := s.bans.List(s.ctx)
	s.Require().Len(bans, 1)
	s.Equal(domain.PortUnresolved, bans[0].Port)
	s.Equal([]string{gateDevice}, s.revoker.calls())
}

// Store unreachable is never treated as trust.
func (s *GateSuite) TestStoreFailureFailsClosed() {
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-time.Minute))

	logger := slog.New(slog.DiscardHandler)
	resolver := portresolver.New(s.logs, logger)
	gate := NewGate(s.cache, downBindingStore{}, s.readings, s.bans, resolver, s.revoker, logger, gateResolver)

	outcome, err := gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeRejectedMismatch, outcome)

	readings, _ := s.readings.List(s.ctx)
	s.Empty(readings)
	bans, _ := s.bans.List(s.ctx)
	s.Len(bans, 1)
}

// A replaced binding rejects the old fingerprint.
func (s *GateSuite) TestReplacedBindingRejectsOldFingerprint() {
	s.bindDevice()
	s.Require().NoError(s.bindings.Save(s.ctx, domain.VerifiedBinding{
		DeviceID:      gateDevice,
		IPAddr:        "10.0.0.9",
		Port:          62000,
		LastCheckedAt: s.now,
	}))

	// Old fingerprint still resolves at the old address.
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-time.Minute))

	outcome, err := s.gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeRejectedMismatch, outcome)
	s.Equal([]string{gateDevice}, s.revoker.calls())
}

// An expired cache entry must fall back to the store, not grant access.
func (s *GateSuite) TestExpiredCacheEntryFallsBackToStore() {
	s.bindDevice()
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-time.Minute))

	_, err := s.gate.Process(s.ctx, s.event(), s.now)
	s.Require().NoError(err)
	storeReads := s.bindings.findCalls()

	later := s.now.Add(2 * time.Hour)
	s.logs.setPort(gateDevice, gateIP, gatePort, later.Add(-time.Minute))
	ev := s.event()
	ev.Timestamp = later

	outcome, err := s.gate.Process(s.ctx, ev, later)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeAccepted, outcome)
	s.Greater(s.bindings.findCalls(), storeReads)
}

// End-to-end walk: verify, fast path, then a spoofed address gets banned.
func (s *GateSuite) TestScenarioVerifyThenSpoof() {
	s.bindDevice()
	s.logs.setPort(gateDevice, gateIP, gatePort, s.now.Add(-10*time.Second))

	outcome, err := s.gate.Process(s.ctx, s.event(), s.now.Add(20*time.Second))
	s.Require().NoError(err)
	s.Equal(domain.OutcomeAccepted, outcome)

	outcome, err = s.gate.Process(s.ctx, s.event(), s.now.Add(25*time.Second))
	s.Require().NoError(err)
	s.Equal(domain.OutcomeAccepted, outcome)

	spoofedAt := s.now.Add(40 * time.Minute)
	s.logs.setPort(gateDevice, "10.0.0.9", 47000, spoofedAt.Add(-time.Second))
	ev := s.event()
	ev.IPAddr = "10.0.0.9"

	outcome, err = s.gate.Process(s.ctx, ev, spoofedAt)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeRejectedMismatch, outcome)

	readings, _ := s.readings.List(s.ctx)
	s.Len(readings, 2)
	bans, _ := s.bans.List(s.ctx)
	s.Require().Len(bans, 1)
	s.Equal("10.0.0.9", bans[0].IPAddr)
	s.Equal([]string{gateDevice}, s.revoker.calls())
}
