package store

import (
	"context"
	"sync"
	"time"

	"vigil/internal/domain"
	"vigil/pkg/platform/sentinel"
)

// In-memory stores back the default wiring and the unit tests. They favor
// clarity over performance; each record is owned by one device key and only
// ever fully overwritten, so an RWMutex per store is sufficient.

type InMemoryWindowStore struct {
	mu      sync.RWMutex
	windows map[string]domain.ChallengeWindow
}

func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{windows: make(map[string]domain.ChallengeWindow)}
}

func (s *InMemoryWindowStore) Save(_ context.Context, window domain.ChallengeWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[window.DeviceID] = window
	return nil
}

func (s *InMemoryWindowStore) Find(_ context.Context, deviceID string) (domain.ChallengeWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.windows[deviceID]; ok {
		return w, nil
	}
	return domain.ChallengeWindow{}, sentinel.ErrNotFound
}

type InMemoryBindingStore struct {
	mu       sync.RWMutex
	bindings map[string]domain.VerifiedBinding
}

func NewInMemoryBindingStore() *InMemoryBindingStore {
	return &InMemoryBindingStore{bindings: make(map[string]domain.VerifiedBinding)}
}

func (s *InMemoryBindingStore) Save(_ context.Context, binding domain.VerifiedBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[binding.DeviceID] = binding
	return nil
}

func (s *InMemoryBindingStore) Find(_ context.Context, deviceID string) (domain.VerifiedBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bindings[deviceID]; ok {
		return b, nil
	}
	return domain.VerifiedBinding{}, sentinel.ErrNotFound
}

func (s *InMemoryBindingStore) Touch(_ context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[deviceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	b.LastCheckedAt = at
	s.bindings[deviceID] = b
	return nil
}

type InMemoryBanStore struct {
	mu   sync.RWMutex
	bans []domain.BanRecord
}

func NewInMemoryBanStore() *InMemoryBanStore {
	return &InMemoryBanStore{}
}

func (s *InMemoryBanStore) Append(_ context.Context, ban domain.BanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans = append(s.bans, ban)
	return nil
}

// List returns a copy of all ban records; used by tests and admin surfaces.
func (s *InMemoryBanStore) List(_ context.Context) ([]domain.BanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BanRecord{}, s.bans...), nil
}

type InMemoryReadingStore struct {
	mu       sync.RWMutex
	readings []domain.SensorReading
}

func NewInMemoryReadingStore() *InMemoryReadingStore {
	return &InMemoryReadingStore{}
}

func (s *InMemoryReadingStore) Append(_ context.Context, reading domain.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	return nil
}

func (s *InMemoryReadingStore) List(_ context.Context) ([]domain.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SensorReading{}, s.readings...), nil
}
