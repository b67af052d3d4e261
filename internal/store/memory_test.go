package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/domain"
	"vigil/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) TestWindowStore() {
	ws := NewInMemoryWindowStore()

	_, err := ws.Find(s.ctx, "sensor-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	window := domain.ChallengeWindow{DeviceID: "sensor-1", ExpiresAt: s.now.Add(time.Hour)}
	s.Require().NoError(ws.Save(s.ctx, window))

	found, err := ws.Find(s.ctx, "sensor-1")
	s.Require().NoError(err)
	s.Equal(window, found)
}

func (s *MemoryStoreSuite) TestBindingStoreSaveFindTouch() {
	bs := NewInMemoryBindingStore()

	binding := domain.VerifiedBinding{
		DeviceID:      "sensor-1",
		IPAddr:        "10.0.0.5",
		Port:          51000,
		LastCheckedAt: s.now,
	}
	s.Require().NoError(bs.Save(s.ctx, binding))

	later := s.now.Add(time.Minute)
	s.Require().NoError(bs.Touch(s.ctx, "sensor-1", later))

	found, err := bs.Find(s.ctx, "sensor-1")
	s.Require().NoError(err)
	s.Equal(later, found.LastCheckedAt)
	s.Equal(51000, found.Port)
}

func (s *MemoryStoreSuite) TestBindingTouchUnknownDevice() {
	bs := NewInMemoryBindingStore()
	s.ErrorIs(bs.Touch(s.ctx, "nope", s.now), sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestBindingOverwriteKeepsOneRecord() {
	bs := NewInMemoryBindingStore()
	s.Require().NoError(bs.Save(s.ctx, domain.VerifiedBinding{DeviceID: "sensor-1", IPAddr: "10.0.0.5", Port: 51000}))
	s.Require().NoError(bs.Save(s.ctx, domain.VerifiedBinding{DeviceID: "sensor-1", IPAddr: "10.0.0.9", Port: 62000}))

	found, err := bs.Find(s.ctx, "sensor-1")
	s.Require().NoError(err)
	s.Equal("10.0.0.9", found.IPAddr)
	s.Equal(62000, found.Port)
}

func (s *MemoryStoreSuite) TestBanStoreAppendsWithoutDedup() {
	bans := NewInMemoryBanStore()
	ban := domain.BanRecord{DeviceID: "sensor-1", IPAddr: "10.0.0.9", Port: 62000, BannedAt: s.now}
	s.Require().NoError(bans.Append(s.ctx, ban))
	s.Require().NoError(bans.Append(s.ctx, ban))

	list, err := bans.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *MemoryStoreSuite) TestReadingStoreAppends() {
	readings := NewInMemoryReadingStore()
	s.Require().NoError(readings.Append(s.ctx, domain.SensorReading{
		DeviceID:    "sensor-1",
		Timestamp:   s.now,
		IPAddr:      "10.0.0.5",
		Port:        51000,
		Temperature: 21.5,
		Humidity:    40,
	}))

	list, err := readings.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(21.5, list[0].Temperature)
}
