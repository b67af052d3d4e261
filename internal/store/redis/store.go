// Package redis backs the window and binding stores with Redis so multiple
// workers share durable verification state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/domain"
	"vigil/pkg/platform/sentinel"
)

const (
	windowKeyPrefix  = "vigil:win:"
	bindingKeyPrefix = "vigil:bind:"
)

type windowRecord struct {
	DeviceID  string `json:"deviceId"`
	ExpiresAt int64  `json:"expiresAt"`
}

type bindingRecord struct {
	DeviceID      string `json:"deviceId"`
	IPAddr        string `json:"ipAddr"`
	Port          int    `json:"port"`
	LastCheckedAt int64  `json:"lastCheckedAt"`
}

// WindowStore persists challenge windows with a TTL matching the window
// deadline, so expired windows age out on their own.
type WindowStore struct {
	client *redis.Client
}

func NewWindowStore(client *redis.Client) *WindowStore {
	return &WindowStore{client: client}
}

func (s *WindowStore) Save(ctx context.Context, window domain.ChallengeWindow) error {
	raw, err := json.Marshal(windowRecord{
		DeviceID:  window.DeviceID,
		ExpiresAt: window.ExpiresAt.Unix(),
	})
	if err != nil {
		return err
	}
	ttl := time.Until(window.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	key := windowKeyPrefix + window.DeviceID
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save challenge window: %w", err)
	}
	return nil
}

func (s *WindowStore) Find(ctx context.Context, deviceID string) (domain.ChallengeWindow, error) {
	raw, err := s.client.Get(ctx, windowKeyPrefix+deviceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ChallengeWindow{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.ChallengeWindow{}, fmt.Errorf("find challenge window: %w", err)
	}
	var rec windowRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.ChallengeWindow{}, fmt.Errorf("decode challenge window: %w", err)
	}
	return domain.ChallengeWindow{
		DeviceID:  rec.DeviceID,
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
	}, nil
}

// BindingStore persists verified bindings as JSON values, one key per
// device, only ever fully overwritten.
type BindingStore struct {
	client *redis.Client
}

func NewBindingStore(client *redis.Client) *BindingStore {
	return &BindingStore{client: client}
}

func (s *BindingStore) Save(ctx context.Context, binding domain.VerifiedBinding) error {
	raw, err := json.Marshal(bindingRecord{
		DeviceID:      binding.DeviceID,
		IPAddr:        binding.IPAddr,
		Port:          binding.Port,
		LastCheckedAt: binding.LastCheckedAt.Unix(),
	})
	if err != nil {
		return err
	}
	key := bindingKeyPrefix + binding.DeviceID
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

func (s *BindingStore) Find(ctx context.Context, deviceID string) (domain.VerifiedBinding, error) {
	raw, err := s.client.Get(ctx, bindingKeyPrefix+deviceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.VerifiedBinding{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.VerifiedBinding{}, fmt.Errorf("find binding: %w", err)
	}
	var rec bindingRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.VerifiedBinding{}, fmt.Errorf("decode binding: %w", err)
	}
	return domain.VerifiedBinding{
		DeviceID:      rec.DeviceID,
		IPAddr:        rec.IPAddr,
		Port:          rec.Port,
		LastCheckedAt: time.Unix(rec.LastCheckedAt, 0),
	}, nil
}

func (s *BindingStore) Touch(ctx context.Context, deviceID string, at time.Time) error {
	binding, err := s.Find(ctx, deviceID)
	if err != nil {
		return err
	}
	binding.LastCheckedAt = at
	return s.Save(ctx, binding)
}
