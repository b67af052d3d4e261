// Package postgres backs the append-only record sets (ban records and
// sensor readings) with PostgreSQL for downstream auditing.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"vigil/internal/domain"
)

// Clock lets tests pin write timestamps.
type Clock func() time.Time

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// BanStore appends ban records to the ban_records table. Append-only: bans
// are never mutated or deleted by this core.
type BanStore struct {
	db    *sql.DB
	clock Clock
}

func NewBanStore(db *sql.DB) *BanStore {
	return &BanStore{db: db, clock: time.Now}
}

func (s *BanStore) Append(ctx context.Context, ban domain.BanRecord) error {
	bannedAt := ban.BannedAt
	if bannedAt.IsZero() {
		bannedAt = s.clock()
	}
	query := `
		INSERT INTO ban_records (device_id, ip_addr, port, banned_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, ban.DeviceID, ban.IPAddr, ban.Port, bannedAt); err != nil {
		return fmt.Errorf("append ban record: %w", err)
	}
	return nil
}

// ReadingStore appends sensor readings to the sensor_readings table.
type ReadingStore struct {
	db *sql.DB
}

func NewReadingStore(db *sql.DB) *ReadingStore {
	return &ReadingStore{db: db}
}

func (s *ReadingStore) Append(ctx context.Context, reading domain.SensorReading) error {
	query := `
		INSERT INTO sensor_readings (device_id, ts, ip_addr, port, temperature, humidity)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		reading.DeviceID, reading.Timestamp, reading.IPAddr,
		reading.Port, reading.Temperature, reading.Humidity)
	if err != nil {
		return fmt.Errorf("append sensor reading: %w", err)
	}
	return nil
}
