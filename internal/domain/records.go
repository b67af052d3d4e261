package domain

import (
	"fmt"
	"time"
)

// PortUnresolved marks a fingerprint whose source port could not be
// recovered from the connect logs. It can never equal a stored binding's
// port, so an unresolved submission always falls through to rejection.
const PortUnresolved = -1

// ChallengeWindow is written when a challenge is issued and read once by the
// timeout check. Absence of a completed binding at expiry implies revocation.
type ChallengeWindow struct {
	DeviceID  string
	ExpiresAt time.Time
}

// Expired reports whether the window's completion deadline has passed.
func (w ChallengeWindow) Expired(now time.Time) bool {
	return now.After(w.ExpiresAt)
}

// VerifiedBinding asserts the last network fingerprint at which a device was
// verified. One binding per device; a new handshake fully replaces it.
type VerifiedBinding struct {
	DeviceID      string
	IPAddr        string
	Port          int
	LastCheckedAt time.Time
}

// Matches reports whether the binding agrees with a resolved fingerprint.
func (b VerifiedBinding) Matches(fp Fingerprint) bool {
	return b.DeviceID == fp.DeviceID && b.IPAddr == fp.IPAddr && b.Port == fp.Port
}

// SensorReading is persisted only as the side effect of a successful
// verification. It is never read back by this core.
type SensorReading struct {
	DeviceID    string
	Timestamp   time.Time
	IPAddr      string
	Port        int
	Temperature float64
	Humidity    float64
}

// BanRecord is appended once per ban event. Repeated bans for the same
// device each produce a new record.
type BanRecord struct {
	DeviceID string
	IPAddr   string
	Port     int
	BannedAt time.Time
}

// Fingerprint is the (device, ip, port) triple treated as the unit of
// network identity.
type Fingerprint struct {
	DeviceID string
	IPAddr   string
	Port     int
}

// CacheKey returns the composite key used by the verification cache.
func (f Fingerprint) CacheKey() string {
	return fmt.Sprintf("%s|%s|%d", f.DeviceID, f.IPAddr, f.Port)
}
