package store

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// neverExpires is the sentinel expiration value meaning a key has no
// TTL. It mirrors the source's use of its integer type's maximum value.
const neverExpires = math.MaxUint64

// Metadata is a key's TTL descriptor: an absolute expiration deadline
// in epoch-milliseconds, or the neverExpires sentinel.
type Metadata struct {
	ExpireAtMs uint64
}

// NeverExpire builds a Metadata that never expires.
func NeverExpire() Metadata {
	return Metadata{ExpireAtMs: neverExpires}
}

// FromDeadlineMs builds a Metadata from a raw absolute millisecond
// deadline, used when restoring a key from an RDB snapshot.
func FromDeadlineMs(deadlineMs uint64) Metadata {
	return Metadata{ExpireAtMs: deadlineMs}
}

// MetadataFromArgs builds a Metadata from the optional `EX n` / `PX n`
// trailing arguments of a SET command. No arguments means "never
// expires". The key must be "EX" (seconds) or "PX" (milliseconds),
// case-sensitive, matching the source's parser.
func MetadataFromArgs(args []string) (Metadata, error) {
	if len(args) == 0 {
		return NeverExpire(), nil
	}
	if len(args) != 2 {
		return Metadata{}, fmt.Errorf("store: expire time parameter should be EX|PX <n>")
	}

	key, value := args[0], args[1]
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return Metadata{}, fmt.Errorf("store: invalid expire value %q: %w", value, err)
	}

	now := nowMs()
	switch key {
	case "EX":
		return Metadata{ExpireAtMs: now + parsed*1000}, nil
	case "PX":
		return Metadata{ExpireAtMs: now + parsed}, nil
	default:
		return Metadata{}, fmt.Errorf("store: expire time parameter should be EX|PX")
	}
}

// MetadataFromSeconds builds a Metadata expiring `seconds` from now,
// used by the EXPIRE command.
func MetadataFromSeconds(seconds uint64) Metadata {
	return Metadata{ExpireAtMs: nowMs() + seconds*1000}
}

// IsExpired reports whether the deadline has passed. A never-expiring
// Metadata is never expired.
func (m Metadata) IsExpired() bool {
	if m.ExpireAtMs == neverExpires {
		return false
	}
	return nowMs() >= m.ExpireAtMs
}

// ExpireDuration returns the remaining whole seconds until expiration,
// and ok=false if the key never expires.
func (m Metadata) ExpireDuration() (seconds int64, ok bool) {
	if m.ExpireAtMs == neverExpires {
		return 0, false
	}
	remainingMs := int64(m.ExpireAtMs) - int64(nowMs())
	if remainingMs < 0 {
		remainingMs = 0
	}
	return remainingMs / 1000, true
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}
