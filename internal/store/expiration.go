package store

import (
	"log"
	"time"
)

// ExpirationConfig tunes the active TTL sweeper's sampling cycle.
type ExpirationConfig struct {
	Enabled    bool
	Runtime    time.Duration // per-cycle sampling budget
	MinPercent uint8         // expired/processed ratio that triggers the short interval
	MinInterval time.Duration // sleep when the sample was dirty
	MaxInterval time.Duration // sleep when the sample was clean
}

// DefaultExpirationConfig returns the source's tuning: a 1s sampling
// budget, 25% dirty threshold, 5s aggressive / 60s calm sleep.
func DefaultExpirationConfig() ExpirationConfig {
	return ExpirationConfig{
		Enabled:     false,
		Runtime:     time.Second,
		MinPercent:  25,
		MinInterval: 5 * time.Second,
		MaxInterval: 60 * time.Second,
	}
}

// RunExpiration runs the probabilistic active-expiration loop until
// stop is closed. It is meant to be launched as a goroutine.
func RunExpiration(db *Database, cfg ExpirationConfig, stop <-chan struct{}) {
	if !cfg.Enabled {
		return
	}

	for {
		interval := expireOnce(db, cfg)
		select {
		case <-stop:
			return
		case <-time.After(interval):
		}
	}
}

// expireOnce runs a single sampling cycle and returns how long the
// caller should sleep before the next one.
func expireOnce(db *Database, cfg ExpirationConfig) time.Duration {
	start := time.Now()
	total := uint32(db.Size())

	var processed, expired uint32
	for processed < total && time.Since(start) < cfg.Runtime {
		key, ok := db.GetRandom()
		if !ok {
			break
		}
		if db.TryExpire(key) {
			expired++
		}
		processed++
	}

	threshold := processed * uint32(cfg.MinPercent) / 100
	var interval time.Duration
	if expired > threshold {
		interval = cfg.MinInterval
	} else {
		interval = cfg.MaxInterval
	}

	log.Printf("[expiration] sleeping=%s elapsed=%s size=%d processed=%d expired=%d threshold=%d",
		interval, time.Since(start), total, processed, expired, threshold)
	return interval
}
