package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds the response-time floor for enumeration-sensitive endpoints
type TimingConfig struct {
	Floor  time.Duration // minimum total handling time
	Jitter time.Duration // random extra delay in [0, Jitter)
}

// TimingDelay pads responses so that outcomes which touch different
// upstream paths take approximately the same time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(ctx context.Context, d time.Duration)
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  sleepContext,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int64) (int64, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	return int64(binary.BigEndian.Uint64(randomBytes) % uint64(max)), nil
}

// Target returns the padded duration for one request: Floor plus jitter
func (td *TimingDelay) Target() time.Duration {
	target := td.config.Floor
	if td.config.Jitter > 0 {
		if extra, err := cryptoRandIntn(int64(td.config.Jitter)); err == nil {
			target += time.Duration(extra)
		}
	}
	return target
}

// WaitFrom blocks until at least Target() has elapsed since start or ctx is done
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	if td == nil {
		return
	}

	remaining := td.Target() - time.Since(start)
	if remaining > 0 {
		td.sleep(ctx, remaining)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
