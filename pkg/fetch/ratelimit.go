package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Delay is the politeness pause a job takes between two page requests.
// Each Wait sleeps a uniformly random duration in [min, max].
type Delay struct {
	min, max time.Duration // Bounds of the pause, inclusive
	rnd      *rand.Rand    // Seeded per Delay
	rndMu    sync.Mutex // rand.Rand is not safe for concurrent use
	log      *logrus.Entry // Debug-level pause logging
}

// NewDelay creates a Delay. max < min is treated as max == min.
func NewDelay(min, max time.Duration, log *logrus.Entry) *Delay {
	if max < min {
		max = min // Config validation warns about this case
	}
	return &Delay{
		min: min,
		max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log,
	}
}

// Next returns the next randomized pause without sleeping
func (d *Delay) Next() time.Duration {
	if d.max <= 0 {
		return 0 // Delays disabled
	}
	span := int64(d.max - d.min)
	if span <= 0 {
		return d.min // Fixed pause
	}
	d.rndMu.Lock()
	jitter := d.rnd.Int63n(span + 1) // +1 makes max reachable
	d.rndMu.Unlock()
	return d.min + time.Duration(jitter)
}

// Wait sleeps for Next(), returning early with ctx.Err() if ctx ends first
func (d *Delay) Wait(ctx context.Context) error {
	pause := d.Next()
	if pause <= 0 {
		return nil
	}
	d.log.WithField("sleep", pause).Debug("Applying inter-page delay")

	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil // Slept full duration
	case <-ctx.Done():
		return ctx.Err()
	}
}
