package quota

import (
	"context"
	"time"

	"github.com/polydev-ai/quotaengine/internal/settings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// resetLeaseKey guards the batch reset across replicas.
const resetLeaseKey = "quotaengine:quota-reset:lease"

// Resetter periodically rolls stale quota rows over to the current month.
// When a Redis client is supplied, only the replica holding the lease runs
// the batch; without Redis every replica sweeps, which is safe because the
// sweep is idempotent.
type Resetter struct {
	ledger *Ledger
	rdb    *redis.Client
}

// NewResetter constructs a Resetter. rdb may be nil.
func NewResetter(ledger *Ledger, rdb *redis.Client) *Resetter {
	return &Resetter{ledger: ledger, rdb: rdb}
}

// Run sweeps on the configured interval until ctx is cancelled. The interval
// is re-read from settings every cycle so config changes apply without a
// restart.
func (r *Resetter) Run(ctx context.Context) {
	for {
		interval := r.interval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if !r.acquireLease(ctx, r.interval()) {
			continue
		}
		if _, errReset := r.ledger.ResetAll(ctx); errReset != nil {
			log.WithError(errReset).Warn("quota: scheduled reset failed")
		}
	}
}

func (r *Resetter) interval() time.Duration {
	seconds := settings.IntValue(settings.ResetIntervalSecondsKey, settings.DefaultResetIntervalSeconds)
	if seconds < 1 {
		seconds = settings.DefaultResetIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// acquireLease takes the shared reset lease for roughly one interval. Redis
// being down degrades to every replica sweeping rather than no sweeps.
func (r *Resetter) acquireLease(ctx context.Context, ttl time.Duration) bool {
	if r.rdb == nil {
		return true
	}

	ok, errLease := r.rdb.SetNX(ctx, resetLeaseKey, "1", ttl).Result()
	if errLease != nil {
		log.WithError(errLease).Warn("quota: reset lease unavailable, sweeping anyway")
		return true
	}
	return ok
}
