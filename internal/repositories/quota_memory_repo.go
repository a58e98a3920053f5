package repositories

import (
	"context"
	"sync"

	"github.com/BradenHooton/prospector/internal/models"
)

type quotaKey struct {
	userID    string
	kind      models.ResourceKind
	yearMonth string
}

// MemoryQuotaRepository keeps usage counters in process memory. It is used
// when QUOTA_STORE=memory and by tests; counters do not survive restarts.
type MemoryQuotaRepository struct {
	mu     sync.Mutex
	counts map[quotaKey]int
}

// NewMemoryQuotaRepository creates an empty in-memory quota store
func NewMemoryQuotaRepository() *MemoryQuotaRepository {
	return &MemoryQuotaRepository{counts: make(map[quotaKey]int)}
}

func (r *MemoryQuotaRepository) GetCount(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[quotaKey{userID, kind, yearMonth}], nil
}

func (r *MemoryQuotaRepository) Increment(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := quotaKey{userID, kind, yearMonth}
	r.counts[key] += delta
	return r.counts[key], nil
}

func (r *MemoryQuotaRepository) IncrementCapped(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta, limit int) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := quotaKey{userID, kind, yearMonth}
	charged := delta
	if limit != models.Unlimited {
		charged = cappedDelta(r.counts[key], delta, limit)
	}
	r.counts[key] += charged
	return charged, r.counts[key], nil
}

func (r *MemoryQuotaRepository) DeleteBefore(ctx context.Context, yearMonth string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key := range r.counts {
		if key.yearMonth < yearMonth {
			delete(r.counts, key)
			deleted++
		}
	}
	return deleted, nil
}
