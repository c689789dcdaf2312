package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

const allKey = "all"

// Store memoizes history loads for a short TTL. Any append invalidates everything.
// Degraded loads are never cached so a recovered backend is picked up at once.
// A load that overlaps an append is returned but not cached.
type Store struct {
	next  ports.HistoryStore
	cache *gocache.Cache

	mu         sync.Mutex
	generation uint64
}

func New(next ports.HistoryStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (s *Store) Append(ctx context.Context, rec domain.HistoryRecord) error {
	err := s.next.Append(ctx, rec)
	s.mu.Lock()
	s.generation++
	s.cache.Flush()
	s.mu.Unlock()
	return err
}

func (s *Store) LoadAll(ctx context.Context) domain.HistoryLoad {
	return s.cached(allKey, func() domain.HistoryLoad {
		return s.next.LoadAll(ctx)
	})
}

func (s *Store) LoadWindow(ctx context.Context, window domain.Window) domain.HistoryLoad {
	if window.IsAll() {
		return s.LoadAll(ctx)
	}
	return s.cached(window.String(), func() domain.HistoryLoad {
		return s.next.LoadWindow(ctx, window)
	})
}

func (s *Store) cached(key string, load func() domain.HistoryLoad) domain.HistoryLoad {
	if v, ok := s.cache.Get(key); ok {
		return copyLoad(v.(domain.HistoryLoad))
	}
	s.mu.Lock()
	started := s.generation
	s.mu.Unlock()

	res := load()
	if res.Degraded() {
		return res
	}
	s.mu.Lock()
	if s.generation == started {
		s.cache.SetDefault(key, copyLoad(res))
	}
	s.mu.Unlock()
	return res
}

// copyLoad keeps callers from mutating cached records or their counts.
func copyLoad(load domain.HistoryLoad) domain.HistoryLoad {
	records := make([]domain.HistoryRecord, len(load.Records))
	for i, rec := range load.Records {
		rec.Data = rec.Data.Clone()
		records[i] = rec
	}
	return domain.HistoryLoad{Records: records, Err: load.Err}
}
