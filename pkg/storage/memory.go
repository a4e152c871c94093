package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps the latest snapshot per site in a map. Safe for
// concurrent use. With a TTL configured, a background goroutine drops stale
// snapshots; Stop must be called to release it.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot

	ttl      time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store without expiration.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

// NewMemoryStoreWithTTL creates a store whose snapshots expire after ttl.
// A non-positive cleanupInterval defaults to one minute.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("storage: ttl must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		snapshots: make(map[string]Snapshot),
		ttl:       ttl,
		ticker:    time.NewTicker(cleanupInterval),
		stop:      make(chan struct{}),
	}
	go s.runCleanup()

	return s
}

func (s *MemoryStore) runCleanup() {
	for {
		select {
		case <-s.ticker.C:
			s.evictStale()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) evictStale() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for site, snapshot := range s.snapshots {
		if now.Sub(snapshot.GeneratedAt) > s.ttl {
			delete(s.snapshots, site)
		}
	}
}

// Stop shuts down the cleanup goroutine. Safe to call multiple times and on
// stores created without a TTL.
func (s *MemoryStore) Stop() {
	if s.ticker == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		s.ticker.Stop()
	})
}

// Put stores a snapshot, replacing any existing one for the same site.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if snapshot.Site == "" {
		return errors.New("storage: snapshot site cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Site] = snapshot
	return nil
}

// GetLatest returns the stored snapshot for a site, with found=false when
// none exists.
func (s *MemoryStore) GetLatest(ctx context.Context, site string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, found := s.snapshots[site]
	return snapshot, found, nil
}

// Len reports the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
