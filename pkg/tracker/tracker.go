// Package tracker keeps per-feed fetch statistics for the remote data providers.
package tracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks fetch statistics per provider (feed host).
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds counters for one provider.
// Fields are accessed atomically.
type ProviderStats struct {
	Success     int64
	Failures    int64
	Bytes       int64
	Records     int64
	LastSuccess int64 // unix nanoseconds, 0 if never
}

// Snapshot is a point-in-time copy of a provider's counters.
type Snapshot struct {
	Success     int64     `json:"success"`
	Failures    int64     `json:"failures"`
	Bytes       int64     `json:"bytes"`
	Records     int64     `json:"records"`
	LastSuccess time.Time `json:"last_success,omitzero"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackSuccess records a completed fetch of n bytes.
func (t *Tracker) TrackSuccess(provider string, n int) {
	s := t.getStats(provider)
	atomic.AddInt64(&s.Success, 1)
	atomic.AddInt64(&s.Bytes, int64(n))
	atomic.StoreInt64(&s.LastSuccess, time.Now().UnixNano())
}

func (t *Tracker) TrackFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).Failures, 1)
}

// TrackRecords adds the number of records parsed out of a provider's response.
func (t *Tracker) TrackRecords(provider string, n int) {
	atomic.AddInt64(&t.getStats(provider).Records, int64(n))
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]Snapshot, len(t.stats))
	for k, v := range t.stats {
		snap := Snapshot{
			Success:  atomic.LoadInt64(&v.Success),
			Failures: atomic.LoadInt64(&v.Failures),
			Bytes:    atomic.LoadInt64(&v.Bytes),
			Records:  atomic.LoadInt64(&v.Records),
		}
		if ns := atomic.LoadInt64(&v.LastSuccess); ns != 0 {
			snap.LastSuccess = time.Unix(0, ns)
		}
		result[k] = snap
	}
	return result
}
