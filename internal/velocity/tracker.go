// Package velocity maintains per-user sliding windows of transaction
// timestamps for velocity rule evaluation.
//
// Each user has an independent window guarded by its own mutex, so
// different users never contend. Recording and counting happen under one
// lock acquisition, which keeps same-user submissions consistent with
// arrival order: a concurrent submission can never be half-counted.
package velocity

import (
	"sort"
	"sync"
	"time"

	"github.com/fraudguard/fraudguard/internal/metrics"
)

// maxEntriesPerUser caps window memory for pathological submission rates.
// The cap is far above any realistic per-window count; trimming drops the
// oldest entries first.
const maxEntriesPerUser = 10000

// Tracker answers "how many transactions has this user made in the last
// N minutes" over in-memory sliding windows.
type Tracker struct {
	windows   sync.Map // map[string]*userWindow
	maxWindow time.Duration
	users     int64
	usersMu   sync.Mutex
}

type userWindow struct {
	mu    sync.Mutex
	times []time.Time // ascending, pruned lazily
}

// NewTracker creates a tracker that retains entries long enough to answer
// queries up to maxWindow wide. Queries wider than maxWindow may undercount.
func NewTracker(maxWindow time.Duration) *Tracker {
	if maxWindow <= 0 {
		maxWindow = time.Hour
	}
	return &Tracker{maxWindow: maxWindow}
}

// RecordAndCount records one transaction at ts for the user and returns
// the number of recorded transactions (including this one) with timestamps
// in the closed window [ts-window, ts].
func (t *Tracker) RecordAndCount(userID string, ts time.Time, window time.Duration) int {
	if window <= 0 || window > t.maxWindow {
		window = t.maxWindow
	}

	w := t.getWindow(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.insert(ts)
	t.prune(w, ts)

	cutoff := ts.Add(-window)
	count := 0
	for _, entry := range w.times {
		if entry.Before(cutoff) || entry.After(ts) {
			continue
		}
		count++
	}
	return count
}

// Count returns the number of recorded transactions in [ts-window, ts]
// without recording anything.
func (t *Tracker) Count(userID string, ts time.Time, window time.Duration) int {
	v, ok := t.windows.Load(userID)
	if !ok {
		return 0
	}
	w := v.(*userWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := ts.Add(-window)
	count := 0
	for _, entry := range w.times {
		if entry.Before(cutoff) || entry.After(ts) {
			continue
		}
		count++
	}
	return count
}

// TrackedUsers returns how many users currently have a window.
func (t *Tracker) TrackedUsers() int64 {
	t.usersMu.Lock()
	defer t.usersMu.Unlock()
	return t.users
}

func (t *Tracker) getWindow(userID string) *userWindow {
	v, loaded := t.windows.LoadOrStore(userID, &userWindow{})
	if !loaded {
		t.usersMu.Lock()
		t.users++
		metrics.VelocityTrackedUsers.Set(float64(t.users))
		t.usersMu.Unlock()
	}
	return v.(*userWindow)
}

// insert keeps the slice ascending even when submissions carry slightly
// out-of-order timestamps. Caller holds w.mu.
func (w *userWindow) insert(ts time.Time) {
	n := len(w.times)
	if n == 0 || !ts.Before(w.times[n-1]) {
		w.times = append(w.times, ts)
		return
	}
	i := sort.Search(n, func(i int) bool { return w.times[i].After(ts) })
	w.times = append(w.times, time.Time{})
	copy(w.times[i+1:], w.times[i:])
	w.times[i] = ts
}

// prune evicts entries that no currently relevant window can reach:
// anything older than the newest timestamp minus the maximum window.
// Caller holds w.mu.
func (t *Tracker) prune(w *userWindow, newest time.Time) {
	if last := len(w.times) - 1; last >= 0 && w.times[last].After(newest) {
		newest = w.times[last]
	}
	cutoff := newest.Add(-t.maxWindow)

	start := 0
	for start < len(w.times) && w.times[start].Before(cutoff) {
		start++
	}
	if start > 0 {
		w.times = w.times[start:]
	}
	if len(w.times) > maxEntriesPerUser {
		w.times = w.times[len(w.times)-maxEntriesPerUser:]
	}
}
