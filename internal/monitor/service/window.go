package service

import (
	"time"
)

// hitWindow is a sliding log of hit times. Times are appended in order, so
// expired hits are always at the front and eviction is amortized O(1).
type hitWindow struct {
	hits  []time.Time
	start int
}

func (w *hitWindow) add(now time.Time) {
	w.hits = append(w.hits, now)
}

func (w *hitWindow) evict(cutoff time.Time) {
	for w.start < len(w.hits) && !w.hits[w.start].After(cutoff) {
		w.start++
	}
	if w.start > 0 && w.start*2 >= len(w.hits) {
		w.hits = append(w.hits[:0], w.hits[w.start:]...)
		w.start = 0
	}
}

func (w *hitWindow) count() int {
	return len(w.hits) - w.start
}

// distinctWindow counts distinct values seen inside the window.
type distinctWindow struct {
	queue    []distinctHit
	start    int
	lastSeen map[string]time.Time
}

type distinctHit struct {
	at    time.Time
	value string
}

func newDistinctWindow() *distinctWindow {
	return &distinctWindow{lastSeen: make(map[string]time.Time)}
}

func (w *distinctWindow) add(now time.Time, value string) {
	w.queue = append(w.queue, distinctHit{at: now, value: value})
	w.lastSeen[value] = now
}

func (w *distinctWindow) evict(cutoff time.Time) {
	for w.start < len(w.queue) && !w.queue[w.start].at.After(cutoff) {
		hit := w.queue[w.start]
		if last, ok := w.lastSeen[hit.value]; ok && last.Equal(hit.at) {
			delete(w.lastSeen, hit.value)
		}
		w.start++
	}
	if w.start > 0 && w.start*2 >= len(w.queue) {
		w.queue = append(w.queue[:0], w.queue[w.start:]...)
		w.start = 0
	}
}

func (w *distinctWindow) count() int {
	return len(w.lastSeen)
}
