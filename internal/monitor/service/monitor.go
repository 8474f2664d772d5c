// Package service implements the in-memory rate/anomaly monitor.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
)

// AlertPublisher receives alerts. Implementations must not block.
type AlertPublisher interface {
	Publish(ctx context.Context, alert monitorDomain.Alert)
}

// Monitor keeps sliding-window counters per subject. Each subject has its own
// lock, so different keys are updated concurrently.
type Monitor struct {
	thresholds monitorDomain.Thresholds
	publisher  AlertPublisher
	logger     *slog.Logger
	now        func() time.Time

	subjects sync.Map // map[string]*subjectState
}

type subjectState struct {
	mu       sync.Mutex
	removed  bool
	counters map[monitorDomain.Rule]*counter
}

type counter struct {
	threshold    monitorDomain.Threshold
	hits         *hitWindow
	distinct     *distinctWindow
	blockedUntil time.Time
}

func (c *counter) evict(now time.Time) {
	cutoff := now.Add(-c.threshold.Window)
	if c.distinct != nil {
		c.distinct.evict(cutoff)
		return
	}
	c.hits.evict(cutoff)
}

func (c *counter) count() int {
	if c.distinct != nil {
		return c.distinct.count()
	}
	return c.hits.count()
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// NewMonitor creates a Monitor. publisher may be nil.
func NewMonitor(
	thresholds monitorDomain.Thresholds,
	publisher AlertPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Monitor {
	m := &Monitor{
		thresholds: thresholds,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordFailure counts a failed login or step-up attempt against key.
func (m *Monitor) RecordFailure(ctx context.Context, key monitorDomain.Key) {
	switch key.Kind {
	case monitorDomain.KindIP:
		m.hit(ctx, key, monitorDomain.RuleLoginFailuresPerIP, m.thresholds.LoginFailuresPerIP, "")
	case monitorDomain.KindPrincipal:
		m.hit(ctx, key, monitorDomain.RuleLoginFailuresPerPrincipal, m.thresholds.LoginFailuresPerPrincipal, "")
	}
}

// RecordEvent counts an access by key. For principals each call is one
// decrypt request and value is the resource touched. For IPs value is the
// principal that attempted to log in from that address.
func (m *Monitor) RecordEvent(ctx context.Context, key monitorDomain.Key, value string) {
	switch key.Kind {
	case monitorDomain.KindPrincipal:
		m.hit(ctx, key, monitorDomain.RuleDecryptRequestsPerPrincipal, m.thresholds.DecryptRequestsPerPrincipal, "")
		if value != "" {
			m.hit(
				ctx,
				key,
				monitorDomain.RuleDistinctResourcesPerPrincipal,
				m.thresholds.DistinctResourcesPerPrincipal,
				value,
			)
		}
	case monitorDomain.KindIP:
		if value != "" {
			m.hit(ctx, key, monitorDomain.RuleDistinctPrincipalsPerIP, m.thresholds.DistinctPrincipalsPerIP, value)
		}
	}
}

// RecordLogin feeds a login attempt from the external login handler.
func (m *Monitor) RecordLogin(ctx context.Context, ip, principalID string, success bool) {
	if ip != "" {
		m.RecordEvent(ctx, monitorDomain.IPKey(ip), principalID)
	}
	if success {
		return
	}
	if ip != "" {
		m.RecordFailure(ctx, monitorDomain.IPKey(ip))
	}
	if principalID != "" {
		m.RecordFailure(ctx, monitorDomain.PrincipalKey(principalID))
	}
}

// IsBlocked reports whether any window for key is over its threshold.
func (m *Monitor) IsBlocked(key monitorDomain.Key) bool {
	blocked, _ := m.BlockedUntil(key)
	return blocked
}

// BlockedUntil reports whether key is blocked and when the block lifts.
func (m *Monitor) BlockedUntil(key monitorDomain.Key) (bool, time.Time) {
	value, ok := m.subjects.Load(key.String())
	if !ok {
		return false, time.Time{}
	}
	state := value.(*subjectState)
	now := m.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	var until time.Time
	for _, c := range state.counters {
		c.evict(now)
		if now.Before(c.blockedUntil) && c.blockedUntil.After(until) {
			until = c.blockedUntil
		}
	}
	return !until.IsZero(), until
}

// Count returns the live count of rule for key.
func (m *Monitor) Count(key monitorDomain.Key, rule monitorDomain.Rule) int {
	value, ok := m.subjects.Load(key.String())
	if !ok {
		return 0
	}
	state := value.(*subjectState)

	state.mu.Lock()
	defer state.mu.Unlock()
	c, ok := state.counters[rule]
	if !ok {
		return 0
	}
	c.evict(m.now())
	return c.count()
}

// Cleanup evicts expired hits and drops subjects with nothing left to track.
func (m *Monitor) Cleanup() {
	now := m.now()
	m.subjects.Range(func(k, value any) bool {
		state := value.(*subjectState)
		state.mu.Lock()
		for rule, c := range state.counters {
			c.evict(now)
			if c.count() == 0 && !now.Before(c.blockedUntil) {
				delete(state.counters, rule)
			}
		}
		if len(state.counters) == 0 {
			state.removed = true
			m.subjects.Delete(k)
		}
		state.mu.Unlock()
		return true
	})
}

// Run calls Cleanup every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// lockSubject returns the locked, live state for key.
func (m *Monitor) lockSubject(key monitorDomain.Key) *subjectState {
	for {
		value, _ := m.subjects.LoadOrStore(key.String(), &subjectState{
			counters: make(map[monitorDomain.Rule]*counter),
		})
		state := value.(*subjectState)
		state.mu.Lock()
		if !state.removed {
			return state
		}
		// Lost a race with Cleanup; retry with a fresh state.
		state.mu.Unlock()
	}
}

func (m *Monitor) hit(
	ctx context.Context,
	key monitorDomain.Key,
	rule monitorDomain.Rule,
	threshold monitorDomain.Threshold,
	value string,
) {
	if threshold.Limit <= 0 {
		return
	}
	now := m.now()

	state := m.lockSubject(key)
	c, ok := state.counters[rule]
	if !ok {
		c = &counter{threshold: threshold}
		if value != "" {
			c.distinct = newDistinctWindow()
		} else {
			c.hits = &hitWindow{}
		}
		state.counters[rule] = c
	}

	c.evict(now)
	if c.distinct != nil {
		c.distinct.add(now, value)
	} else {
		c.hits.add(now)
	}
	count := c.count()

	crossed := count >= threshold.Limit && !now.Before(c.blockedUntil)
	if crossed {
		c.blockedUntil = now.Add(threshold.Window)
	}
	state.mu.Unlock()

	if crossed {
		m.raise(ctx, key, rule, threshold, count)
	}
}

func (m *Monitor) raise(
	ctx context.Context,
	key monitorDomain.Key,
	rule monitorDomain.Rule,
	threshold monitorDomain.Threshold,
	count int,
) {
	m.logger.Warn("anomaly threshold crossed",
		slog.String("rule", string(rule)),
		slog.String("subject", key.String()),
		slog.Int("count", count),
		slog.Int("threshold", threshold.Limit),
		slog.Duration("window", threshold.Window),
	)
	if m.publisher == nil {
		return
	}

	alert := monitorDomain.NewAlert(
		rule,
		key.String(),
		monitorDomain.SeverityHigh,
		fmt.Sprintf("%s reached %d within %s", rule, count, threshold.Window),
	)
	alert.Count = count
	alert.Threshold = threshold.Limit
	m.publisher.Publish(ctx, alert)
}
