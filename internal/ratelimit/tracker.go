package ratelimit

import (
	"sync"
	"time"
)

const defaultCooldown = 60 * time.Second

type state struct {
	remaining   *int64
	limit       *int64
	resetsAt    *time.Time
	retryAfter  *float64
	lastUpdated time.Time
}

// Status is the externally visible view of one provider's limit state.
type Status struct {
	Available bool
	Wait      time.Duration
	Remaining *int64
}

// Tracker records per-provider rate-limit observations and answers whether a
// provider is worth calling right now. Availability is always re-derived from
// the clock; expired limits are cleared lazily on query, never by timers.
type Tracker struct {
	mu    sync.Mutex
	state map[string]state

	now func() time.Time // swapped in tests
}

func NewTracker() *Tracker {
	return &Tracker{
		state: make(map[string]state),
		now:   time.Now,
	}
}

// Update merges freshly observed header values over the previous state.
// Fields missing from the new observation keep their old value; an update
// never erases knowledge, only refreshes it.
func (t *Tracker) Update(provider string, h Headers) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state[provider]
	t.state[provider] = state{
		remaining:   coalesce(h.Remaining, prev.remaining),
		limit:       coalesce(h.Limit, prev.limit),
		resetsAt:    coalesce(h.ResetsAt, prev.resetsAt),
		retryAfter:  coalesce(h.RetryAfter, prev.retryAfter),
		lastUpdated: t.now(),
	}
}

// MarkLimited forces a provider into the limited state, used when a vendor
// returns 429 without parseable headers. retryAfter <= 0 selects the default
// cooldown.
func (t *Tracker) MarkLimited(provider string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultCooldown
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var zero int64
	resetsAt := t.now().Add(retryAfter)
	seconds := retryAfter.Seconds()
	t.state[provider] = state{
		remaining:   &zero,
		limit:       t.state[provider].limit,
		resetsAt:    &resetsAt,
		retryAfter:  &seconds,
		lastUpdated: t.now(),
	}
}

// IsAvailable reports whether the provider is currently usable. A provider
// with no recorded state, or an unknown/positive remaining count, is
// available. A zero remaining count whose reset time has passed clears the
// stale entry as a side effect.
func (t *Tracker) IsAvailable(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isAvailableLocked(provider)
}

func (t *Tracker) isAvailableLocked(provider string) bool {
	s, ok := t.state[provider]
	if !ok {
		return true
	}

	if s.remaining != nil && *s.remaining <= 0 {
		if s.resetsAt != nil && !t.now().Before(*s.resetsAt) {
			delete(t.state, provider)
			return true
		}
		return false
	}

	return true
}

// WaitTime returns how long until the provider becomes usable, or 0 when it
// already is. With no reset timestamp the estimate falls back to retryAfter
// minus elapsed time, then to the default cooldown.
func (t *Tracker) WaitTime(provider string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isAvailableLocked(provider) {
		return 0
	}

	s := t.state[provider]
	now := t.now()

	if s.resetsAt != nil {
		if wait := s.resetsAt.Sub(now); wait > 0 {
			return wait
		}
		return 0
	}

	if s.retryAfter != nil {
		elapsed := now.Sub(s.lastUpdated)
		if wait := time.Duration(*s.retryAfter*float64(time.Second)) - elapsed; wait > 0 {
			return wait
		}
		return 0
	}

	return defaultCooldown
}

// Snapshot returns the current status of every tracked provider.
func (t *Tracker) Snapshot() map[string]Status {
	t.mu.Lock()
	providers := make([]string, 0, len(t.state))
	for p := range t.state {
		providers = append(providers, p)
	}
	t.mu.Unlock()

	out := make(map[string]Status, len(providers))
	for _, p := range providers {
		available := t.IsAvailable(p)
		wait := t.WaitTime(p)

		t.mu.Lock()
		s, tracked := t.state[p]
		t.mu.Unlock()
		if !tracked {
			// cleared by the lazy expiry above
			continue
		}

		out[p] = Status{Available: available, Wait: wait, Remaining: s.remaining}
	}
	return out
}

func coalesce[T any](next, prev *T) *T {
	if next != nil {
		return next
	}
	return prev
}
