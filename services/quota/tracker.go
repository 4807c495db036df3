package quota

import (
	"sync"
	"time"

	"github.com/modelrelay/modelrelay/services/providers"
	"go.uber.org/zap"
)

// Tracker counts requests per provider per day, in memory. Counters reset on
// calendar-day rollover and are lost on restart; quota here is an accepted
// approximation, not a durability guarantee. Counters are independent per
// provider, so there is no cross-provider coordination: each holds its own
// lock for safe concurrent increment/read from many in-flight requests.
type Tracker struct {
	clock    func() time.Time
	counters map[string]*counter
	logger   *zap.Logger
}

type counter struct {
	mu    sync.Mutex
	limit providers.RateLimit

	requestsToday int
	windowStart   time.Time // start of the calendar day being counted

	// minute window for the declared per-minute limit
	requestsThisMinute int
	minuteStart        time.Time
}

// TrackerOption customizes a Tracker
type TrackerOption func(*Tracker)

// WithClock overrides time resolution, used in rollover tests
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// NewTracker creates one counter per registered provider
func NewTracker(descriptors []providers.Descriptor, logger *zap.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		clock:    time.Now,
		counters: make(map[string]*counter, len(descriptors)),
		logger:   logger,
	}

	for _, o := range opts {
		o(t)
	}

	now := t.clock()
	for _, d := range descriptors {
		t.counters[d.ID] = &counter{
			limit:       d.RateLimit,
			windowStart: dayOf(now),
			minuteStart: now.Truncate(time.Minute),
		}
	}

	return t
}

// Remaining returns the provider's remaining daily request budget, rolling
// the counter over first if the calendar day has changed. Unknown providers
// have no budget.
func (t *Tracker) Remaining(providerID string) int {
	c, ok := t.counters[providerID]
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover(t.clock())

	remaining := c.limit.RequestsPerDay - c.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Record counts one attempted outbound call. Called exactly once per provider
// attempt, including each attempt within a fallback chain.
func (t *Tracker) Record(providerID string) {
	c, ok := t.counters[providerID]
	if !ok {
		t.logger.Warn("usage recorded for unregistered provider", zap.String("provider", providerID))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover(t.clock())
	c.requestsToday++
	c.requestsThisMinute++
}

// Allow reports whether the provider has capacity left in both the daily and
// the declared per-minute window. It does not consume capacity.
func (t *Tracker) Allow(providerID string) bool {
	c, ok := t.counters[providerID]
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover(t.clock())

	if c.limit.RequestsPerDay > 0 && c.requestsToday >= c.limit.RequestsPerDay {
		return false
	}
	if c.limit.RequestsPerMinute > 0 && c.requestsThisMinute >= c.limit.RequestsPerMinute {
		return false
	}
	return true
}

// Snapshot returns the current daily usage per provider, for diagnostics
func (t *Tracker) Snapshot() map[string]int {
	out := make(map[string]int, len(t.counters))
	now := t.clock()
	for id, c := range t.counters {
		c.mu.Lock()
		c.rollover(now)
		out[id] = c.requestsToday
		c.mu.Unlock()
	}
	return out
}

// rollover lazily resets the counters when their windows have passed. The
// daily comparison is by calendar date, not a rolling 24h window, so usage
// resets at local-midnight boundaries. Caller holds the counter lock.
func (c *counter) rollover(now time.Time) {
	if day := dayOf(now); !day.Equal(c.windowStart) {
		c.requestsToday = 0
		c.windowStart = day
	}
	if minute := now.Truncate(time.Minute); !minute.Equal(c.minuteStart) {
		c.requestsThisMinute = 0
		c.minuteStart = minute
	}
}

// dayOf truncates a time to the start of its calendar day
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
