// Package governor gates external calls against per-minute and per-day budgets.
package governor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aretw0/director/pkg/domain"
)

const day = 24 * time.Hour

// Default budgets for the shared external services.
const (
	DefaultPerMinute = 15
	DefaultPerDay    = 1500
)

// BudgetError reports which budget denied a call.
type BudgetError struct {
	Reason domain.Degradation
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrBudgetExhausted, e.Reason)
}

// Unwrap allows errors.Is(err, domain.ErrBudgetExhausted).
func (e *BudgetError) Unwrap() error {
	return domain.ErrBudgetExhausted
}

// Window describes the usage of one budget.
type Window struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Usage is a snapshot of both budgets. A Limit of 0 means unlimited.
type Usage struct {
	Minute Window `json:"minute"`
	Daily  Window `json:"daily"`
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

// Governor is safe for concurrent use and is typically shared by every
// session that talks to the same external services.
type Governor struct {
	mu          sync.Mutex
	minute      *rate.Limiter
	minuteLimit int
	dailyLimit  int
	calls       []time.Time
	now         func() time.Time
}

// New creates a Governor. Non-positive limits disable the corresponding budget.
func New(perMinute, perDay int, opts ...Option) *Governor {
	g := &Governor{
		minuteLimit: max(perMinute, 0),
		dailyLimit:  max(perDay, 0),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.minuteLimit > 0 {
		g.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.minuteLimit)), g.minuteLimit)
	}
	return g
}

// Acquire reserves one external call. It never blocks; when a budget is
// exhausted it returns a *BudgetError and records nothing.
func (g *Governor) Acquire() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	if g.dailyLimit > 0 && len(g.calls) >= g.dailyLimit {
		return &BudgetError{Reason: domain.DegradationDailyBudget}
	}
	if g.minute != nil && !g.minute.AllowN(now, 1) {
		return &BudgetError{Reason: domain.DegradationMinuteBudget}
	}
	g.calls = append(g.calls, now)
	return nil
}

// Usage reports the calls made within the last minute and the last 24 hours.
func (g *Governor) Usage() Usage {
	if g == nil {
		return Usage{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	lastMinute := 0
	for i := len(g.calls) - 1; i >= 0 && now.Sub(g.calls[i]) < time.Minute; i-- {
		lastMinute++
	}
	return Usage{
		Minute: window(lastMinute, g.minuteLimit),
		Daily:  window(len(g.calls), g.dailyLimit),
	}
}

// RemainingDaily returns the calls left today, or math.MaxInt when unlimited.
func (g *Governor) RemainingDaily() int {
	if g == nil || g.dailyLimit == 0 {
		return math.MaxInt
	}
	return g.Usage().Daily.Remaining
}

// Features returns the degradation policy for the current daily budget.
func (g *Governor) Features() Features {
	return Policy(g.RemainingDaily())
}

// Reset forgets all recorded calls.
func (g *Governor) Reset() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
	if g.minute != nil {
		g.minute = rate.NewLimiter(g.minute.Limit(), g.minuteLimit)
	}
}

func (g *Governor) prune(now time.Time) {
	cut := 0
	for cut < len(g.calls) && now.Sub(g.calls[cut]) >= day {
		cut++
	}
	if cut > 0 {
		g.calls = append(g.calls[:0], g.calls[cut:]...)
	}
}

func window(used, limit int) Window {
	w := Window{Used: used, Limit: limit}
	if limit > 0 {
		w.Remaining = max(0, limit-used)
	}
	return w
}
