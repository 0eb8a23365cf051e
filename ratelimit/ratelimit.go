// Package ratelimit gates outbound calls to the external AI service so that
// four independent ceilings hold at once: requests per minute, tokens per
// minute, concurrent in-flight calls, and a rolling daily spend budget.
//
// A Limiter is owned by the client that created it; it is safe for concurrent
// use within one process and is never persisted.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Op labels what kind of external call a permit covers.
type Op string

const (
	OpVision    Op = "vision"
	OpEmbedding Op = "embedding"
)

// DenyReason says which ceiling refused a permit. Empty on grant.
type DenyReason string

const (
	DenyNone        DenyReason = ""
	DenyConcurrency DenyReason = "concurrency"
	DenyRequests    DenyReason = "requests_per_minute"
	DenyTokens      DenyReason = "tokens_per_minute"
	DenyDailyCost   DenyReason = "daily_cost"
)

const window = time.Minute

// Config carries the four ceilings plus the per-model price table (USD per
// 1K tokens). Zero values fall back to the documented defaults.
type Config struct {
	RequestsPerMinute int
	TokensPerMinute   int
	MaxConcurrent     int
	DailyCostLimit    float64

	// Pricing maps model name to USD per 1K tokens. Unknown models use
	// DefaultPricePer1K.
	Pricing           map[string]float64
	DefaultPricePer1K float64

	// now and pace override the clock and the pacing wait in tests.
	now  func() time.Time
	pace func(ctx context.Context) error
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.RequestsPerMinute <= 0 {
		out.RequestsPerMinute = 3500
	}
	if out.TokensPerMinute <= 0 {
		out.TokensPerMinute = 200000
	}
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = 100
	}
	if out.DailyCostLimit <= 0 {
		out.DailyCostLimit = 50.0
	}
	if out.DefaultPricePer1K <= 0 {
		out.DefaultPricePer1K = 0.002
	}
	if out.now == nil {
		out.now = time.Now
	}
	return out
}

// Request describes one prospective external call.
type Request struct {
	Model           string
	EstimatedTokens int
	Op              Op
}

type tokenEvent struct {
	at     time.Time
	tokens int
	model  string
	op     Op
}

// Limiter tracks sliding 60-second request/token windows, in-flight calls,
// and a daily cost accumulator that resets when the calendar date changes.
type Limiter struct {
	cfg Config

	mu           sync.Mutex
	requestTimes []time.Time
	tokenEvents  []tokenEvent
	active       int
	dailyCost    float64
	costDay      time.Time
}

// New builds a Limiter from cfg, applying defaults for unset ceilings.
func New(cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	if cfg.pace == nil {
		interval := window / time.Duration(cfg.RequestsPerMinute)
		if interval <= 0 {
			interval = time.Nanosecond
		}
		cfg.pace = rate.NewLimiter(rate.Every(interval), 1).Wait
	}
	return &Limiter{
		cfg:     cfg,
		costDay: dateOf(cfg.now()),
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (l *Limiter) priceFor(model string) float64 {
	if p, ok := l.cfg.Pricing[model]; ok {
		return p
	}
	return l.cfg.DefaultPricePer1K
}

// locked helpers assume l.mu is held.

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.requestTimes) && !l.requestTimes[i].After(cutoff) {
		i++
	}
	l.requestTimes = l.requestTimes[i:]

	j := 0
	for j < len(l.tokenEvents) && !l.tokenEvents[j].at.After(cutoff) {
		j++
	}
	l.tokenEvents = l.tokenEvents[j:]
}

func (l *Limiter) rollDayLocked(now time.Time) {
	if day := dateOf(now); day.After(l.costDay) {
		l.dailyCost = 0
		l.costDay = day
	}
}

func (l *Limiter) windowTokensLocked() int {
	sum := 0
	for _, ev := range l.tokenEvents {
		sum += ev.tokens
	}
	return sum
}

// Acquire asks for a permit covering req. It never returns an error: a
// denial is a normal outcome and the reason names the ceiling that refused.
// Callers that proceed without a grant violate the contract.
//
// On grant the request is recorded (window entries, in-flight count, cost)
// before the pacing wait, so a context cancellation during pacing does not
// un-consume quota; the caller's external call will observe the cancellation
// and must still Release.
func (l *Limiter) Acquire(ctx context.Context, req Request) (bool, DenyReason) {
	l.mu.Lock()
	now := l.cfg.now()
	l.pruneLocked(now)
	l.rollDayLocked(now)

	if l.active >= l.cfg.MaxConcurrent {
		l.mu.Unlock()
		return false, DenyConcurrency
	}
	if len(l.requestTimes) >= l.cfg.RequestsPerMinute {
		l.mu.Unlock()
		return false, DenyRequests
	}
	if l.windowTokensLocked()+req.EstimatedTokens > l.cfg.TokensPerMinute {
		l.mu.Unlock()
		return false, DenyTokens
	}
	estCost := float64(req.EstimatedTokens) / 1000 * l.priceFor(req.Model)
	if l.dailyCost+estCost > l.cfg.DailyCostLimit {
		l.mu.Unlock()
		return false, DenyDailyCost
	}

	l.requestTimes = append(l.requestTimes, now)
	l.tokenEvents = append(l.tokenEvents, tokenEvent{at: now, tokens: req.EstimatedTokens, model: req.Model, op: req.Op})
	l.active++
	l.dailyCost += estCost
	l.mu.Unlock()

	// Inter-request pacing: one grant per 60/RPM interval. A cancellation
	// here still counts as a grant; the quota above is already consumed.
	_ = l.cfg.pace(ctx)
	return true, DenyNone
}

// Release returns a permit. When the actual token usage is known it corrects
// the most recent token event from the estimate and adjusts the daily cost by
// the delta; token counts are only known precisely after the call returns.
// Extra releases are harmless: the in-flight count floors at zero.
func (l *Limiter) Release(actualTokens int, model string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active > 0 {
		l.active--
	}
	if actualTokens <= 0 || len(l.tokenEvents) == 0 {
		return
	}
	ev := &l.tokenEvents[len(l.tokenEvents)-1]
	if model == "" {
		model = ev.model
	}
	delta := float64(actualTokens-ev.tokens) / 1000 * l.priceFor(model)
	ev.tokens = actualTokens
	l.dailyCost += delta
	if l.dailyCost < 0 {
		l.dailyCost = 0
	}
}

// Dimension reports one ceiling's utilization.
type Dimension struct {
	Current float64 `json:"current"`
	Limit   float64 `json:"limit"`
	Percent float64 `json:"percent"`
}

func dim(current, limit float64) Dimension {
	pct := 0.0
	if limit > 0 {
		pct = current / limit * 100
	}
	return Dimension{Current: current, Limit: limit, Percent: pct}
}

// Status is a point-in-time snapshot for observability; nothing in the core
// branches on it.
type Status struct {
	RequestsPerMinute Dimension `json:"requests_per_minute"`
	TokensPerMinute   Dimension `json:"tokens_per_minute"`
	ActiveRequests    Dimension `json:"active_requests"`
	DailyCost         Dimension `json:"daily_cost"`
}

// Status prunes the windows, rolls the daily budget if the date changed, and
// returns the current utilization of every dimension.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.now()
	l.pruneLocked(now)
	l.rollDayLocked(now)

	return Status{
		RequestsPerMinute: dim(float64(len(l.requestTimes)), float64(l.cfg.RequestsPerMinute)),
		TokensPerMinute:   dim(float64(l.windowTokensLocked()), float64(l.cfg.TokensPerMinute)),
		ActiveRequests:    dim(float64(l.active), float64(l.cfg.MaxConcurrent)),
		DailyCost:         dim(l.dailyCost, l.cfg.DailyCostLimit),
	}
}
