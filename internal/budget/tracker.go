// Package budget tracks token usage and estimated spend per session and per
// day, and enforces an optional daily spending limit. Day totals can be
// persisted to a JSON file so the limit survives restarts.
package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/provider"
)

// modelPricing maps model IDs to per-million-token prices [input, output].
var modelPricing = map[string][2]float64{
	"gemini-2.5-pro":        {1.25, 10.0},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.0-flash":      {0.1, 0.4},
}

const (
	defaultInputPrice  = 1.25
	defaultOutputPrice = 10.0

	dateLayout = "2006-01-02"
	retainDays = 31
)

// Day is the usage of one calendar day.
type Day struct {
	Date             string                     `json:"date"` // YYYY-MM-DD
	Calls            int                        `json:"calls"`
	PromptTokens     int                        `json:"prompt_tokens"`
	CompletionTokens int                        `json:"completion_tokens"`
	CostUSD          float64                    `json:"cost_usd"`
	ByAgent          map[agent.Identity]float64 `json:"by_agent,omitempty"`
}

// Exceeded is returned once the daily limit has been spent.
type Exceeded struct {
	Date     string
	LimitUSD float64
	SpentUSD float64
}

func (e *Exceeded) Error() string {
	return fmt.Sprintf("daily budget exceeded: $%.4f / $%.2f limit", e.SpentUSD, e.LimitUSD)
}

// IsExceeded reports whether err is, or wraps, *Exceeded.
func IsExceeded(err error) bool {
	var e *Exceeded
	return errors.As(err, &e)
}

// Clock allows injecting time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Tracker accumulates usage. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	saveMu   sync.Mutex // one writer of path and path.tmp at a time
	days     map[string]*Day
	sessions map[string]float64

	limit  float64 // 0 = unlimited
	path   string  // "" = memory only
	clock  Clock
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDailyLimit caps the estimated spend per day. Zero means unlimited.
func WithDailyLimit(usd float64) Option {
	return func(t *Tracker) {
		t.limit = usd
	}
}

// WithFile persists day totals to path after every recorded call.
func WithFile(path string) Option {
	return func(t *Tracker) {
		t.path = path
	}
}

// WithClock overrides the time source (for testing).
func WithClock(c Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithLogger sets a structured logger for the tracker.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		days:     make(map[string]*Day),
		sessions: make(map[string]float64),
		clock:    realClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record adds one call to today's totals and to the session. The usage is
// always recorded; *Exceeded is returned when the call pushed today past
// the limit.
func (t *Tracker) Record(session string, id agent.Identity, model string, u provider.Usage) error {
	cost := CalculateCost(model, u)

	t.mu.Lock()
	d := t.today()
	d.Calls++
	d.PromptTokens += u.PromptTokens
	d.CompletionTokens += u.CompletionTokens
	d.CostUSD += cost
	if id != "" {
		if d.ByAgent == nil {
			d.ByAgent = make(map[agent.Identity]float64)
		}
		d.ByAgent[id] += cost
	}
	if session != "" {
		t.sessions[session] += cost
	}
	spent := d.CostUSD
	date := d.Date
	t.mu.Unlock()

	if t.path != "" {
		if err := t.Save(); err != nil {
			t.logger.Warn("failed to save usage", "path", t.path, "error", err)
		}
	}

	if t.limit > 0 && spent > t.limit {
		return &Exceeded{Date: date, LimitUSD: t.limit, SpentUSD: spent}
	}
	return nil
}

// Allow returns *Exceeded when today's spend has reached the limit.
func (t *Tracker) Allow() error {
	if t.limit <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	date := t.clock.Now().Format(dateLayout)
	d, ok := t.days[date]
	if !ok || d.CostUSD < t.limit {
		return nil
	}
	return &Exceeded{Date: date, LimitUSD: t.limit, SpentUSD: d.CostUSD}
}

// Observe records a completion reported by a provider client. The session
// and advisor are taken from ctx when the caller attached them with
// WithCall. It has the shape of provider.UsageFunc.
func (t *Tracker) Observe(ctx context.Context, model string, u provider.Usage) {
	call, _ := CallFrom(ctx)
	if err := t.Record(call.Session, call.Agent, model, u); err != nil {
		t.logger.Warn("usage over budget", "session", call.Session, "agent", call.Agent, "error", err)
	}
}

// Today returns a copy of today's totals.
func (t *Tracker) Today() Day {
	t.mu.Lock()
	defer t.mu.Unlock()

	date := t.clock.Now().Format(dateLayout)
	d, ok := t.days[date]
	if !ok {
		return Day{Date: date}
	}
	return d.clone()
}

// Days returns copies of every tracked day, most recent first.
func (t *Tracker) Days() []Day {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Day, 0, len(t.days))
	for _, d := range t.days {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// SessionCost returns the spend recorded for session since startup.
func (t *Tracker) SessionCost(session string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[session]
}

// Status reports today's spend for the status endpoint.
func (t *Tracker) Status() map[string]string {
	d := t.Today()
	v := fmt.Sprintf("$%.4f today", d.CostUSD)
	if t.limit > 0 {
		v = fmt.Sprintf("$%.4f / $%.2f today", d.CostUSD, t.limit)
	}
	return map[string]string{"budget": v}
}

// Save writes the day totals to the tracker's file. Days older than a month
// are dropped.
func (t *Tracker) Save() error {
	if t.path == "" {
		return nil
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	t.prune()
	data, err := json.MarshalIndent(t.days, "", "  ")
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create usage dir: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write usage: %w", err)
	}
	return os.Rename(tmp, t.path)
}

// Load reads the day totals from the tracker's file. A missing file is
// not an error.
func (t *Tracker) Load() error {
	if t.path == "" {
		return nil
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read usage: %w", err)
	}

	days := make(map[string]*Day)
	if err := json.Unmarshal(data, &days); err != nil {
		return fmt.Errorf("parse usage %s: %w", t.path, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for date, d := range days {
		d.Date = date
		t.days[date] = d
	}
	return nil
}

// CalculateCost estimates the USD cost of a completion. OpenRouter model
// IDs ("google/gemini-2.5-pro") are priced like their Gemini equivalents.
func CalculateCost(model string, u provider.Usage) float64 {
	in, out := modelPrice(model)
	return float64(u.PromptTokens)/1_000_000*in +
		float64(u.CompletionTokens)/1_000_000*out
}

func modelPrice(model string) (float64, float64) {
	if p, ok := modelPricing[strings.TrimPrefix(model, "google/")]; ok {
		return p[0], p[1]
	}
	return defaultInputPrice, defaultOutputPrice
}

// FormatDay renders a day's totals for the terminal.
func FormatDay(d Day, limit float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  $%.4f", d.Date, d.CostUSD)
	if limit > 0 {
		fmt.Fprintf(&b, " / $%.2f (%.1f%%)", limit, d.CostUSD/limit*100)
	}
	fmt.Fprintf(&b, "  %d calls, %d tokens\n", d.Calls, d.PromptTokens+d.CompletionTokens)

	for _, id := range agent.All() {
		if cost, ok := d.ByAgent[id]; ok {
			p := agent.ProfileOf(id)
			fmt.Fprintf(&b, "  %s %-14s $%.4f\n", p.Icon, p.Name, cost)
		}
	}
	return b.String()
}

// Limit returns the configured daily limit (0 = unlimited).
func (t *Tracker) Limit() float64 {
	return t.limit
}

// today returns today's entry, creating it. Must be called under lock.
func (t *Tracker) today() *Day {
	date := t.clock.Now().Format(dateLayout)
	if d, ok := t.days[date]; ok {
		return d
	}
	d := &Day{Date: date}
	t.days[date] = d
	return d
}

// prune drops days older than retainDays. Must be called under lock.
func (t *Tracker) prune() {
	cutoff := t.clock.Now().AddDate(0, 0, -retainDays).Format(dateLayout)
	for date := range t.days {
		if date < cutoff {
			delete(t.days, date)
		}
	}
}

func (d *Day) clone() Day {
	cp := *d
	if d.ByAgent != nil {
		cp.ByAgent = make(map[agent.Identity]float64, len(d.ByAgent))
		for k, v := range d.ByAgent {
			cp.ByAgent[k] = v
		}
	}
	return cp
}
