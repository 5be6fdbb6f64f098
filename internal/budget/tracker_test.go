package budget

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/provider"
)

// fixedClock returns a fixed time for testing.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func day(s string) *fixedClock {
	t, _ := time.Parse("2006-01-02", s)
	return &fixedClock{now: t.Add(12 * time.Hour)}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateCost(t *testing.T) {
	u := provider.Usage{PromptTokens: 1_000_000, CompletionTokens: 100_000}
	tests := []struct {
		model string
		want  float64
	}{
		{"gemini-2.5-pro", 1.25 + 1.0},
		{"google/gemini-2.5-pro", 1.25 + 1.0},
		{"gemini-2.5-flash", 0.3 + 0.25},
		{"unknown-model", defaultInputPrice + defaultOutputPrice/10},
	}
	for _, tt := range tests {
		if got := CalculateCost(tt.model, u); !almostEqual(got, tt.want) {
			t.Errorf("CalculateCost(%q) = %f, want %f", tt.model, got, tt.want)
		}
	}
}

func TestTracker_Record(t *testing.T) {
	tr := New(WithClock(day("2026-03-01")))

	u := provider.Usage{PromptTokens: 1000, CompletionTokens: 500}
	if err := tr.Record("web:1", agent.CTO, "gemini-2.5-pro", u); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record("web:1", agent.CFO, "gemini-2.5-pro", u); err != nil {
		t.Fatalf("Record: %v", err)
	}

	d := tr.Today()
	if d.Date != "2026-03-01" || d.Calls != 2 {
		t.Errorf("Today = %+v", d)
	}
	if d.PromptTokens != 2000 || d.CompletionTokens != 1000 {
		t.Errorf("tokens = %d/%d", d.PromptTokens, d.CompletionTokens)
	}
	each := CalculateCost("gemini-2.5-pro", u)
	if !almostEqual(d.CostUSD, 2*each) {
		t.Errorf("CostUSD = %f, want %f", d.CostUSD, 2*each)
	}
	if diff := cmp.Diff(map[agent.Identity]float64{agent.CTO: each, agent.CFO: each}, d.ByAgent); diff != "" {
		t.Errorf("ByAgent mismatch (-want +got):\n%s", diff)
	}
	if !almostEqual(tr.SessionCost("web:1"), 2*each) {
		t.Errorf("SessionCost = %f", tr.SessionCost("web:1"))
	}
}

func TestTracker_DailyLimit(t *testing.T) {
	tr := New(WithClock(day("2026-03-01")), WithDailyLimit(0.001))

	if err := tr.Allow(); err != nil {
		t.Fatalf("Allow before spending: %v", err)
	}

	err := tr.Record("s", agent.CMO, "gemini-2.5-pro", provider.Usage{PromptTokens: 10_000, CompletionTokens: 5_000})
	if !IsExceeded(err) {
		t.Fatalf("expected *Exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "daily budget exceeded") {
		t.Errorf("error = %q", err)
	}
	if tr.Today().Calls != 1 {
		t.Error("usage should be recorded even when over budget")
	}

	err = tr.Allow()
	var ex *Exceeded
	if !IsExceeded(err) {
		t.Fatalf("Allow after spending: %v", err)
	}
	ex = err.(*Exceeded)
	if ex.Date != "2026-03-01" || ex.LimitUSD != 0.001 {
		t.Errorf("Exceeded = %+v", ex)
	}
}

func TestTracker_LimitResetsNextDay(t *testing.T) {
	clock := day("2026-03-01")
	tr := New(WithClock(clock), WithDailyLimit(0.001))
	tr.Record("s", agent.CTO, "gemini-2.5-pro", provider.Usage{PromptTokens: 100_000})
	if tr.Allow() == nil {
		t.Fatal("expected limit reached")
	}

	clock.now = clock.now.Add(24 * time.Hour)
	if err := tr.Allow(); err != nil {
		t.Errorf("Allow on a new day: %v", err)
	}
	if got := tr.Today(); got.Date != "2026-03-02" || got.Calls != 0 {
		t.Errorf("Today = %+v", got)
	}
	if n := len(tr.Days()); n != 1 {
		t.Errorf("Days = %d, want 1", n)
	}
}

func TestTracker_UnlimitedBudget(t *testing.T) {
	tr := New()
	for i := 0; i < 10; i++ {
		if err := tr.Record("s", agent.CTO, "gemini-2.5-pro", provider.Usage{PromptTokens: 1_000_000}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := tr.Allow(); err != nil {
		t.Errorf("Allow: %v", err)
	}
}

func TestTracker_Observe(t *testing.T) {
	tr := New(WithClock(day("2026-03-01")))

	ctx := WithCall(context.Background(), Call{Session: "slack:C1", Agent: agent.Architect})
	tr.Observe(ctx, "gemini-2.5-flash", provider.Usage{PromptTokens: 10, CompletionTokens: 10})
	tr.Observe(context.Background(), "gemini-2.5-flash", provider.Usage{PromptTokens: 10})

	d := tr.Today()
	if d.Calls != 2 {
		t.Errorf("Calls = %d, want 2", d.Calls)
	}
	if _, ok := d.ByAgent[agent.Architect]; !ok || len(d.ByAgent) != 1 {
		t.Errorf("ByAgent = %v", d.ByAgent)
	}
	if tr.SessionCost("slack:C1") <= 0 {
		t.Error("expected session cost to be attributed")
	}
}

func TestCallFrom_Missing(t *testing.T) {
	if _, ok := CallFrom(context.Background()); ok {
		t.Error("expected no call on a bare context")
	}
}

func TestTracker_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "usage.json")
	clock := day("2026-03-01")

	tr := New(WithClock(clock), WithFile(path))
	tr.Record("s", agent.CTO, "gemini-2.5-pro", provider.Usage{PromptTokens: 1000, CompletionTokens: 200})

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("usage file not written: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	restored := New(WithClock(clock), WithFile(path))
	if err := restored.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(tr.Today(), restored.Today()); diff != "" {
		t.Errorf("restored day mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_SavePrunesOldDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	clock := day("2026-01-01")
	tr := New(WithClock(clock), WithFile(path))
	tr.Record("s", agent.CTO, "gemini-2.5-pro", provider.Usage{PromptTokens: 1})

	clock.now = clock.now.AddDate(0, 2, 0)
	tr.Record("s", agent.CTO, "gemini-2.5-pro", provider.Usage{PromptTokens: 1})

	days := tr.Days()
	if len(days) != 1 || days[0].Date != "2026-03-01" {
		t.Errorf("Days = %+v", days)
	}
}

func TestTracker_LoadMissing(t *testing.T) {
	tr := New(WithFile(filepath.Join(t.TempDir(), "nope.json")))
	if err := tr.Load(); err != nil {
		t.Errorf("Load of a missing file: %v", err)
	}
}

func TestTracker_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if err := New(WithFile(path)).Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestTracker_Status(t *testing.T) {
	tr := New(WithClock(day("2026-03-01")), WithDailyLimit(5))
	if got := tr.Status()["budget"]; got != "$0.0000 / $5.00 today" {
		t.Errorf("Status = %q", got)
	}
	if got := New().Status()["budget"]; got != "$0.0000 today" {
		t.Errorf("unlimited Status = %q", got)
	}
}

func TestFormatDay(t *testing.T) {
	d := Day{
		Date:             "2026-03-01",
		Calls:            3,
		PromptTokens:     100,
		CompletionTokens: 50,
		CostUSD:          1,
		ByAgent:          map[agent.Identity]float64{agent.CFO: 0.75, agent.CTO: 0.25},
	}
	got := FormatDay(d, 4)
	for _, want := range []string{"2026-03-01", "$1.0000 / $4.00 (25.0%)", "3 calls, 150 tokens", "CTO Bot", "CFO Bot"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatDay missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "CTO Bot") > strings.Index(got, "CFO Bot") {
		t.Error("advisors should be listed in boardroom order")
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("s", agent.CTO, "gemini-2.5-pro", provider.Usage{PromptTokens: 1})
		}()
	}
	wg.Wait()
	if got := tr.Today().Calls; got != 50 {
		t.Errorf("Calls = %d, want 50", got)
	}
}

func TestTracker_ConcurrentRecordWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tr := New(WithFile(path))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("s", agent.CMO, "gemini-2.5-flash", provider.Usage{PromptTokens: 10})
		}()
	}
	wg.Wait()

	restored := New(WithFile(path))
	if err := restored.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := restored.Today().Calls; got != 20 {
		t.Errorf("persisted Calls = %d, want 20", got)
	}
}
