package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"veo-wizard/internal/model"
)

// scriptedFetcher answers each item from its own queue; the last entry repeats.
type scriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]fetchStep
	calls   map[string]int
}

type fetchStep struct {
	report model.StatusReport
	err    error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{scripts: make(map[string][]fetchStep), calls: make(map[string]int)}
}

func (f *scriptedFetcher) script(id string, steps ...fetchStep) {
	f.scripts[id] = steps
}

func (f *scriptedFetcher) ItemStatus(_ context.Context, id string) (model.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	steps := f.scripts[id]
	if len(steps) == 0 {
		return model.StatusReport{}, fmt.Errorf("no script for %s", id)
	}
	idx := f.calls[id] - 1
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	return steps[idx].report, steps[idx].err
}

func (f *scriptedFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func status(s string) fetchStep {
	return fetchStep{report: model.StatusReport{Status: s}}
}

func completed(url string) fetchStep {
	return fetchStep{report: model.StatusReport{Status: model.StatusCompleted, VideoURL: url}}
}

func pendingCards(n int) []model.Item {
	out := make([]model.Item, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Item{ID: fmt.Sprintf("v%d", i+1), RowIndex: i, Status: model.StatusPending})
	}
	return out
}

func quietLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "", 0), &buf
}

func TestRunStopsOnceAfterFifthCompletion(t *testing.T) {
	f := newScriptedFetcher()
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("v%d", i)
		steps := []fetchStep{status(model.StatusProcessing)}
		for j := 1; j < i; j++ {
			steps = append(steps, status(model.StatusProcessing))
		}
		steps = append(steps, completed("/media/"+id+".mp4"))
		f.script(id, steps...)
	}
	logger, _ := quietLogger()
	p := New(f, Options{Interval: time.Millisecond, TotalExpected: 5, Logger: logger})
	p.Track(pendingCards(5))

	var results []TickResult
	err := p.Run(context.Background(), func(r TickResult) { results = append(results, r) })
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	doneCount := 0
	for _, r := range results {
		if r.Done {
			doneCount++
		}
	}
	if doneCount != 1 {
		t.Fatalf("expected exactly one terminal tick, got %d", doneCount)
	}
	last := results[len(results)-1]
	if !last.Done {
		t.Fatal("expected the last tick to be terminal")
	}
	if got := last.Progress.Label(); got != "5 / 5" {
		t.Fatalf("label mismatch: got %q want %q", got, "5 / 5")
	}
	if last.Progress.Percent != 100 {
		t.Fatalf("percent mismatch: got %v want 100", last.Progress.Percent)
	}
	// v5 needs six fetches: five processing reports, then completed.
	if len(results) != 6 {
		t.Fatalf("expected 6 ticks, got %d", len(results))
	}
	if prev := results[len(results)-2]; prev.Done || prev.Progress.Completed != 4 {
		t.Fatalf("expected the previous tick to be in flight with 4 completed, got %+v", prev.Progress)
	}
}

func TestRunTerminatesWithOneFailure(t *testing.T) {
	f := newScriptedFetcher()
	f.script("v1", fetchStep{report: model.StatusReport{Status: model.StatusFailed, Error: "blocked by safety filter"}})
	for i := 2; i <= 5; i++ {
		f.script(fmt.Sprintf("v%d", i), status(model.StatusProcessing), completed(""))
	}
	logger, _ := quietLogger()
	p := New(f, Options{Interval: time.Millisecond, TotalExpected: 5, Logger: logger})
	p.Track(pendingCards(5))

	var last TickResult
	if err := p.Run(context.Background(), func(r TickResult) { last = r }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !last.Done {
		t.Fatal("expected loop to terminate")
	}
	c := CountsOf(last.Snapshot)
	if c.Completed != 4 || c.Failed != 1 || c.InFlight() != 0 {
		t.Fatalf("counts mismatch: %+v", c)
	}
	if last.Progress.Label() != "4 / 5" {
		t.Fatalf("label mismatch: %q", last.Progress.Label())
	}
	if last.Snapshot.Items[0].Error != "blocked by safety filter" {
		t.Fatalf("expected error copied onto card, got %q", last.Snapshot.Items[0].Error)
	}
}

func TestFailedFetchLeavesCardAndDoesNotStop(t *testing.T) {
	f := newScriptedFetcher()
	f.script("v1", fetchStep{err: errors.New("connection reset")}, completed("/a.mp4"))
	f.script("v2", completed("/b.mp4"))
	logger, buf := quietLogger()
	p := New(f, Options{TotalExpected: 2, Logger: logger})
	p.Track(pendingCards(2))

	first := p.Tick(context.Background())
	if first.Done {
		t.Fatal("a failed fetch must not end polling")
	}
	if len(first.Failures) != 1 || first.Failures[0].ID != "v1" {
		t.Fatalf("failures mismatch: %+v", first.Failures)
	}
	if got := first.Snapshot.Items[0].Status; got != model.StatusPending {
		t.Fatalf("failed card changed: got %q", got)
	}
	if got := first.Snapshot.Items[1].Status; got != model.StatusCompleted {
		t.Fatalf("other card not updated: got %q", got)
	}
	if !strings.Contains(buf.String(), "v1") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}

	second := p.Tick(context.Background())
	if !second.Done {
		t.Fatal("expected polling to finish once v1 completes")
	}
	if f.callCount("v2") != 1 {
		t.Fatalf("terminal card refetched: %d calls", f.callCount("v2"))
	}
}

func TestAllFetchesFailingNeverTerminates(t *testing.T) {
	f := newScriptedFetcher()
	f.script("v1", fetchStep{err: errors.New("timeout")})
	f.script("v2", fetchStep{err: errors.New("timeout")})
	logger, _ := quietLogger()
	p := New(f, Options{TotalExpected: 2, Logger: logger})
	p.Track(pendingCards(2))

	for i := 0; i < 3; i++ {
		if r := p.Tick(context.Background()); r.Done {
			t.Fatalf("tick %d terminated with every fetch failing", i+1)
		}
	}
}

func TestTerminalCardsAreNotFetched(t *testing.T) {
	f := newScriptedFetcher()
	f.script("v3", completed("/c.mp4"))
	logger, _ := quietLogger()
	p := New(f, Options{TotalExpected: 3, Logger: logger})
	p.Track([]model.Item{
		{ID: "v1", Status: model.StatusCompleted, VideoURL: "/a.mp4"},
		{ID: "v2", Status: model.StatusFailed},
		{ID: "v3", Status: model.StatusProcessing},
	})

	r := p.Tick(context.Background())
	if f.callCount("v1") != 0 || f.callCount("v2") != 0 {
		t.Fatalf("terminal cards fetched: v1=%d v2=%d", f.callCount("v1"), f.callCount("v2"))
	}
	if !r.Done {
		t.Fatal("expected done once the last card completes")
	}
	if r.Progress.Label() != "2 / 3" {
		t.Fatalf("label mismatch: %q", r.Progress.Label())
	}
}

func TestCompletedCountReachingTotalStopsWithCardsInFlight(t *testing.T) {
	snap := Snapshot{Items: []model.Item{
		{ID: "a", Status: model.StatusCompleted},
		{ID: "b", Status: model.StatusCompleted},
		{ID: "c", Status: model.StatusProcessing},
	}}
	if !Terminated(snap, 2) {
		t.Fatal("expected completed == total to terminate")
	}
	if Terminated(snap, 0) || Terminated(snap, 3) {
		t.Fatal("expected in-flight card to keep polling")
	}
	if !Terminated(Snapshot{}, 0) {
		t.Fatal("expected empty grid to be done")
	}
}

func TestStaleReportCannotReverseCard(t *testing.T) {
	f := newScriptedFetcher()
	f.script("v1", status(model.StatusProcessing), status(model.StatusPending), completed("/a.mp4"))
	logger, _ := quietLogger()
	p := New(f, Options{TotalExpected: 1, Logger: logger})
	p.Track(pendingCards(1))

	p.Tick(context.Background())
	r := p.Tick(context.Background())
	if got := r.Snapshot.Items[0].Status; got != model.StatusProcessing {
		t.Fatalf("card reversed to %q", got)
	}
	if len(r.Failures) != 1 {
		t.Fatalf("expected the reversal to be reported, got %+v", r.Failures)
	}
}

func TestTrackKeepsForwardStateAcrossReload(t *testing.T) {
	p := New(newScriptedFetcher(), Options{})
	p.Track([]model.Item{{ID: "a", Status: model.StatusProcessing}})
	p.Track([]model.Item{
		{ID: "a", Status: model.StatusPending},
		{ID: "b", Status: "weird"},
	})
	snap := p.Snapshot()
	if len(snap.Items) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(snap.Items))
	}
	if snap.Items[0].Status != model.StatusProcessing {
		t.Fatalf("reload reversed card a to %q", snap.Items[0].Status)
	}
	if snap.Items[1].Status != model.StatusPending {
		t.Fatalf("unknown page status not treated as pending: %q", snap.Items[1].Status)
	}

	p.Track([]model.Item{{ID: "a", Status: model.StatusCompleted, VideoURL: "/a.mp4"}})
	if got := p.Snapshot().Items[0]; got.Status != model.StatusCompleted || got.VideoURL != "/a.mp4" {
		t.Fatalf("forward move from page not applied: %+v", got)
	}
}

func TestDiffReportsChangedCards(t *testing.T) {
	prev := Snapshot{Items: []model.Item{
		{ID: "a", Status: model.StatusPending},
		{ID: "b", Status: model.StatusProcessing},
	}}
	next := Snapshot{Items: []model.Item{
		{ID: "a", Status: model.StatusPending},
		{ID: "b", Status: model.StatusProcessing, Error: "slow"},
		{ID: "c", Status: model.StatusPending},
	}}
	changes := Diff(prev, next)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	if changes[0].ID != "b" || changes[0].Status {
		t.Fatalf("unexpected change for b: %+v", changes[0])
	}
	if changes[1].ID != "c" || !changes[1].Status {
		t.Fatalf("unexpected change for c: %+v", changes[1])
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	f := newScriptedFetcher()
	f.script("v1", status(model.StatusProcessing))
	logger, _ := quietLogger()
	p := New(f, Options{Interval: 10 * time.Millisecond, Logger: logger})
	p.Track(pendingCards(1))

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	err := p.Run(ctx, func(TickResult) {
		ticks++
		if ticks == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
