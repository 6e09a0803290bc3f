// Package poller reconciles generation item cards against the status
// endpoint until every card settles.
//
// A tick fetches all in-flight items concurrently and waits for every fetch
// before it applies anything. The termination check therefore always sees a
// complete snapshot; a fetch that fails leaves its card in flight, so it
// can never end the loop early.
package poller

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"veo-wizard/internal/model"
)

const DefaultInterval = 5 * time.Second

// Fetcher returns the server's current report for one item.
type Fetcher interface {
	ItemStatus(ctx context.Context, itemID string) (model.StatusReport, error)
}

type Options struct {
	Interval time.Duration
	// TotalExpected is the row count announced by the page. Zero disables
	// the completed == total shortcut.
	TotalExpected int
	Logger        *log.Logger
}

// Snapshot is the full card state after a tick. Items keep card order.
type Snapshot struct {
	Tick  int
	Items []model.Item
}

// Change is one card whose state differs between two snapshots.
type Change struct {
	ID     string
	From   model.Item
	To     model.Item
	Status bool
}

type Counts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// InFlight is the number of cards that still need a fetch.
func (c Counts) InFlight() int {
	return c.Pending + c.Processing
}

type Progress struct {
	Completed int
	Total     int
	Percent   float64
}

// Label is the "X / Y" text shown next to the progress bar.
func (p Progress) Label() string {
	return fmt.Sprintf("%d / %d", p.Completed, p.Total)
}

// FetchError records one failed status fetch within a tick.
type FetchError struct {
	ID  string
	Err error
}

// TickResult is what one tick observed.
type TickResult struct {
	Snapshot Snapshot
	Changes  []Change
	Failures []FetchError
	Progress Progress
	Done     bool
}

type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	total    int
	logger   *log.Logger

	mu    sync.Mutex
	order []string
	items map[string]model.Item
	ticks int
}

func New(fetcher Fetcher, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		total:    opts.TotalExpected,
		logger:   logger,
		items:    make(map[string]model.Item),
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// SetTotalExpected updates the expected item count, e.g. after a page reload.
func (p *Poller) SetTotalExpected(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Track merges cards from a page load. New cards are appended in the given
// order. A known card only takes the page's status when that is a forward
// move, so a stale page cannot undo what polling already learned.
func (p *Poller) Track(cards []model.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, card := range cards {
		if card.ID == "" {
			continue
		}
		card.Status = model.NormalizeStatus(card.Status)
		if !model.IsKnownStatus(card.Status) {
			card.Status = model.StatusPending
		}
		known, ok := p.items[card.ID]
		if !ok {
			p.order = append(p.order, card.ID)
			p.items[card.ID] = card
			continue
		}
		if known.Status != card.Status && model.CanTransition(known.Status, card.Status) {
			known.Status = card.Status
		}
		if known.VideoURL == "" {
			known.VideoURL = card.VideoURL
		}
		if known.Error == "" {
			known.Error = card.Error
		}
		if known.Prompt == "" {
			known.Prompt = card.Prompt
		}
		p.items[card.ID] = known
	}
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	items := make([]model.Item, 0, len(p.order))
	for _, id := range p.order {
		items = append(items, p.items[id])
	}
	return Snapshot{Tick: p.ticks, Items: items}
}

// Done reports whether polling should stop for the current state.
func (p *Poller) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Terminated(p.snapshotLocked(), p.total)
}

// Tick fetches every pending or processing card, waits for all of them, then
// applies the reports in card order. Cards already terminal are not fetched.
func (p *Poller) Tick(ctx context.Context) TickResult {
	prev := p.Snapshot()

	type outcome struct {
		report model.StatusReport
		err    error
	}
	outcomes := make([]outcome, len(prev.Items))
	var wg sync.WaitGroup
	for i, it := range prev.Items {
		if !model.IsInFlight(it.Status) {
			continue
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			report, err := p.fetcher.ItemStatus(ctx, id)
			outcomes[i] = outcome{report: report, err: err}
		}(i, it.ID)
	}
	wg.Wait()

	var failures []FetchError
	p.mu.Lock()
	for i, it := range prev.Items {
		if !model.IsInFlight(it.Status) {
			continue
		}
		out := outcomes[i]
		if out.err != nil {
			failures = append(failures, FetchError{ID: it.ID, Err: out.err})
			continue
		}
		cur := p.items[it.ID]
		if err := model.ApplyReport(&cur, out.report); err != nil {
			failures = append(failures, FetchError{ID: it.ID, Err: err})
		}
		p.items[it.ID] = cur
	}
	p.ticks++
	next := p.snapshotLocked()
	total := p.total
	p.mu.Unlock()

	for _, f := range failures {
		p.logger.Printf("status check failed for item %s: %v", f.ID, f.Err)
	}

	return TickResult{
		Snapshot: next,
		Changes:  Diff(prev, next),
		Failures: failures,
		Progress: ProgressOf(next, total),
		Done:     Terminated(next, total),
	}
}

// Run ticks once immediately, then every interval, until the cards settle or
// ctx ends. onTick sees every tick's result, including the last one. The
// returned error is ctx's error when polling was cancelled.
func (p *Poller) Run(ctx context.Context, onTick func(TickResult)) error {
	result := p.Tick(ctx)
	if onTick != nil {
		onTick(result)
	}
	if result.Done {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result := p.Tick(ctx)
			if onTick != nil {
				onTick(result)
			}
			if result.Done {
				return nil
			}
		}
	}
}

// Diff lists cards whose state differs between prev and next. Cards only in
// next are reported with a zero From.
func Diff(prev, next Snapshot) []Change {
	before := make(map[string]model.Item, len(prev.Items))
	for _, it := range prev.Items {
		before[it.ID] = it
	}
	var out []Change
	for _, it := range next.Items {
		old, ok := before[it.ID]
		if ok && old == it {
			continue
		}
		out = append(out, Change{ID: it.ID, From: old, To: it, Status: old.Status != it.Status})
	}
	return out
}

func CountsOf(s Snapshot) Counts {
	var c Counts
	for _, it := range s.Items {
		switch it.Status {
		case model.StatusPending:
			c.Pending++
		case model.StatusProcessing:
			c.Processing++
		case model.StatusCompleted:
			c.Completed++
		case model.StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Terminated is the stop predicate: nothing left in flight, or every
// expected item completed.
func Terminated(s Snapshot, totalExpected int) bool {
	c := CountsOf(s)
	if c.InFlight() == 0 {
		return true
	}
	return totalExpected > 0 && c.Completed >= totalExpected
}

// ProgressOf is completed over the expected total. Without a total the
// tracked card count is used.
func ProgressOf(s Snapshot, totalExpected int) Progress {
	c := CountsOf(s)
	total := totalExpected
	if total <= 0 {
		total = len(s.Items)
	}
	pr := Progress{Completed: c.Completed, Total: total}
	if total > 0 {
		pr.Percent = math.Min(100, float64(c.Completed)/float64(total)*100)
	}
	return pr
}
