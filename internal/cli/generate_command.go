package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"veo-wizard/internal/api"
	"veo-wizard/internal/model"
	"veo-wizard/internal/poller"
)

// startAndReload kicks off generation, waits for the server to create the
// items, then reads the step 3 page again.
func startAndReload(ctx context.Context, client *api.Client, projectID string, delay time.Duration) (api.StartResult, model.GenerationPage, error) {
	started, err := client.StartGeneration(ctx, projectID)
	if err != nil {
		return api.StartResult{}, model.GenerationPage{}, err
	}
	if err := sleepCtx(ctx, delay); err != nil {
		return started, model.GenerationPage{}, err
	}
	page, err := client.GenerationPage(ctx, projectID)
	if err != nil {
		return started, model.GenerationPage{}, err
	}
	return started, page, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	noStart := fs.Bool("no-start", false, "only poll cards that already exist")
	interval := fs.Duration("interval", 0, "poll interval (default: settings poll_interval_seconds)")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	page, err := sess.client.GenerationPage(ctx, projectID)
	if err != nil {
		return err
	}

	if len(page.Items) == 0 {
		if *noStart {
			return fmt.Errorf("project %s has no generation items yet", projectID)
		}
		var started api.StartResult
		started, page, err = startAndReload(ctx, sess.client, projectID, sess.settings.ReloadDelay())
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			return fmt.Errorf("project %s: %s", projectID, noCardsAfterStart)
		}
		if !*jsonOut && strings.TrimSpace(started.Message) != "" {
			fmt.Println(started.Message)
		}
	}

	every := *interval
	if every <= 0 {
		every = sess.settings.PollInterval()
	}
	p := poller.New(sess.client, poller.Options{
		Interval:      every,
		TotalExpected: page.TotalRows,
		Logger:        log.Default(),
	})
	p.Track(page.Items)

	var dash *generationDashboard
	if !*jsonOut && stdoutIsTTY() {
		dash = newGenerationDashboard(projectID)
	}
	var last poller.TickResult
	runErr := p.Run(ctx, func(res poller.TickResult) {
		last = res
		switch {
		case dash != nil:
			dash.Update(res)
		case !*jsonOut:
			printTickLines(res)
		}
	})
	if dash != nil {
		dash.Stop()
	}
	if runErr != nil {
		return runErr
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"project_id": projectID,
			"total_rows": page.TotalRows,
			"progress":   last.Progress.Label(),
			"items":      last.Snapshot.Items,
		})
	}
	c := poller.CountsOf(last.Snapshot)
	fmt.Printf("done: %s completed, %d failed\n", last.Progress.Label(), c.Failed)
	return nil
}

// printTickLines is the plain rendering used when stdout is not a terminal:
// one line per changed card.
func printTickLines(res poller.TickResult) {
	for _, ch := range res.Changes {
		if !ch.Status {
			continue
		}
		line := fmt.Sprintf("row %d %s: %s", ch.To.RowIndex, ch.ID, ch.To.Status)
		if ch.From.Status != "" {
			line = fmt.Sprintf("row %d %s: %s -> %s", ch.To.RowIndex, ch.ID, ch.From.Status, ch.To.Status)
		}
		if ch.To.VideoURL != "" {
			line += " " + ch.To.VideoURL
		}
		if ch.To.Error != "" {
			line += " (" + ch.To.Error + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("progress: %s\n", res.Progress.Label())
}

type generationDashboard struct {
	mu sync.Mutex

	projectID string
	started   time.Time
	last      poller.TickResult
	events    []string
}

func newGenerationDashboard(projectID string) *generationDashboard {
	return &generationDashboard{
		projectID: projectID,
		started:   time.Now(),
		events:    make([]string, 0, 8),
	}
}

func (d *generationDashboard) Update(res poller.TickResult) {
	d.mu.Lock()
	d.last = res
	for _, ch := range res.Changes {
		if !ch.Status || ch.From.Status == "" {
			continue
		}
		d.events = append([]string{fmt.Sprintf("row %d: %s -> %s", ch.To.RowIndex, ch.From.Status, ch.To.Status)}, d.events...)
		if len(d.events) > 8 {
			d.events = d.events[:8]
		}
	}
	for _, f := range res.Failures {
		d.events = append([]string{fmt.Sprintf("%s: %v", f.ID, f.Err)}, d.events...)
		if len(d.events) > 8 {
			d.events = d.events[:8]
		}
	}
	d.mu.Unlock()
	d.render()
}

func (d *generationDashboard) Stop() {
	d.render()
}

func (d *generationDashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := d.last
	c := poller.CountsOf(res.Snapshot)
	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	b.WriteString(fmt.Sprintf("veo-wizard generate %s | tick %d | pending %d | processing %d | completed %d | failed %d | %s\n",
		d.projectID, res.Snapshot.Tick, c.Pending, c.Processing, c.Completed, c.Failed, time.Since(d.started).Round(time.Second)))
	b.WriteString(fmt.Sprintf("%s %s\n", renderProgressBar(res.Progress.Percent/100, 40), res.Progress.Label()))
	b.WriteString(strings.Repeat("-", 100) + "\n")

	if len(res.Snapshot.Items) == 0 {
		b.WriteString("(no items)\n")
	}
	for _, it := range res.Snapshot.Items {
		b.WriteString(fmt.Sprintf("#%-3d %-10s %s\n", it.RowIndex+1, model.Label(it.Status), it.ID))
		for _, line := range cardLines(it) {
			b.WriteString("     " + truncateWidth(line, 94) + "\n")
		}
	}

	if len(d.events) > 0 {
		b.WriteString(strings.Repeat("-", 100) + "\n")
		for _, e := range d.events {
			b.WriteString(e + "\n")
		}
	}
	fmt.Print(b.String())
}
