package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"veo-wizard/internal/api"
	"veo-wizard/internal/wizard"
)

const (
	uploadProgressStep    = 10
	uploadProgressCeiling = 90
	uploadProgressEvery   = 200 * time.Millisecond
)

// nextUploadPercent advances the simulated upload bar. It never passes the
// ceiling on its own; only the response moves it to 100.
func nextUploadPercent(pct int) int {
	if pct >= uploadProgressCeiling {
		return pct
	}
	return min(pct+uploadProgressStep, uploadProgressCeiling)
}

type uploadProgress struct {
	enabled bool
	name    string

	mu  sync.Mutex
	pct int

	stop chan struct{}
	wg   sync.WaitGroup
}

func newUploadProgress(enabled bool, name string) *uploadProgress {
	return &uploadProgress{
		enabled: enabled,
		name:    name,
		stop:    make(chan struct{}),
	}
}

func (p *uploadProgress) Start() {
	if !p.enabled {
		return
	}
	fmt.Printf("\r\033[2K%s", p.render())
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(uploadProgressEvery)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				p.mu.Lock()
				p.pct = nextUploadPercent(p.pct)
				p.mu.Unlock()
				fmt.Printf("\r\033[2K%s", p.render())
			}
		}
	}()
}

// Stop ends the simulation. A successful upload jumps the bar to 100;
// a failed one clears it.
func (p *uploadProgress) Stop(success bool) {
	if !p.enabled {
		return
	}
	close(p.stop)
	p.wg.Wait()
	if !success {
		fmt.Print("\r\033[2K")
		return
	}
	p.mu.Lock()
	p.pct = 100
	p.mu.Unlock()
	fmt.Printf("\r\033[2K%s\n", p.render())
}

func (p *uploadProgress) render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("%s %3d%%  uploading %s", renderProgressBar(float64(p.pct)/100, 30), p.pct, truncateWidth(p.name, 48))
}

func runUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	file := fs.String("file", "", "data file (.csv, .xls, .xlsx)")
	name := fs.String("name", "", "project name (server default: Untitled Project)")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := strings.TrimSpace(*file)
	if path == "" && fs.NArg() > 0 {
		path = strings.TrimSpace(fs.Arg(0))
	}
	if path == "" {
		return errors.New("--file is required")
	}
	// Rejected names never reach the network.
	if err := api.ValidateFileName(path); err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	bar := newUploadProgress(!*jsonOut && stdoutIsTTY(), filepath.Base(path))
	bar.Start()
	res, err := sess.client.Upload(ctx, path, *name)
	bar.Stop(err == nil)
	if err != nil {
		return err
	}

	next := wizard.StepPath(wizard.StepPrompt, res.ProjectID)
	if *jsonOut {
		return printJSON(map[string]any{
			"project_id": res.ProjectID,
			"columns":    res.Columns,
			"total_rows": res.TotalRows,
			"preview":    res.Preview,
			"next":       next,
		})
	}

	fmt.Printf("uploaded: %s\n", filepath.Base(path))
	fmt.Printf("project_id: %s\n", res.ProjectID)
	if res.TotalRows > 0 {
		fmt.Printf("total_rows: %d\n", res.TotalRows)
	}
	fmt.Printf("columns: %s\n", strings.Join(placeholderBadges(res.Columns), " "))
	if len(res.Preview) > 0 {
		fmt.Println("preview:")
		fmt.Print(previewTable(res.Columns, res.Preview, 18))
	}
	fmt.Printf("next: %s (veo-wizard prompt show --project %s)\n", next, res.ProjectID)
	return nil
}
