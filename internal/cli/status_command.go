package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"veo-wizard/internal/model"
	"veo-wizard/internal/poller"
)

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	project := fs.String("project", "", "project id (all cards on its generation page)")
	item := fs.String("item", "", "single item id")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectID := strings.TrimSpace(*project)
	itemID := strings.TrimSpace(*item)
	if (projectID == "") == (itemID == "") {
		return errors.New("set exactly one of --project or --item")
	}

	ctx := context.Background()
	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	if itemID != "" {
		report, err := sess.client.ItemStatus(ctx, itemID)
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(report)
		}
		fmt.Println(kv("item", itemID))
		fmt.Println(kv("status", report.Status))
		if report.VideoURL != "" {
			fmt.Println(kv("video_url", report.VideoURL))
		}
		if report.Error != "" {
			fmt.Println(kv("error", report.Error))
		}
		return nil
	}

	page, err := sess.client.GenerationPage(ctx, projectID)
	if err != nil {
		return err
	}
	snap := poller.Snapshot{Items: page.Items}
	progress := poller.ProgressOf(snap, page.TotalRows)
	if *jsonOut {
		return printJSON(map[string]any{
			"project_id": page.ProjectID,
			"total_rows": page.TotalRows,
			"progress":   progress.Label(),
			"done":       len(page.Items) > 0 && poller.Terminated(snap, page.TotalRows),
			"items":      page.Items,
		})
	}

	fmt.Println(kv("project_id", page.ProjectID))
	if len(page.Items) == 0 {
		fmt.Println("items: (none, generation not started)")
		return nil
	}
	c := poller.CountsOf(snap)
	fmt.Printf("progress: %s (pending %d, processing %d, failed %d)\n", progress.Label(), c.Pending, c.Processing, c.Failed)
	for _, it := range page.Items {
		fmt.Printf("#%d [%s] %s\n", it.RowIndex+1, model.Label(it.Status), it.ID)
		for _, line := range cardLines(it) {
			fmt.Printf("    %s\n", line)
		}
	}
	return nil
}
