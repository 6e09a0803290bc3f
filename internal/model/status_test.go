package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusCompleted, StatusCompleted},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsReversals(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusProcessing, StatusPending},
		{StatusCompleted, StatusProcessing},
		{StatusFailed, StatusPending},
		{StatusCompleted, StatusFailed},
		{"error", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestApplyReport_CopiesErrorRegardlessOfStatus(t *testing.T) {
	item := Item{ID: "v1", Status: StatusPending}
	if err := ApplyReport(&item, StatusReport{Status: "processing", Error: "quota warning"}); err != nil {
		t.Fatalf("apply report: %v", err)
	}
	if item.Status != StatusProcessing {
		t.Fatalf("status mismatch: got %q want %q", item.Status, StatusProcessing)
	}
	if item.Error != "quota warning" {
		t.Fatalf("error line mismatch: got %q", item.Error)
	}
}

func TestApplyReport_CompletedWithoutURL(t *testing.T) {
	item := Item{ID: "v1", Status: StatusProcessing}
	if err := ApplyReport(&item, StatusReport{Status: StatusCompleted}); err != nil {
		t.Fatalf("apply report: %v", err)
	}
	if item.Status != StatusCompleted || item.VideoURL != "" {
		t.Fatalf("unexpected item after completion without url: %+v", item)
	}
}

func TestApplyReport_BlocksUnknownAndReversingStatus(t *testing.T) {
	item := Item{ID: "v1", Status: StatusCompleted, VideoURL: "https://cdn/v1.mp4"}
	if err := ApplyReport(&item, StatusReport{Status: StatusProcessing}); err == nil {
		t.Fatal("expected reversal to be rejected")
	}
	if item.Status != StatusCompleted {
		t.Fatalf("status changed on rejected report: %q", item.Status)
	}

	pending := Item{ID: "v2", Status: StatusPending}
	if err := ApplyReport(&pending, StatusReport{Status: "error"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if pending.Status != StatusPending {
		t.Fatalf("status changed on unknown report: %q", pending.Status)
	}
}
