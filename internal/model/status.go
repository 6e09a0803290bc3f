package model

import (
	"fmt"
	"strings"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Statuses are only ever learned from the server; the table below decides
// which of those reports a card accepts.
var allowedTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusPending:    true,
		StatusProcessing: true,
		StatusCompleted:  true, // a slow poll can miss processing entirely
		StatusFailed:     true,
	},
	StatusProcessing: {
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusFailed:     true,
	},
	StatusCompleted: {
		StatusCompleted: true,
	},
	StatusFailed: {
		StatusFailed: true,
	},
}

func NormalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// IsInFlight reports whether a card still needs a status fetch.
func IsInFlight(status string) bool {
	return status == StatusPending || status == StatusProcessing
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// ApplyReport folds a server status report into the cached card. The error
// line is copied whenever the server supplies one, whatever the status.
func ApplyReport(item *Item, report StatusReport) error {
	if msg := strings.TrimSpace(report.Error); msg != "" {
		item.Error = msg
	}
	to := NormalizeStatus(report.Status)
	if !IsKnownStatus(to) {
		return fmt.Errorf("unknown item status %q (item_id=%s)", report.Status, item.ID)
	}
	if !CanTransition(item.Status, to) {
		return fmt.Errorf("invalid item status transition: %q -> %q (item_id=%s)", item.Status, to, item.ID)
	}
	item.Status = to
	if url := strings.TrimSpace(report.VideoURL); url != "" {
		item.VideoURL = url
	}
	return nil
}

// Label is the badge text for a status.
func Label(status string) string {
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + status[1:]
}
