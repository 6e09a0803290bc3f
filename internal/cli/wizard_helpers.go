package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-runewidth"

	"veo-wizard/internal/model"
	"veo-wizard/internal/prompt"
)

func kv(k, v string) string {
	return fmt.Sprintf("%s: %s", k, v)
}

func listWindow(total, cursor, maxRows int) (int, int) {
	if total <= maxRows {
		return 0, total
	}
	half := maxRows / 2
	start := cursor - half
	if start < 0 {
		start = 0
	}
	end := start + maxRows
	if end > total {
		end = total
		start = end - maxRows
	}
	return start, end
}

// truncateWidth cuts s to a display width, counting wide runes as two cells.
func truncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func padWidth(s string, width int) string {
	return runewidth.FillRight(truncateWidth(s, width), width)
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// cellText renders a preview value; missing values render empty.
func cellText(v any) string {
	if v == nil {
		return ""
	}
	return strings.ReplaceAll(fmt.Sprint(v), "\n", " ")
}

func placeholderBadges(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, prompt.Placeholder(c))
	}
	return out
}

func renderProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	} else if percent > 1 {
		percent = 1
	}
	if width <= 0 {
		width = 32
	}
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(width),
	)
	return bar.ViewAs(percent)
}

// previewTable lays out the server's preview as plain text columns, exactly
// the rows and columns it sent.
func previewTable(columns []string, rows []map[string]any, colWidth int) string {
	if len(columns) == 0 {
		return ""
	}
	colWidth = clampInt(colWidth, 6, 40)
	var b strings.Builder
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = padWidth(c, colWidth)
	}
	b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " ") + "\n")
	b.WriteString(strings.Repeat("-", (colWidth+2)*len(columns)-2) + "\n")
	for _, row := range rows {
		for i, c := range columns {
			cells[i] = padWidth(cellText(row[c]), colWidth)
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " ") + "\n")
	}
	return b.String()
}

// cardLines is the text body of one generation card, shared by the TUI and
// the line dashboard.
func cardLines(it model.Item) []string {
	lines := []string{}
	if strings.TrimSpace(it.Prompt) != "" {
		lines = append(lines, it.Prompt)
	}
	switch it.Status {
	case model.StatusCompleted:
		if it.VideoURL != "" {
			lines = append(lines, "video: "+it.VideoURL)
		}
	case model.StatusProcessing:
		lines = append(lines, "Generating...")
	case model.StatusFailed:
		lines = append(lines, defaultIfEmpty(it.Error, "Generation failed"))
	}
	if it.Error != "" {
		lines = append(lines, "error: "+it.Error)
	}
	return lines
}
