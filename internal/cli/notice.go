package cli

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type noticeKind int

const (
	noticeInfo noticeKind = iota
	noticeSuccess
	noticeError
)

// notice is the wizard's single transient message line. Every show bumps
// seq, so only the latest timer can hide it.
type notice struct {
	kind    noticeKind
	text    string
	seq     int
	visible bool
}

type noticeExpiredMsg struct {
	seq int
}

// showNoticeMsg asks the wizard root to display a notice.
type showNoticeMsg struct {
	kind noticeKind
	text string
}

// showAlertMsg asks the wizard root for a blocking alert.
type showAlertMsg struct {
	text string
}

func noticeCmd(kind noticeKind, text string) tea.Cmd {
	return func() tea.Msg { return showNoticeMsg{kind: kind, text: text} }
}

func alertCmd(text string) tea.Cmd {
	return func() tea.Msg { return showAlertMsg{text: text} }
}

func (n *notice) show(kind noticeKind, text string, delay time.Duration) tea.Cmd {
	n.seq++
	n.kind = kind
	n.text = strings.TrimSpace(text)
	n.visible = n.text != ""
	seq := n.seq
	return tea.Tick(delay, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

func (n *notice) expire(msg noticeExpiredMsg) {
	if msg.seq == n.seq {
		n.visible = false
	}
}

func (n notice) view(width int) string {
	if !n.visible {
		return ""
	}
	style := wizardMutedStyle
	switch n.kind {
	case noticeSuccess:
		style = wizardOKStyle
	case noticeError:
		style = wizardErrorStyle
	}
	return style.Width(width).Render(truncateWidth(n.text, maxInt(width-2, 10)))
}

func viewAlert(text string, width, height int) string {
	body := "Error\n\n" + text + "\n\n" + wizardMutedStyle.Render("Press Enter or Esc to dismiss.")
	boxW := clampInt(width-8, 36, 80)
	panel := wizardPanelStyle.Width(boxW).BorderForeground(lipgloss.Color("203")).Render(body)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, panel)
}
