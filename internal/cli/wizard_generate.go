package cli

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"veo-wizard/internal/api"
	"veo-wizard/internal/model"
	"veo-wizard/internal/poller"
)

type generateKeyMap struct {
	Start key.Binding
	Move  key.Binding
	Copy  key.Binding
	Quit  key.Binding
}

var generateKeys = generateKeyMap{
	Start: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start generation")),
	Move:  key.NewBinding(key.WithKeys("up", "down", "k", "j"), key.WithHelp("↑/↓", "select card")),
	Copy:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy video URL")),
	Quit:  key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

var (
	badgePending    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("245")).Padding(0, 1)
	badgeProcessing = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1)
	badgeCompleted  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")).Padding(0, 1)
	badgeFailed     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Padding(0, 1)
)

type generationLoadedMsg struct {
	page model.GenerationPage
	err  error
}

type generationStartedMsg struct {
	result api.StartResult
	err    error
}

type generationReloadMsg struct{}

const noCardsAfterStart = "No videos were created yet. Start generation again."

// pollResultMsg and pollDueMsg carry the poller they belong to, so a
// screen never acts on another screen's ticks.
type pollResultMsg struct {
	poller *poller.Poller
	result poller.TickResult
}

type pollDueMsg struct {
	poller *poller.Poller
}

type generateScreen struct {
	env       wizardEnv
	projectID string

	loaded    bool
	loadErr   string
	page      model.GenerationPage
	starting  bool
	started   bool
	reloading bool

	poller *poller.Poller
	last   poller.TickResult
	done   bool

	cursor  int
	spinner spinner.Model

	width  int
	height int
}

func newGenerateScreen(env wizardEnv, projectID string) *generateScreen {
	return &generateScreen{
		env:       env,
		projectID: projectID,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (s *generateScreen) init() tea.Cmd {
	return tea.Batch(s.spinner.Tick, loadGenerationCmd(s.env.client, s.projectID))
}

func (s *generateScreen) help() help.KeyMap {
	short := []key.Binding{}
	if s.canStart() {
		short = append(short, generateKeys.Start)
	}
	short = append(short, generateKeys.Move, generateKeys.Copy, generateKeys.Quit)
	return screenKeys{short: short}
}

func (s *generateScreen) capturesText() bool {
	return false
}

// canStart mirrors the start button: shown only while the page has no
// cards and no start is in flight.
func (s *generateScreen) canStart() bool {
	return s.loaded && len(s.page.Items) == 0 && !s.starting && !s.started
}

func loadGenerationCmd(client *api.Client, projectID string) tea.Cmd {
	return func() tea.Msg {
		page, err := client.GenerationPage(context.Background(), projectID)
		return generationLoadedMsg{page: page, err: err}
	}
}

func startGenerationCmd(client *api.Client, projectID string) tea.Cmd {
	return func() tea.Msg {
		res, err := client.StartGeneration(context.Background(), projectID)
		return generationStartedMsg{result: res, err: err}
	}
}

func pollTickCmd(p *poller.Poller) tea.Cmd {
	return func() tea.Msg {
		return pollResultMsg{poller: p, result: p.Tick(context.Background())}
	}
}

func (s *generateScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return nil
	case generationLoadedMsg:
		s.reloading = false
		if msg.err != nil {
			s.loadErr = msg.err.Error()
			return nil
		}
		s.loaded = true
		s.loadErr = ""
		s.page = msg.page
		if len(msg.page.Items) == 0 {
			if !s.started {
				return nil
			}
			// The reload after a start found no cards; offer start again.
			s.started = false
			return noticeCmd(noticeInfo, noCardsAfterStart)
		}
		return s.startPolling()
	case generationStartedMsg:
		s.starting = false
		if msg.err != nil {
			return alertCmd(startAlertText(msg.err))
		}
		s.started = true
		s.reloading = true
		text := strings.TrimSpace(msg.result.Message)
		if text == "" {
			text = "Video generation started"
		}
		return tea.Batch(
			noticeCmd(noticeInfo, text),
			tea.Tick(s.env.settings.ReloadDelay(), func(time.Time) tea.Msg { return generationReloadMsg{} }),
		)
	case generationReloadMsg:
		return loadGenerationCmd(s.env.client, s.projectID)
	case pollResultMsg:
		if msg.poller != s.poller {
			return nil
		}
		return s.applyTick(msg.result)
	case pollDueMsg:
		if msg.poller != s.poller || s.done {
			return nil
		}
		return pollTickCmd(s.poller)
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	case tea.KeyMsg:
		return s.updateKeys(msg)
	}
	return nil
}

// startPolling tracks the page's cards and runs the first tick at once.
// A poller already running keeps its own state and just absorbs the cards.
func (s *generateScreen) startPolling() tea.Cmd {
	if s.poller != nil {
		s.poller.Track(s.page.Items)
		s.poller.SetTotalExpected(s.page.TotalRows)
		return nil
	}
	s.poller = poller.New(s.env.client, poller.Options{
		Interval:      s.env.settings.PollInterval(),
		TotalExpected: s.page.TotalRows,
		Logger:        log.Default(),
	})
	s.poller.Track(s.page.Items)
	s.last = poller.TickResult{Snapshot: s.poller.Snapshot()}
	s.done = false
	return pollTickCmd(s.poller)
}

// applyTick records a finished tick and schedules the next one unless the
// cards have settled. Exactly one tick is pending at any time.
func (s *generateScreen) applyTick(res poller.TickResult) tea.Cmd {
	s.last = res
	for _, ch := range res.Changes {
		if ch.Status && ch.From.Status != "" {
			log.Printf("item %s: %s -> %s", ch.ID, ch.From.Status, ch.To.Status)
		}
	}
	if res.Done {
		s.done = true
		c := poller.CountsOf(res.Snapshot)
		if c.Failed > 0 {
			return noticeCmd(noticeError, "Generation finished: "+res.Progress.Label()+" completed")
		}
		return noticeCmd(noticeSuccess, "All videos generated: "+res.Progress.Label())
	}
	p := s.poller
	return tea.Tick(p.Interval(), func(time.Time) tea.Msg { return pollDueMsg{poller: p} })
}

func (s *generateScreen) updateKeys(msg tea.KeyMsg) tea.Cmd {
	items := s.last.Snapshot.Items
	switch {
	case key.Matches(msg, generateKeys.Quit):
		return tea.Quit
	case key.Matches(msg, generateKeys.Start):
		if !s.canStart() {
			return nil
		}
		s.starting = true
		return startGenerationCmd(s.env.client, s.projectID)
	case key.Matches(msg, generateKeys.Copy):
		if s.cursor < 0 || s.cursor >= len(items) {
			return nil
		}
		return copyVideoURL(items[s.cursor])
	}
	switch msg.String() {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < len(items)-1 {
			s.cursor++
		}
	}
	return nil
}

// startAlertText matches the start failure alert: server errors read
// "Error: <message>", transport failures carry their own prefix.
func startAlertText(err error) string {
	if api.KindOf(err) == api.KindTransport {
		return err.Error()
	}
	return "Error: " + err.Error()
}

func copyVideoURL(it model.Item) tea.Cmd {
	if it.Status != model.StatusCompleted || it.VideoURL == "" {
		return noticeCmd(noticeInfo, "No video for this card yet.")
	}
	if err := clipboard.WriteAll(it.VideoURL); err != nil {
		return noticeCmd(noticeError, "Copy failed: "+err.Error())
	}
	return noticeCmd(noticeSuccess, "Video URL copied to clipboard")
}

func (s *generateScreen) view(width, height int) string {
	if s.loadErr != "" {
		return wizardErrorStyle.Render(s.loadErr)
	}
	if !s.loaded {
		return s.spinner.View() + " " + wizardMutedStyle.Render("Loading generation page...")
	}

	lines := []string{wizardTitleStyle.Render("Step 3: Generate videos")}
	switch {
	case s.starting:
		lines = append(lines, s.spinner.View()+" "+wizardMutedStyle.Render("Starting generation..."))
	case s.reloading:
		lines = append(lines, s.spinner.View()+" "+wizardMutedStyle.Render("Waiting for the server to create the videos..."))
	case s.canStart():
		lines = append(lines, wizardMutedStyle.Render("Press s to start generating one video per data row."))
	}

	items := s.last.Snapshot.Items
	if len(items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	pr := s.last.Progress
	if pr.Total == 0 {
		pr = poller.ProgressOf(s.last.Snapshot, s.page.TotalRows)
	}
	lines = append(lines, renderProgressBar(pr.Percent/100, clampInt(width-20, 20, 60))+" "+pr.Label())
	lines = append(lines, s.viewCards(width, height-len(lines)-1))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// viewCards lays the cards out in a grid and scrolls to keep the selected
// one visible.
func (s *generateScreen) viewCards(width, height int) string {
	items := s.last.Snapshot.Items
	cols := clampInt(width/40, 1, 4)
	cardW := maxInt(width/cols-2, 24)
	rowsVisible := maxInt(height/7, 1)

	selRow := clampInt(s.cursor, 0, len(items)-1) / cols
	totalRows := (len(items) + cols - 1) / cols
	start, end := listWindow(totalRows, selRow, rowsVisible)

	var gridRows []string
	for r := start; r < end; r++ {
		var row []string
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if i >= len(items) {
				break
			}
			row = append(row, s.renderCard(items[i], cardW, i == s.cursor))
		}
		gridRows = append(gridRows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, gridRows...)
}

func (s *generateScreen) renderCard(it model.Item, width int, selected bool) string {
	head := statusBadge(it.Status)
	if it.Status == model.StatusProcessing {
		head = s.spinner.View() + " " + head
	}
	head += " " + wizardMutedStyle.Render("#"+strconv.Itoa(it.RowIndex+1))

	inner := maxInt(width-4, 10)
	lines := []string{head}
	for _, line := range cardLines(it) {
		style := lipgloss.NewStyle()
		if strings.HasPrefix(line, "error: ") || (it.Status == model.StatusFailed && line == defaultIfEmpty(it.Error, "Generation failed")) {
			style = wizardErrorStyle
		}
		lines = append(lines, style.Render(truncateWidth(line, inner)))
	}

	panel := wizardPanelStyle.Width(width)
	if selected {
		panel = panel.BorderForeground(lipgloss.Color("62"))
	}
	return panel.Render(strings.Join(lines, "\n"))
}

func statusBadge(status string) string {
	label := model.Label(status)
	switch status {
	case model.StatusProcessing:
		return badgeProcessing.Render(label)
	case model.StatusCompleted:
		return badgeCompleted.Render(label)
	case model.StatusFailed:
		return badgeFailed.Render(label)
	default:
		return badgePending.Render(defaultIfEmpty(label, "Pending"))
	}
}
