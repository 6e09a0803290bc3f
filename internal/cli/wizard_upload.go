package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"veo-wizard/internal/api"
	"veo-wizard/internal/model"
	"veo-wizard/internal/wizard"
)

type uploadFocus int

const (
	uploadFocusPicker uploadFocus = iota
	uploadFocusPath
	uploadFocusName
)

type uploadKeyMap struct {
	Focus  key.Binding
	Submit key.Binding
	Next   key.Binding
}

var uploadKeys = uploadKeyMap{
	Focus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "browse / path / name")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "upload")),
	Next:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next: edit prompt")),
}

type uploadTickMsg struct {
	seq int
}

type uploadDoneMsg struct {
	seq    int
	result model.UploadResult
	err    error
}

type uploadScreen struct {
	env wizardEnv

	picker    filepicker.Model
	pathInput textinput.Model
	nameInput textinput.Model
	focus     uploadFocus

	// seq identifies the submission in flight; stale ticks and responses
	// are dropped.
	seq       int
	uploading bool
	pct       int
	fileName  string

	result *model.UploadResult
	table  table.Model
	err    string

	width  int
	height int
}

func newUploadScreen(env wizardEnv) *uploadScreen {
	fp := filepicker.New()
	fp.AllowedTypes = allowedPickerTypes()
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.ShowHidden = false
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}

	path := textinput.New()
	path.Prompt = "file> "
	path.Placeholder = "type or paste a path to a .csv / .xls / .xlsx file"
	path.CharLimit = 4096

	name := textinput.New()
	name.Prompt = "name> "
	name.Placeholder = "Untitled Project"
	name.CharLimit = 200

	return &uploadScreen{
		env:       env,
		picker:    fp,
		pathInput: path,
		nameInput: name,
		focus:     uploadFocusPicker,
	}
}

// allowedPickerTypes is the upload allow-list in both letter cases, since
// the picker compares suffixes exactly.
func allowedPickerTypes() []string {
	out := make([]string, 0, len(api.AllowedExtensions)*2)
	for _, ext := range api.AllowedExtensions {
		out = append(out, ext, strings.ToUpper(ext))
	}
	return out
}

func (s *uploadScreen) init() tea.Cmd {
	return s.picker.Init()
}

func (s *uploadScreen) help() help.KeyMap {
	short := []key.Binding{uploadKeys.Focus, uploadKeys.Submit}
	if s.result != nil {
		short = append(short, uploadKeys.Next)
	}
	return screenKeys{short: short}
}

func (s *uploadScreen) capturesText() bool {
	return s.focus != uploadFocusPicker
}

func (s *uploadScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.pathInput.Width = clampInt(msg.Width-12, 20, 120)
		s.nameInput.Width = clampInt(msg.Width-12, 20, 80)
		var cmd tea.Cmd
		s.picker, cmd = s.picker.Update(msg)
		return cmd
	case uploadTickMsg:
		if !s.uploading || msg.seq != s.seq {
			return nil
		}
		s.pct = nextUploadPercent(s.pct)
		return uploadTickCmd(s.seq)
	case uploadDoneMsg:
		if msg.seq != s.seq {
			return nil
		}
		return s.finish(msg)
	case tea.KeyMsg:
		return s.updateKeys(msg)
	}

	// Directory reads land here whatever has focus.
	var cmd tea.Cmd
	s.picker, cmd = s.picker.Update(msg)
	return cmd
}

func (s *uploadScreen) updateKeys(msg tea.KeyMsg) tea.Cmd {
	if s.uploading {
		return nil
	}
	switch {
	case key.Matches(msg, uploadKeys.Next):
		if s.result == nil {
			return nil
		}
		return navigateCmd(wizard.StepPath(wizard.StepPrompt, s.result.ProjectID), s.result)
	case key.Matches(msg, uploadKeys.Focus):
		s.setFocus((s.focus + 1) % 3)
		return nil
	}

	switch s.focus {
	case uploadFocusPath, uploadFocusName:
		if msg.Type == tea.KeyEnter {
			path := strings.TrimSpace(s.pathInput.Value())
			if path == "" {
				s.err = "Choose a file first."
				return nil
			}
			return s.submit(path)
		}
		var cmd tea.Cmd
		if s.focus == uploadFocusPath {
			s.pathInput, cmd = s.pathInput.Update(msg)
		} else {
			s.nameInput, cmd = s.nameInput.Update(msg)
		}
		return cmd
	}

	var cmd tea.Cmd
	s.picker, cmd = s.picker.Update(msg)
	if ok, path := s.picker.DidSelectFile(msg); ok {
		s.pathInput.SetValue(path)
		return tea.Batch(cmd, s.submit(path))
	}
	if ok, path := s.picker.DidSelectDisabledFile(msg); ok {
		s.err = "Please upload a CSV or Excel file."
		if err := api.ValidateFileName(path); err != nil {
			s.err = err.Error()
		}
		return cmd
	}
	return cmd
}

func (s *uploadScreen) setFocus(f uploadFocus) {
	s.focus = f
	s.pathInput.Blur()
	s.nameInput.Blur()
	switch f {
	case uploadFocusPath:
		s.pathInput.Focus()
	case uploadFocusName:
		s.nameInput.Focus()
	}
}

// submit validates the name locally; a rejected file sends nothing. A valid
// one hides the previous outcome and starts the simulated progress.
func (s *uploadScreen) submit(path string) tea.Cmd {
	path = expandHome(strings.Trim(strings.TrimSpace(path), `"'`))
	if err := api.ValidateFileName(path); err != nil {
		s.err = err.Error()
		return nil
	}
	s.seq++
	s.uploading = true
	s.pct = 0
	s.fileName = filepath.Base(path)
	s.result = nil
	s.err = ""
	return tea.Batch(
		uploadFileCmd(s.env.client, s.seq, path, strings.TrimSpace(s.nameInput.Value())),
		uploadTickCmd(s.seq),
	)
}

func (s *uploadScreen) finish(msg uploadDoneMsg) tea.Cmd {
	s.uploading = false
	if msg.err != nil {
		s.pct = 0
		s.err = msg.err.Error()
		return nil
	}
	s.pct = 100
	res := msg.result
	s.result = &res
	s.table = newPreviewTable(res.Columns, res.Preview, s.width)
	return noticeCmd(noticeSuccess, fmt.Sprintf("Uploaded %s", s.fileName))
}

func uploadTickCmd(seq int) tea.Cmd {
	return tea.Tick(uploadProgressEvery, func(time.Time) tea.Msg { return uploadTickMsg{seq: seq} })
}

func uploadFileCmd(client *api.Client, seq int, path, name string) tea.Cmd {
	return func() tea.Msg {
		res, err := client.Upload(context.Background(), path, name)
		return uploadDoneMsg{seq: seq, result: res, err: err}
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// newPreviewTable shows exactly the rows and columns the server sent.
func newPreviewTable(columns []string, rows []map[string]any, width int) table.Model {
	if width <= 0 {
		width = 100
	}
	colW := 12
	if len(columns) > 0 {
		colW = clampInt((width-4)/len(columns)-2, 8, 32)
	}
	cols := make([]table.Column, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, table.Column{Title: truncateWidth(c, colW), Width: colW})
	}
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		row := make(table.Row, 0, len(columns))
		for _, c := range columns {
			row = append(row, truncateWidth(cellText(r[c]), colW))
		}
		out = append(out, row)
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(out),
		table.WithFocused(false),
		table.WithHeight(len(out)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("212"))
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)
	return t
}

func (s *uploadScreen) view(width, height int) string {
	var lines []string
	lines = append(lines, wizardTitleStyle.Render("Step 1: Upload your data file"))
	lines = append(lines, wizardMutedStyle.Render("CSV or Excel (.csv, .xls, .xlsx). Browse below or paste a path."))

	browse := s.picker.View()
	if s.focus != uploadFocusPicker {
		browse = wizardMutedStyle.Render(browse)
	}
	lines = append(lines, wizardPanelStyle.Width(maxInt(width-2, 30)).Render(browse))
	lines = append(lines, s.pathInput.View(), s.nameInput.View())

	switch {
	case s.uploading:
		lines = append(lines, fmt.Sprintf("%s %3d%%  uploading %s", renderProgressBar(float64(s.pct)/100, clampInt(width-30, 20, 60)), s.pct, truncateWidth(s.fileName, 40)))
	case s.err != "":
		lines = append(lines, wizardErrorStyle.Render(s.err))
	case s.result != nil:
		lines = append(lines, s.viewResult(width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (s *uploadScreen) viewResult(width int) string {
	res := s.result
	summary := wizardOKStyle.Render("✓ File uploaded successfully")
	if res.TotalRows > 0 {
		summary += wizardMutedStyle.Render(fmt.Sprintf("  %d rows", res.TotalRows))
	}
	badges := make([]string, 0, len(res.Columns))
	for _, b := range placeholderBadges(res.Columns) {
		badges = append(badges, wizardSelStyle.Render(" "+b+" "))
	}
	parts := []string{summary, "Available fields: " + strings.Join(badges, " ")}
	if len(res.Preview) > 0 {
		parts = append(parts, wizardMutedStyle.Render(fmt.Sprintf("Preview (first %d rows)", len(res.Preview))))
		parts = append(parts, s.table.View())
	}
	parts = append(parts, wizardMutedStyle.Render("ctrl+n: continue to the prompt editor"))
	return wizardPanelStyle.Width(maxInt(width-2, 30)).Render(strings.Join(parts, "\n"))
}
