package cli

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"veo-wizard/internal/api"
	"veo-wizard/internal/model"
	"veo-wizard/internal/prompt"
	"veo-wizard/internal/wizard"
)

type promptKeyMap struct {
	Fields  key.Binding
	Insert  key.Binding
	Save    key.Binding
	Suggest key.Binding
	Next    key.Binding
}

var promptKeys = promptKeyMap{
	Fields:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "editor / fields")),
	Insert:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "insert field")),
	Save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	Suggest: key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "suggest")),
	Next:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "save & generate")),
}

type promptLoadedMsg struct {
	page model.PromptPage
	err  error
}

type promptSavedMsg struct {
	next string
	err  error
}

type promptSuggestedMsg struct {
	suggestion string
	err        error
}

type savedExpiredMsg struct {
	seq int
}

type promptScreen struct {
	env       wizardEnv
	projectID string
	preview   *model.UploadResult

	loaded  bool
	loadErr string
	fields  []string

	editor      textarea.Model
	fieldFocus  bool
	fieldCursor int

	saving     bool
	saved      bool
	savedSeq   int
	suggesting bool
	spinner    spinner.Model

	width  int
	height int
}

func newPromptScreen(env wizardEnv, projectID string, preview *model.UploadResult) *promptScreen {
	ed := textarea.New()
	ed.Placeholder = "Describe the video. Use {{field}} placeholders for row values."
	ed.ShowLineNumbers = false
	ed.CharLimit = 0
	ed.SetHeight(8)
	ed.Focus()

	return &promptScreen{
		env:       env,
		projectID: projectID,
		preview:   preview,
		editor:    ed,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (s *promptScreen) init() tea.Cmd {
	return tea.Batch(textarea.Blink, loadPromptCmd(s.env.client, s.projectID))
}

func (s *promptScreen) help() help.KeyMap {
	return screenKeys{short: []key.Binding{promptKeys.Fields, promptKeys.Insert, promptKeys.Save, promptKeys.Suggest, promptKeys.Next}}
}

func (s *promptScreen) capturesText() bool {
	return !s.fieldFocus
}

func loadPromptCmd(client *api.Client, projectID string) tea.Cmd {
	return func() tea.Msg {
		page, err := client.PromptPage(context.Background(), projectID)
		return promptLoadedMsg{page: page, err: err}
	}
}

func savePromptCmd(client *api.Client, projectID, template string, next bool) tea.Cmd {
	return func() tea.Msg {
		if err := client.SavePrompt(context.Background(), projectID, template); err != nil {
			return promptSavedMsg{err: err}
		}
		msg := promptSavedMsg{}
		if next {
			msg.next = wizard.StepPath(wizard.StepGenerate, projectID)
		}
		return msg
	}
}

func suggestPromptCmd(client *api.Client, template string, fields []string) tea.Cmd {
	return func() tea.Msg {
		suggestion, err := client.SuggestPrompt(context.Background(), template, fields)
		return promptSuggestedMsg{suggestion: suggestion, err: err}
	}
}

func (s *promptScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.editor.SetWidth(s.editorWidth())
		s.editor.SetHeight(clampInt(msg.Height-16, 4, 16))
		return nil
	case promptLoadedMsg:
		if msg.err != nil {
			s.loadErr = msg.err.Error()
			return nil
		}
		s.loaded = true
		s.fields = msg.page.Fields
		template := msg.page.Template
		if strings.TrimSpace(template) == "" {
			template = prompt.DefaultTemplate(s.fields)
		}
		s.editor.SetValue(template)
		s.editor.CursorEnd()
		return nil
	case promptSavedMsg:
		s.saving = false
		if msg.err != nil {
			return noticeCmd(noticeError, msg.err.Error())
		}
		if msg.next != "" {
			return navigateCmd(msg.next, nil)
		}
		s.saved = true
		s.savedSeq++
		seq := s.savedSeq
		return tea.Batch(
			noticeCmd(noticeSuccess, "Prompt saved successfully!"),
			tea.Tick(s.env.settings.SavedIndicatorDelay(), func(time.Time) tea.Msg { return savedExpiredMsg{seq: seq} }),
		)
	case savedExpiredMsg:
		if msg.seq == s.savedSeq {
			s.saved = false
		}
		return nil
	case promptSuggestedMsg:
		s.suggesting = false
		if msg.err != nil {
			return noticeCmd(noticeError, msg.err.Error())
		}
		s.editor.SetValue(msg.suggestion)
		s.editor.CursorEnd()
		return noticeCmd(noticeSuccess, "Prompt enhanced by Gemini!")
	case spinner.TickMsg:
		if !s.suggesting {
			return nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	case tea.KeyMsg:
		return s.updateKeys(msg)
	}

	var cmd tea.Cmd
	s.editor, cmd = s.editor.Update(msg)
	return cmd
}

func (s *promptScreen) updateKeys(msg tea.KeyMsg) tea.Cmd {
	if !s.loaded {
		return nil
	}
	switch {
	case key.Matches(msg, promptKeys.Save):
		return s.save(false)
	case key.Matches(msg, promptKeys.Next):
		return s.save(true)
	case key.Matches(msg, promptKeys.Suggest):
		return s.suggest()
	case key.Matches(msg, promptKeys.Fields):
		s.setFieldFocus(!s.fieldFocus)
		return nil
	}

	if s.fieldFocus {
		switch msg.String() {
		case "up", "k":
			if s.fieldCursor > 0 {
				s.fieldCursor--
			}
		case "down", "j":
			if s.fieldCursor < len(s.fields)-1 {
				s.fieldCursor++
			}
		case "esc":
			s.setFieldFocus(false)
		case "enter", " ":
			s.insertSelectedField()
		}
		return nil
	}

	var cmd tea.Cmd
	s.editor, cmd = s.editor.Update(msg)
	return cmd
}

func (s *promptScreen) setFieldFocus(on bool) {
	s.fieldFocus = on && len(s.fields) > 0
	if s.fieldFocus {
		s.editor.Blur()
		return
	}
	s.editor.Focus()
}

// insertSelectedField types the placeholder at the editor cursor and hands
// focus back to the editor.
func (s *promptScreen) insertSelectedField() {
	if s.fieldCursor < 0 || s.fieldCursor >= len(s.fields) {
		return
	}
	s.setFieldFocus(false)
	s.editor.InsertString(prompt.Placeholder(s.fields[s.fieldCursor]))
}

func (s *promptScreen) save(next bool) tea.Cmd {
	if s.saving {
		return nil
	}
	s.saving = true
	return savePromptCmd(s.env.client, s.projectID, s.editor.Value(), next)
}

// suggest checks the inputs locally first; a rejected request never
// starts the spinner.
func (s *promptScreen) suggest() tea.Cmd {
	if s.suggesting {
		return nil
	}
	template := s.editor.Value()
	if err := prompt.ValidateSuggestion(template, s.fields); err != nil {
		return noticeCmd(noticeError, err.Error())
	}
	s.suggesting = true
	return tea.Batch(s.spinner.Tick, suggestPromptCmd(s.env.client, template, s.fields))
}

func (s *promptScreen) editorWidth() int {
	w := s.width
	if w <= 0 {
		w = 100
	}
	if w >= 90 {
		return w - s.fieldsWidth() - 6
	}
	return maxInt(w-4, 20)
}

func (s *promptScreen) fieldsWidth() int {
	return clampInt(s.width/4, 18, 32)
}

func (s *promptScreen) view(width, height int) string {
	if s.loadErr != "" {
		return wizardErrorStyle.Render(s.loadErr)
	}
	if !s.loaded {
		return wizardMutedStyle.Render("Loading prompt editor...")
	}

	title := wizardTitleStyle.Render("Step 2: Write the prompt template")
	status := s.statusLine()
	editor := wizardPanelStyle.Render(s.editor.View())
	fields := s.viewFields()

	var body string
	if width >= 90 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, editor, fields)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, editor, fields)
	}
	parts := []string{title, body}
	if status != "" {
		parts = append(parts, status)
	}
	if warn := s.unknownWarning(); warn != "" {
		parts = append(parts, warn)
	}
	if preview := s.filledPreview(width); preview != "" {
		parts = append(parts, preview)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (s *promptScreen) statusLine() string {
	switch {
	case s.suggesting:
		return s.spinner.View() + " " + wizardMutedStyle.Render("Getting suggestion...")
	case s.saving:
		return wizardMutedStyle.Render("Saving...")
	case s.saved:
		return wizardOKStyle.Render("✓ Saved!")
	}
	return ""
}

func (s *promptScreen) viewFields() string {
	w := s.fieldsWidth()
	lines := []string{wizardTitleStyle.Render("Fields")}
	if len(s.fields) == 0 {
		lines = append(lines, wizardMutedStyle.Render("No fields."))
	}
	start, end := listWindow(len(s.fields), s.fieldCursor, clampInt(s.height-10, 4, 20))
	for i := start; i < end; i++ {
		line := truncateWidth(prompt.Placeholder(s.fields[i]), w-4)
		if s.fieldFocus && i == s.fieldCursor {
			line = wizardSelStyle.Width(maxInt(w-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	return wizardPanelStyle.Width(w).Render(strings.Join(lines, "\n"))
}

func (s *promptScreen) unknownWarning() string {
	unknown := prompt.UnknownPlaceholders(s.editor.Value(), s.fields)
	if len(unknown) == 0 {
		return ""
	}
	return wizardErrorStyle.Render("Not in the data file: " + strings.Join(placeholderBadges(unknown), " "))
}

// filledPreview renders the template against the first preview row, when
// this session uploaded the file.
func (s *promptScreen) filledPreview(width int) string {
	if s.preview == nil || len(s.preview.Preview) == 0 {
		return ""
	}
	filled := prompt.Fill(s.editor.Value(), s.preview.Preview[0])
	return wizardMutedStyle.Render("Row 1: ") + truncateWidth(strings.ReplaceAll(filled, "\n", " "), maxInt(width-10, 20))
}
