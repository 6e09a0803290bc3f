package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"veo-wizard/internal/api"
	"veo-wizard/internal/config"
	"veo-wizard/internal/model"
	"veo-wizard/internal/wizard"
)

var (
	wizardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	wizardMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	wizardErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	wizardOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	wizardPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	wizardSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

// wizardEnv is what every screen needs to talk to the backend.
type wizardEnv struct {
	client   *api.Client
	settings config.Settings
}

// wizardScreen is one step of the wizard. Only the current screen receives
// messages; leaving a step drops it, like leaving a page.
type wizardScreen interface {
	init() tea.Cmd
	update(msg tea.Msg) tea.Cmd
	view(width, height int) string
	help() help.KeyMap
	// capturesText reports whether plain keys belong to a text input.
	capturesText() bool
}

type navigateMsg struct {
	path string
	// upload carries the step 1 response into the prompt screen's preview.
	upload *model.UploadResult
}

func navigateCmd(path string, upload *model.UploadResult) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path, upload: upload} }
}

type wizardKeyMap struct {
	Back key.Binding
	Quit key.Binding
}

var wizardKeys = wizardKeyMap{
	Back: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "previous step")),
	Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

type wizardModel struct {
	env    wizardEnv
	path   string
	screen wizardScreen
	upload *model.UploadResult

	width  int
	height int

	notice   notice
	alert    string
	help     help.Model
	fatalErr error
}

func runWizard(args []string) error {
	fs := flag.NewFlagSet("wizard", flag.ContinueOnError)
	backend := addBackendFlags(fs)
	project := fs.String("project", "", "open an existing project")
	step := fs.Int("step", 0, "step to open with --project (2 or 3)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("wizard requires an interactive terminal (TTY)")
	}
	path, err := startPath(*project, *step)
	if err != nil {
		return err
	}

	sess, err := openSession(context.Background(), backend)
	if err != nil {
		return err
	}
	defer sess.close()

	logFile, err := tea.LogToFile(sess.settings.LogFile, "veo-wizard")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	m := newWizardModel(wizardEnv{client: sess.client, settings: sess.settings}, path)
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("wizard requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(wizardModel); ok {
		return fm.fatalErr
	}
	return nil
}

func startPath(projectID string, step int) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		if step > wizard.StepUpload {
			return "", errors.New("--step needs --project")
		}
		return wizard.StepPath(wizard.StepUpload, ""), nil
	}
	if step == 0 {
		step = wizard.StepPrompt
	}
	if step < wizard.StepPrompt || step > wizard.StepGenerate {
		return "", fmt.Errorf("--step must be %d or %d", wizard.StepPrompt, wizard.StepGenerate)
	}
	return wizard.StepPath(step, projectID), nil
}

func newWizardModel(env wizardEnv, path string) wizardModel {
	m := wizardModel{env: env, help: help.New()}
	m.enter(path, nil)
	return m
}

// enter swaps in the screen for path. Nothing of the old screen survives
// except the upload response handed forward.
func (m *wizardModel) enter(path string, upload *model.UploadResult) tea.Cmd {
	m.path = path
	if upload != nil {
		m.upload = upload
	}
	projectID, _ := wizard.ProjectIDFromPath(path)
	switch wizard.CurrentStep(path) {
	case wizard.StepPrompt:
		var preview *model.UploadResult
		if m.upload != nil && m.upload.ProjectID == projectID {
			preview = m.upload
		}
		m.screen = newPromptScreen(m.env, projectID, preview)
	case wizard.StepGenerate:
		m.screen = newGenerateScreen(m.env, projectID)
	default:
		m.screen = newUploadScreen(m.env)
	}
	if m.width > 0 {
		m.screen.update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	}
	return m.screen.init()
}

func (m wizardModel) Init() tea.Cmd {
	return m.screen.init()
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, m.screen.update(msg)
	case navigateMsg:
		m.alert = ""
		return m, m.enter(msg.path, msg.upload)
	case showNoticeMsg:
		return m, m.notice.show(msg.kind, msg.text, m.env.settings.NoticeDelay())
	case noticeExpiredMsg:
		m.notice.expire(msg)
		return m, nil
	case showAlertMsg:
		m.alert = msg.text
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.alert != "" {
			switch msg.String() {
			case "enter", "esc", " ":
				m.alert = ""
			}
			return m, nil
		}
		if key.Matches(msg, wizardKeys.Back) {
			return m, m.back()
		}
		if msg.String() == "q" && !m.screen.capturesText() {
			return m, tea.Quit
		}
	}
	return m, m.screen.update(msg)
}

func (m *wizardModel) back() tea.Cmd {
	step := wizard.CurrentStep(m.path)
	if step <= wizard.StepUpload {
		return nil
	}
	projectID, _ := wizard.ProjectIDFromPath(m.path)
	return navigateCmd(wizard.StepPath(step-1, projectID), nil)
}

func (m wizardModel) View() string {
	if m.fatalErr != nil {
		return wizardErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	width, height := m.width, m.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 30
	}
	if m.alert != "" {
		return viewAlert(m.alert, width, height)
	}

	step := wizard.CurrentStep(m.path)
	header := wizardTitleStyle.Render("veo-wizard") + "  " + renderStepIndicator(step)
	if id, ok := wizard.ProjectIDFromPath(m.path); ok {
		header += "  " + wizardMutedStyle.Render("project "+id)
	}
	footer := m.help.View(m.screen.help())
	status := m.notice.view(width)
	bodyH := maxInt(height-4, 8)
	body := m.screen.view(width, bodyH)
	parts := []string{header, body}
	if status != "" {
		parts = append(parts, status)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderStepIndicator draws the three step markers. Steps before the
// current one are marked done.
func renderStepIndicator(current int) string {
	done := wizard.Completed(current)
	parts := make([]string, 0, wizard.TotalSteps)
	for i := 0; i < wizard.TotalSteps; i++ {
		step := i + 1
		label := fmt.Sprintf("%d %s", step, wizard.Title(step))
		switch {
		case step == current:
			parts = append(parts, wizardSelStyle.Render(" "+label+" "))
		case done[i]:
			parts = append(parts, wizardOKStyle.Render("✓ "+label))
		default:
			parts = append(parts, wizardMutedStyle.Render("○ "+label))
		}
	}
	return strings.Join(parts, wizardMutedStyle.Render(" ─ "))
}

// screenKeys joins a screen's bindings with the wizard-wide ones.
type screenKeys struct {
	short []key.Binding
}

func (k screenKeys) ShortHelp() []key.Binding {
	return append(append([]key.Binding{}, k.short...), wizardKeys.Back, wizardKeys.Quit)
}

func (k screenKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
