// Package tui provides the BubbleTea-based terminal user interface.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/cru/internal/config"
	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/output"
	"github.com/jmylchreest/cru/internal/session"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeForm Mode = iota
	ModeConfirmRestart
	ModeHelp
)

// previewTimeout bounds one preview, which may run the cvt generator.
const previewTimeout = 10 * time.Second

// headerHeight is the number of lines above the preview viewport.
const headerHeight = 7

var fields = []session.Field{session.FieldWidth, session.FieldHeight, session.FieldRefresh}

// Model is the main TUI model.
type Model struct {
	cfg  *config.Config
	ctrl *session.Controller

	mode Mode

	// Components
	inputs   []textinput.Model
	focus    int
	viewport viewport.Model
	help     help.Model
	keys     KeyMap

	// State
	preview      session.Preview
	previewSeq   int
	applying     bool
	restarting   bool
	offerRestart bool
	width        int
	height       int
	ready        bool

	// Status message
	statusMsg string
	statusErr bool
}

// New creates a new TUI model driving ctrl.
func New(cfg *config.Config, ctrl *session.Controller) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 8
		ti.Width = 8
		ti.Placeholder = strings.ToLower(string(f))
		inputs[i] = ti
	}

	m := Model{
		cfg:      cfg,
		ctrl:     ctrl,
		mode:     ModeForm,
		inputs:   inputs,
		viewport: viewport.New(80, 20),
		help:     help.New(),
		keys:     DefaultKeyMap(),
	}
	m.syncInputs()
	m.inputs[0].Focus()
	return m
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.previewCmd(m.previewSeq))
}

type previewMsg struct {
	seq     int
	preview session.Preview
}

type applyMsg struct {
	outcome session.Outcome
}

type restartMsg struct {
	outcome session.Outcome
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// refreshPreview recomputes the preview in the background. Results from
// superseded refreshes are dropped.
func (m *Model) refreshPreview() tea.Cmd {
	m.previewSeq++
	return m.previewCmd(m.previewSeq)
}

func (m Model) previewCmd(seq int) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
		defer cancel()
		return previewMsg{seq: seq, preview: ctrl.Preview(ctx)}
	}
}

func (m Model) applyCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return applyMsg{outcome: ctrl.Apply(context.Background())}
	}
}

func (m Model) restartCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return restartMsg{outcome: ctrl.RestartDisplayManager(context.Background())}
	}
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-2, 3)
		m.viewport.SetContent(m.renderPreview())
		return m, nil

	case previewMsg:
		if msg.seq != m.previewSeq {
			return m, nil
		}
		m.preview = msg.preview
		m.viewport.SetContent(m.renderPreview())
		return m, nil

	case applyMsg:
		m.applying = false
		out := msg.outcome
		m.offerRestart = out.Kind == model.OutcomeApplied
		text := fmt.Sprintf("[%s] %s", out.Kind, out.Message)
		if m.offerRestart {
			text += " Press R to restart the display manager."
		}
		return m, status(text, !out.Kind.Succeeded())

	case restartMsg:
		m.restarting = false
		out := msg.outcome
		return m, status(fmt.Sprintf("[%s] %s", out.Kind, out.Message), !out.Kind.Succeeded())

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		if m.applying {
			return m, nil
		}
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Modeline copied to clipboard", false)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeConfirmRestart:
		return m.handleConfirmKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Quit) {
			m.mode = ModeForm
		}
		return m, nil
	}
	return m.handleFormKey(msg)
}

// handleFormKey handles keys on the main form.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.mode = ModeHelp
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		return m.commitAndMove(1)

	case key.Matches(msg, m.keys.PrevField):
		return m.commitAndMove(-1)

	case key.Matches(msg, m.keys.Commit):
		return m.commitAndMove(0)

	case key.Matches(msg, m.keys.Algorithm):
		alg := m.ctrl.CycleAlgorithm()
		cmd := m.refreshPreview()
		return m, tea.Batch(cmd, status("Algorithm: "+string(alg), false))

	case key.Matches(msg, m.keys.ReducedBlanking):
		on := !m.ctrl.State().Request.ReducedBlanking
		m.ctrl.SetReducedBlanking(on)
		cmd := m.refreshPreview()
		return m, tea.Batch(cmd, status("Reduced blanking: "+onOff(on), false))

	case key.Matches(msg, m.keys.Force):
		on := !m.ctrl.State().ForceEnable
		m.ctrl.SetForceEnable(on)
		cmd := m.refreshPreview()
		return m, tea.Batch(cmd, status("Force enable: "+onOff(on), false))

	case key.Matches(msg, m.keys.Display):
		d := m.ctrl.CycleDisplay()
		cmd := m.refreshPreview()
		return m, tea.Batch(cmd, status("Display: "+d, false))

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Apply):
		if m.applying || m.ctrl.Busy() {
			return m, status("Apply already in progress", true)
		}
		m.applying = true
		m.statusMsg = "Applying configuration (authentication may be required)..."
		m.statusErr = false
		return m, m.applyCmd()

	case key.Matches(msg, m.keys.Restart):
		if !m.offerRestart {
			return m, status("Apply a configuration before restarting the display manager", true)
		}
		if m.restarting {
			return m, status("Restart already in progress", true)
		}
		m.mode = ModeConfirmRestart
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if !m.preview.HasModeline() {
			return m, status("No modeline to copy", true)
		}
		text := fmt.Sprintf("Modeline %q %s", m.preview.ModeName, m.preview.Modeline)
		command := m.cfg.TUI.ClipboardCommand
		return m, func() tea.Msg {
			return copyResultMsg{err: copyText(text, command)}
		}
	}

	if !editingKey(msg) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// handleConfirmKey handles the restart confirmation prompt.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.mode = ModeForm
		m.restarting = true
		return m, m.restartCmd()
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit):
		m.mode = ModeForm
		return m, status("Restart cancelled", false)
	}
	return m, nil
}

// commitAndMove commits the focused field and moves focus by delta.
// A rejected value reverts the field to the last committed value.
func (m Model) commitAndMove(delta int) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	err := m.ctrl.Commit(fields[m.focus], m.inputs[m.focus].Value())
	if err != nil {
		cmds = append(cmds, status(err.Error(), true))
	} else {
		cmds = append(cmds, m.refreshPreview())
	}
	m.syncInputs()

	if delta != 0 {
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + delta + len(fields)) % len(fields)
		cmds = append(cmds, m.inputs[m.focus].Focus())
	}
	return m, tea.Batch(cmds...)
}

// syncInputs copies the committed request into the text inputs.
func (m *Model) syncInputs() {
	req := m.ctrl.State().Request
	m.inputs[0].SetValue(strconv.Itoa(req.Width))
	m.inputs[1].SetValue(strconv.Itoa(req.Height))
	m.inputs[2].SetValue(model.FormatRefresh(req.Refresh))
}

// editingKey reports whether msg edits a numeric field.
func editingKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete, tea.KeyLeft, tea.KeyRight, tea.KeyHome, tea.KeyEnd, tea.KeyCtrlA, tea.KeyCtrlE:
		return true
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if (r < '0' || r > '9') && r != '.' {
				return false
			}
		}
		return len(msg.Runes) > 0
	}
	return false
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// renderPreview renders the bundle shown in the viewport.
func (m Model) renderPreview() string {
	p := m.preview
	var sb strings.Builder

	if p.Err != nil {
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Error: "+p.Err.Error()) + "\n\n")
	}
	if len(p.Bundle.Entries) > 0 {
		if err := output.NewTextFormatter().Format(&sb, p.Bundle); err != nil {
			sb.WriteString("failed to render preview: " + err.Error() + "\n")
		}
	}
	return sb.String()
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeHelp:
		return m.viewHelp()
	case ModeConfirmRestart:
		return m.viewConfirm()
	default:
		return m.viewForm()
	}
}

func (m Model) viewForm() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	focusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	st := m.ctrl.State()

	var s string
	s += titleStyle.Render("Linux CRU") + "  " +
		labelStyle.Render("backend: ") + st.Backend.String() + "  " +
		labelStyle.Render("display: ") + st.Display + "\n\n"

	for i, f := range fields {
		label := labelStyle.Render(string(f) + ": ")
		if i == m.focus {
			label = focusStyle.Render(string(f) + ": ")
		}
		s += label + m.inputs[i].View() + "  "
	}
	s += "\n"

	s += labelStyle.Render("Algorithm: ") + string(st.Request.Algorithm) + "  " +
		labelStyle.Render("Reduced blanking: ") + onOff(st.Request.ReducedBlanking) + "  " +
		labelStyle.Render("Force: ") + onOff(st.ForceEnable) + "\n"

	s += labelStyle.Render("Mode: ") + m.preview.ModeName + "\n"
	if m.preview.HasModeline() {
		s += labelStyle.Render("Modeline: ") + m.preview.Modeline.String() + "\n"
	} else {
		s += labelStyle.Render("Modeline: ") + "-\n"
	}
	s += strings.Repeat("─", max(m.width, 10)) + "\n"
	s += m.viewport.View() + "\n"

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += statusStyle.Render(m.statusMsg)
	} else if m.cfg.TUI.ShowHelp {
		s += m.buildKeybindBar(m.width)
	}
	return s
}

func (m Model) viewConfirm() string {
	warnStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	return warnStyle.Render("Restart the display manager?") + "\n\n" +
		"This ends your graphical session and closes every open application.\n\n" +
		"Press y to restart, n or esc to cancel."
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	m.help.ShowAll = true
	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		m.help.View(m.keys) + "\n\n" +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
}

// keybind represents a single keybind for the status bar.
type keybind struct {
	key  string
	desc string
}

// buildKeybindBar builds a keybind bar that fits within the given width.
func (m Model) buildKeybindBar(width int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// Most important first
	binds := []keybind{
		{"q", "quit"},
		{"a", "apply"},
	}
	if m.offerRestart {
		binds = append(binds, keybind{"R", "restart dm"})
	}
	binds = append(binds, []keybind{
		{"tab", "next"},
		{"m", "algorithm"},
		{"b", "rb"},
		{"f", "force"},
		{"o", "display"},
		{"c", "copy"},
		{"?", "help"},
	}...)

	const separator = "  "
	result := ""
	plainLen := 0
	for _, b := range binds {
		plain := b.key + " " + b.desc
		testLen := plainLen + len(plain)
		if result != "" {
			testLen += len(separator)
		}
		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen = testLen
	}

	return style.Render(result)
}

// Run starts the TUI.
func Run(cfg *config.Config, ctrl *session.Controller) error {
	p := tea.NewProgram(New(cfg, ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
