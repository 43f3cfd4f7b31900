package tui

import (
	"context"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/session"
	"github.com/jmylchreest/cru/internal/target"
)

type countingInstaller struct {
	applies  atomic.Int32
	restarts atomic.Int32
}

func (c *countingInstaller) Apply(context.Context, model.ConfigBundle) model.InstallResult {
	c.applies.Add(1)
	return model.InstallResult{Success: true, Message: "Configuration applied successfully."}
}

func (c *countingInstaller) RestartDisplayManager(context.Context) model.InstallResult {
	c.restarts.Add(1)
	return model.InstallResult{Success: true, Message: "Display manager restarted."}
}

func newTestModel(t *testing.T) (Model, *session.Controller, *countingInstaller) {
	t.Helper()
	inst := &countingInstaller{}
	ctrl, err := session.New(session.Settings{
		Request:  model.TimingRequest{Width: 1280, Height: 1024, Refresh: 165, Algorithm: model.AlgorithmReducedBlanking},
		Displays: []string{"DP-1", "HDMI-A-1"},
	}, session.Deps{
		Target:    target.New(model.X11(), target.DefaultPaths(), inst, nil),
		Restarter: inst,
	})
	require.NoError(t, err)

	m := New(nil, ctrl)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), ctrl, inst
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	var updated tea.Model = m
	for _, k := range keys {
		updated, cmd = updated.(Model).Update(k)
	}
	return updated.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func backspaces(n int) []tea.KeyMsg {
	keys := make([]tea.KeyMsg, n)
	for i := range keys {
		keys[i] = tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return keys
}

func TestNew_SyncsInputs(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Equal(t, "1280", m.inputs[0].Value())
	assert.Equal(t, "1024", m.inputs[1].Value())
	assert.Equal(t, "165", m.inputs[2].Value())
	assert.True(t, m.inputs[0].Focused())
}

func TestCommitOnEnter(t *testing.T) {
	m, ctrl, _ := newTestModel(t)

	keys := append(backspaces(4), runes("1920"), tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd := press(t, m, keys...)
	require.NotNil(t, cmd)

	assert.Equal(t, 1920, ctrl.State().Request.Width)
	assert.Equal(t, "1920", m.inputs[0].Value())
}

func TestTypingDoesNotCommit(t *testing.T) {
	m, ctrl, _ := newTestModel(t)

	m, _ = press(t, m, append(backspaces(4), runes("800"))...)
	assert.Equal(t, "800", m.inputs[0].Value())
	assert.Equal(t, 1280, ctrl.State().Request.Width)
}

func TestInvalidCommitReverts(t *testing.T) {
	m, ctrl, _ := newTestModel(t)

	keys := append(backspaces(4), runes("0"), tea.KeyMsg{Type: tea.KeyTab})
	m, cmd := press(t, m, keys...)
	require.NotNil(t, cmd)

	assert.Equal(t, 1280, ctrl.State().Request.Width)
	assert.Equal(t, "1280", m.inputs[0].Value())
	assert.Equal(t, 1, m.focus)
}

func TestLettersAreCommands(t *testing.T) {
	m, ctrl, _ := newTestModel(t)

	m, _ = press(t, m, runes("b"), runes("f"), runes("o"), runes("m"))
	st := ctrl.State()
	assert.True(t, st.Request.ReducedBlanking)
	assert.True(t, st.ForceEnable)
	assert.Equal(t, "HDMI-A-1", st.Display)
	assert.Equal(t, model.AlgorithmCVT, st.Request.Algorithm)
	assert.Equal(t, "1280", m.inputs[0].Value())
}

func TestPreview_DropsStaleResults(t *testing.T) {
	m, ctrl, _ := newTestModel(t)

	stale := previewMsg{seq: m.previewSeq, preview: ctrl.Preview(context.Background())}
	m, _ = press(t, m, runes("o"))

	updated, _ := m.Update(stale)
	assert.Empty(t, updated.(Model).preview.ModeName)

	fresh := previewMsg{seq: m.previewSeq, preview: ctrl.Preview(context.Background())}
	updated, _ = m.Update(fresh)
	got := updated.(Model)
	assert.Equal(t, "1280x1024_165", got.preview.ModeName)
	assert.Contains(t, got.View(), "234.08 1280 1296 1328 1376")
}

func TestApply_IgnoredWhileBusy(t *testing.T) {
	m, _, inst := newTestModel(t)

	m, applyCmd := press(t, m, runes("a"))
	require.NotNil(t, applyCmd)
	assert.True(t, m.applying)

	m, cmd := press(t, m, runes("a"))
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, statusMsg{}, msg)
	assert.Equal(t, "Apply already in progress", msg.(statusMsg).text)

	result := applyCmd()
	require.IsType(t, applyMsg{}, result)
	assert.Equal(t, int32(1), inst.applies.Load())

	updated, cmd := m.Update(result)
	m = updated.(Model)
	assert.False(t, m.applying)
	assert.True(t, m.offerRestart)

	st := cmd().(statusMsg)
	assert.False(t, st.isErr)
	assert.Contains(t, st.text, "[applied]")
	assert.Contains(t, st.text, "Press R")
}

func TestRestart_RequiresApply(t *testing.T) {
	m, _, inst := newTestModel(t)
	assert.NotContains(t, m.buildKeybindBar(0), "restart")

	m, cmd := press(t, m, runes("R"))
	assert.Equal(t, ModeForm, m.mode)
	require.NotNil(t, cmd)
	st := cmd().(statusMsg)
	assert.True(t, st.isErr)
	assert.Contains(t, st.text, "Apply a configuration")

	updated, _ := m.Update(applyMsg{outcome: session.Outcome{Kind: model.OutcomeFailed, Message: "denied"}})
	m, _ = press(t, updated.(Model), runes("R"))
	assert.Equal(t, ModeForm, m.mode)
	assert.Equal(t, int32(0), inst.restarts.Load())
}

func TestRestart_RequiresConfirmation(t *testing.T) {
	m, _, inst := newTestModel(t)

	updated, _ := m.Update(applyMsg{outcome: session.Outcome{Kind: model.OutcomeApplied, Message: "ok"}})
	m = updated.(Model)
	assert.Contains(t, m.buildKeybindBar(0), "restart dm")

	m, _ = press(t, m, runes("R"))
	assert.Equal(t, ModeConfirmRestart, m.mode)
	assert.Contains(t, m.View(), "Restart the display manager?")

	m, _ = press(t, m, runes("n"))
	assert.Equal(t, ModeForm, m.mode)
	assert.Equal(t, int32(0), inst.restarts.Load())

	m, cmd := press(t, m, runes("R"), runes("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, ModeForm, m.mode)

	msg := cmd()
	require.IsType(t, restartMsg{}, msg)
	assert.Equal(t, model.OutcomeRestarted, msg.(restartMsg).outcome.Kind)
	assert.Equal(t, int32(1), inst.restarts.Load())
}

func TestHelpMode(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = press(t, m, runes("?"))
	assert.Equal(t, ModeHelp, m.mode)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeForm, m.mode)
}

func TestEditingKey(t *testing.T) {
	assert.True(t, editingKey(runes("12.5")))
	assert.True(t, editingKey(tea.KeyMsg{Type: tea.KeyBackspace}))
	assert.False(t, editingKey(runes("x")))
	assert.False(t, editingKey(tea.KeyMsg{Type: tea.KeyRunes}))
}

func TestBuildKeybindBar_FitsWidth(t *testing.T) {
	m, _, _ := newTestModel(t)
	bar := m.buildKeybindBar(20)
	assert.Contains(t, bar, "quit")
	assert.NotContains(t, bar, "help")
}
