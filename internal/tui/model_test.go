package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/types"
)

type fakeController struct {
	view    panel.View
	changes chan struct{}
	setErr  error
	sends   int
	syncs   int
	clears  int
}

func newFakeController() *fakeController {
	return &fakeController{
		changes: make(chan struct{}, 1),
		view: panel.View{
			TargetA:  101,
			LiveSync: true,
			Theme:    panel.ThemeSystem,
			Tabs: []types.EligibleTab{
				{ID: 101, Provider: "chatgpt", Title: "ChatGPT", URL: "https://chatgpt.com/"},
				{ID: 102, Provider: "claude", Title: "Claude", URL: "https://claude.ai/new"},
			},
			Statuses: []panel.Status{{TabID: 101, Ready: true}, {}},
		},
	}
}

func (f *fakeController) View() panel.View         { return f.view }
func (f *fakeController) Changes() <-chan struct{} { return f.changes }
func (f *fakeController) SetLiveSync(on bool)      { f.view.LiveSync = on }
func (f *fakeController) CycleTheme() panel.Theme {
	f.view.Theme = f.view.Theme.Next()
	return f.view.Theme
}
func (f *fakeController) Clear() {
	f.clears++
	f.view.Text = ""
}
func (f *fakeController) SetText(text string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.view.Text = text
	f.view.Length = types.TextLength(text)
	return nil
}
func (f *fakeController) SelectTargets(a, b types.TabID) error {
	f.view.TargetA, f.view.TargetB = a, b
	return nil
}
func (f *fakeController) SyncText(context.Context) (panel.Dispatch, error) {
	f.syncs++
	return panel.Dispatch{Targets: 1, Delivered: 1}, nil
}
func (f *fakeController) SendAll(context.Context) (panel.Dispatch, error) {
	f.sends++
	f.view.Text = ""
	return panel.Dispatch{Targets: 1, Delivered: 1}, nil
}
func (f *fakeController) RefreshTabs(context.Context) []types.EligibleTab { return f.view.Tabs }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestTypingSetsPanelText(t *testing.T) {
	ctrl := newFakeController()
	m := New(context.Background(), ctrl, nil)

	m, _ = update(t, m, runes("h"))
	m, _ = update(t, m, runes("i"))
	if ctrl.view.Text != "hi" {
		t.Fatalf("panel text = %q; want %q", ctrl.view.Text, "hi")
	}
	if m.input.Value() != "hi" {
		t.Fatalf("input = %q; want %q", m.input.Value(), "hi")
	}
}

func TestRejectedInputIsReverted(t *testing.T) {
	ctrl := newFakeController()
	ctrl.view.Text = "keep"
	m := New(context.Background(), ctrl, nil)
	ctrl.setErr = types.ErrTextTooLong

	m, _ = update(t, m, runes("x"))
	if m.input.Value() != "keep" {
		t.Fatalf("input = %q; want %q", m.input.Value(), "keep")
	}
}

func TestEnterSendsOnce(t *testing.T) {
	ctrl := newFakeController()
	ctrl.view.Text = "Hello"
	m := New(context.Background(), ctrl, nil)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || m.busy == "" {
		t.Fatalf("enter did not start a send (busy=%q)", m.busy)
	}
	if _, again := update(t, m, tea.KeyMsg{Type: tea.KeyEnter}); again != nil {
		t.Fatal("second enter while busy started another send")
	}

	msg := cmd()
	if _, ok := msg.(dispatchMsg); !ok {
		t.Fatalf("send cmd returned %T; want dispatchMsg", msg)
	}
	m, _ = update(t, m, msg)
	if ctrl.sends != 1 {
		t.Fatalf("SendAll() calls = %d; want 1", ctrl.sends)
	}
	if m.busy != "" || m.input.Value() != "" {
		t.Fatalf("after send busy=%q input=%q; want idle and empty", m.busy, m.input.Value())
	}
}

func TestSyncAndClearKeys(t *testing.T) {
	ctrl := newFakeController()
	ctrl.view.Text = "draft"
	m := New(context.Background(), ctrl, nil)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if cmd == nil {
		t.Fatal("ctrl+p returned no command")
	}
	m, _ = update(t, m, cmd())
	if ctrl.syncs != 1 {
		t.Fatalf("SyncText() calls = %d; want 1", ctrl.syncs)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlK})
	if ctrl.clears != 1 || m.input.Value() != "" {
		t.Fatalf("clear: calls=%d input=%q", ctrl.clears, m.input.Value())
	}
}

func TestChangeMirrorsExternalText(t *testing.T) {
	ctrl := newFakeController()
	m := New(context.Background(), ctrl, nil)

	ctrl.view.Text = "typed in the tab"
	m, cmd := update(t, m, changeMsg{})
	if m.input.Value() != "typed in the tab" {
		t.Fatalf("input = %q; want mirrored text", m.input.Value())
	}
	if cmd == nil {
		t.Fatal("changeMsg did not re-arm the change listener")
	}
}

func TestToggleKeys(t *testing.T) {
	ctrl := newFakeController()
	m := New(context.Background(), ctrl, nil)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	if ctrl.view.LiveSync || m.view.LiveSync {
		t.Fatal("ctrl+l did not turn live sync off")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.view.Theme != panel.ThemeLight {
		t.Fatalf("theme = %q; want light", m.view.Theme)
	}
}

func TestTargetKeysCycle(t *testing.T) {
	ctrl := newFakeController()
	m := New(context.Background(), ctrl, nil)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyF3})
	if ctrl.view.TargetB != 102 {
		t.Fatalf("TargetB = %d; want 102", ctrl.view.TargetB)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyF2})
	if ctrl.view.TargetA != 0 {
		t.Fatalf("TargetA = %d; want 0 after cycling past the last free tab", ctrl.view.TargetA)
	}
	_ = m
}

func TestNextTab(t *testing.T) {
	tabs := []types.EligibleTab{{ID: 1}, {ID: 2}, {ID: 3}}
	tests := []struct {
		current, other, want types.TabID
	}{
		{0, 0, 1},
		{1, 0, 2},
		{3, 0, 0},
		{1, 2, 3},
		{9, 0, 1},
	}
	for _, tt := range tests {
		if got := nextTab(tabs, tt.current, tt.other); got != tt.want {
			t.Fatalf("nextTab(%d, other=%d) = %d; want %d", tt.current, tt.other, got, tt.want)
		}
	}
	if got := nextTab(nil, 5, 0); got != 0 {
		t.Fatalf("nextTab(no tabs) = %d; want 0", got)
	}
}

func TestToastShowsAndExpires(t *testing.T) {
	ctrl := newFakeController()
	toasts := make(chan types.Toast, 1)
	m := New(context.Background(), ctrl, toasts)

	m, cmd := update(t, m, toastMsg(types.Toast{ID: "t1", Level: types.LevelSuccess, Message: "Sent to 2 target(s)"}))
	if cmd == nil || !strings.Contains(m.View(), "Sent to 2 target(s)") {
		t.Fatal("toast not rendered")
	}
	m, _ = update(t, m, expireToastMsg{id: "other"})
	if m.toast == nil {
		t.Fatal("unrelated expiry cleared the toast")
	}
	m, _ = update(t, m, expireToastMsg{id: "t1"})
	if m.toast != nil {
		t.Fatal("toast not cleared on expiry")
	}
}

func TestViewRendersSlotsAndDiagnostics(t *testing.T) {
	ctrl := newFakeController()
	ctrl.view.TargetB = 555
	ctrl.view.Diagnostics = []types.Diagnostic{{ID: "d", Level: types.LevelError, Message: "Sync failed (Tab 102): Composer not found", At: time.Now()}}
	m := New(context.Background(), ctrl, nil)

	out := m.View()
	for _, want := range []string{"Target A:", "chatgpt", "ready", "tab 555 is gone", "Sync failed (Tab 102)", "live sync on"} {
		if !strings.Contains(out, want) {
			t.Fatalf("View() missing %q:\n%s", want, out)
		}
	}
}

func TestWaitForChangeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(ctx, newFakeController(), nil)
	cancel()
	if msg := m.waitForChange()(); msg != nil {
		t.Fatalf("waitForChange() after cancel = %v; want nil", msg)
	}
	if m.waitForToast() != nil {
		t.Fatal("waitForToast() without a channel should be nil")
	}
}

type recordingSink struct{ toasts, diags int }

func (r *recordingSink) Toast(types.Toast)           { r.toasts++ }
func (r *recordingSink) Diagnostic(types.Diagnostic) { r.diags++ }

func TestToastSinkForwards(t *testing.T) {
	next := &recordingSink{}
	s := NewToastSink(next)
	s.Toast(types.Toast{ID: "a"})
	s.Diagnostic(types.Diagnostic{ID: "b"})
	if next.toasts != 1 || next.diags != 1 {
		t.Fatalf("forwarded toasts=%d diags=%d; want 1 and 1", next.toasts, next.diags)
	}
	select {
	case got := <-s.Toasts():
		if got.ID != "a" {
			t.Fatalf("Toasts() = %+v", got)
		}
	default:
		t.Fatal("toast not copied to the terminal channel")
	}
	for i := 0; i < 20; i++ {
		s.Toast(types.Toast{})
	}
}
