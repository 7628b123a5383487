// Package tui is the terminal rendition of the control panel.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/types"
)

const (
	toastTTL       = 3 * time.Second
	diagnosticRows = 6
)

// Controller is the panel surface the terminal drives.
type Controller interface {
	View() panel.View
	Changes() <-chan struct{}
	SetText(text string) error
	SelectTargets(a, b types.TabID) error
	SetLiveSync(on bool)
	CycleTheme() panel.Theme
	Clear()
	SyncText(ctx context.Context) (panel.Dispatch, error)
	SendAll(ctx context.Context) (panel.Dispatch, error)
	RefreshTabs(ctx context.Context) []types.EligibleTab
}

type changeMsg struct{}

type toastMsg types.Toast

type expireToastMsg struct{ id string }

type dispatchMsg struct {
	op  string
	d   panel.Dispatch
	err error
}

type refreshedMsg struct{ tabs int }

// Model is the bubbletea model over a Controller.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	toasts <-chan types.Toast

	keys  keyMap
	help  help.Model
	input textarea.Model
	diag  viewport.Model
	st    styles

	view  panel.View
	toast *types.Toast
	busy  string

	width  int
	height int
}

// New builds the model. toasts may be nil.
func New(ctx context.Context, ctrl Controller, toasts <-chan types.Toast) Model {
	keys := newKeyMap()

	in := textarea.New()
	in.Placeholder = "Type once, send to both..."
	in.ShowLineNumbers = false
	in.CharLimit = 0
	in.MaxHeight = 0
	in.SetHeight(6)
	in.SetWidth(76)
	in.KeyMap.InsertNewline = keys.newline
	in.Focus()

	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		toasts: toasts,
		keys:   keys,
		help:   help.New(),
		input:  in,
		diag:   viewport.New(76, diagnosticRows),
		width:  80,
	}
	m.applyView(ctrl.View())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForChange(), m.waitForToast())
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.ctrl.Changes()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changeMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) waitForToast() tea.Cmd {
	if m.toasts == nil {
		return nil
	}
	ch := m.toasts
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case t := <-ch:
			return toastMsg(t)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(max(msg.Width-4, 20))
		m.diag.Width = max(msg.Width-4, 20)
		m.help.Width = msg.Width
		return m, nil

	case changeMsg:
		m.applyView(m.ctrl.View())
		return m, m.waitForChange()

	case toastMsg:
		t := types.Toast(msg)
		m.toast = &t
		return m, tea.Batch(m.waitForToast(), tea.Tick(toastTTL, func(time.Time) tea.Msg {
			return expireToastMsg{id: t.ID}
		}))

	case expireToastMsg:
		if m.toast != nil && m.toast.ID == msg.id {
			m.toast = nil
		}
		return m, nil

	case dispatchMsg:
		m.busy = ""
		m.applyView(m.ctrl.View())
		return m, nil

	case refreshedMsg:
		m.busy = ""
		m.applyView(m.ctrl.View())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.send):
		if m.busy != "" {
			return m, nil
		}
		m.busy = "sending"
		return m, m.dispatch("send", m.ctrl.SendAll)
	case key.Matches(msg, m.keys.sync):
		if m.busy != "" {
			return m, nil
		}
		m.busy = "syncing"
		return m, m.dispatch("sync", m.ctrl.SyncText)
	case key.Matches(msg, m.keys.clear):
		m.ctrl.Clear()
		m.input.Reset()
		return m, nil
	case key.Matches(msg, m.keys.liveSync):
		m.ctrl.SetLiveSync(!m.view.LiveSync)
		m.applyView(m.ctrl.View())
		return m, nil
	case key.Matches(msg, m.keys.theme):
		m.ctrl.CycleTheme()
		m.applyView(m.ctrl.View())
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		if m.busy != "" {
			return m, nil
		}
		m.busy = "refreshing"
		ctrl, ctx := m.ctrl, m.ctx
		return m, func() tea.Msg {
			return refreshedMsg{tabs: len(ctrl.RefreshTabs(ctx))}
		}
	case key.Matches(msg, m.keys.targetA):
		a := nextTab(m.view.Tabs, m.view.TargetA, m.view.TargetB)
		_ = m.ctrl.SelectTargets(a, m.view.TargetB)
		m.applyView(m.ctrl.View())
		return m, nil
	case key.Matches(msg, m.keys.targetB):
		b := nextTab(m.view.Tabs, m.view.TargetB, m.view.TargetA)
		_ = m.ctrl.SelectTargets(m.view.TargetA, b)
		m.applyView(m.ctrl.View())
		return m, nil
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if next := m.input.Value(); next != prev {
		if err := m.ctrl.SetText(next); errors.Is(err, types.ErrTextTooLong) {
			m.input.SetValue(prev)
		}
	}
	return m, cmd
}

func (m Model) dispatch(op string, fn func(context.Context) (panel.Dispatch, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		d, err := fn(ctx)
		return dispatchMsg{op: op, d: d, err: err}
	}
}

func (m *Model) applyView(v panel.View) {
	m.st = newStyles(v.Theme)
	m.view = v
	if m.input.Value() != v.Text {
		m.input.SetValue(v.Text)
	}
	m.diag.SetContent(m.renderDiagnostics())
}

// nextTab steps through 0 then every eligible tab, skipping the other slot.
func nextTab(tabs []types.EligibleTab, current, other types.TabID) types.TabID {
	ids := []types.TabID{0}
	for _, t := range tabs {
		if t.ID != other {
			ids = append(ids, t.ID)
		}
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[min(1, len(ids)-1)]
}

func (m Model) View() string {
	var b strings.Builder

	live := m.st.Muted.Render("live sync off")
	if m.view.LiveSync {
		live = m.st.Success.Render("live sync on")
	}
	b.WriteString(m.st.Header.Render("TwinType"))
	b.WriteString("  " + live + "  " + m.st.Muted.Render("theme "+string(m.view.Theme)))
	if m.busy != "" {
		b.WriteString("  " + m.st.Accent.Render(m.busy+"..."))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderSlot("A", m.view.TargetA, 0) + "\n")
	b.WriteString(m.renderSlot("B", m.view.TargetB, 1) + "\n\n")

	b.WriteString(m.st.Panel.Render(m.input.View()) + "\n")
	counter := fmt.Sprintf("%d / %d", m.view.Length, types.MaxTextLength)
	b.WriteString(lipgloss.PlaceHorizontal(max(m.width, len(counter)), lipgloss.Right, m.st.Muted.Render(counter)) + "\n")

	if m.toast != nil {
		b.WriteString(m.st.level(m.toast.Level).Render(m.toast.Message) + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(m.st.Muted.Render("Diagnostics") + "\n")
	b.WriteString(m.diag.View() + "\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderSlot(name string, id types.TabID, slot int) string {
	label := m.st.Accent.Render("Target " + name + ":")
	if id == 0 {
		return label + " " + m.st.Muted.Render("none")
	}
	tab, ok := types.FindTab(m.view.Tabs, id)
	if !ok {
		return label + " " + m.st.Danger.Render(fmt.Sprintf("tab %d is gone", id))
	}
	title := tab.Title
	if title == "" {
		title = tab.URL
	}
	line := fmt.Sprintf("%s %s %s", label, tab.Provider, m.st.Muted.Render(fmt.Sprintf("%s (tab %d)", title, id)))

	if slot < len(m.view.Statuses) && m.view.Statuses[slot].TabID == id {
		st := m.view.Statuses[slot]
		if st.Ready {
			line += "  " + m.st.Success.Render("ready")
		} else {
			line += "  " + m.st.Alert.Render(st.Reason)
		}
	}
	return line
}

func (m Model) renderDiagnostics() string {
	if len(m.view.Diagnostics) == 0 {
		return m.st.Muted.Render("nothing yet")
	}
	lines := make([]string, 0, len(m.view.Diagnostics))
	for _, d := range m.view.Diagnostics {
		ts := d.At.Format("15:04:05")
		lines = append(lines, m.st.Muted.Render(ts)+" "+m.st.level(d.Level).Render(d.Message))
	}
	return strings.Join(lines, "\n")
}

// Run shows the terminal panel until the user quits or ctx ends.
func Run(ctx context.Context, ctrl Controller, toasts <-chan types.Toast) error {
	prog := tea.NewProgram(New(ctx, ctrl, toasts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
