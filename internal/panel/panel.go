// Package panel is the Control Surface: two target selections, a master text
// buffer, live sync, send-all, theme and a bounded diagnostics log. It drives
// the gateway through an interface and persists its keys to a local store.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/twintype/internal/types"
)

const (
	DefaultLiveSyncDebounce = 100 * time.Millisecond
	DefaultSendDelay        = 100 * time.Millisecond
	DefaultPollInterval     = 5 * time.Second

	// MaxDiagnostics bounds the diagnostics ring.
	MaxDiagnostics = 20

	eventQueueSize = 64
)

// Persisted keys.
const (
	KeyLiveSync = "liveSync"
	KeyTheme    = "theme"
	KeyText     = "inputText"
	KeyTargetA  = "selectedTargetA"
	KeyTargetB  = "selectedTargetB"
)

// Toast messages.
const (
	ToastTextTooLong = "Text too long (100kb limit)"
	ToastNoTargets   = "No targets selected"
	ToastSendFailed  = "Failed to send to targets"
	ToastCleared     = "Cleared"
)

var ErrTargetNotEligible = errors.New("target is not an eligible tab")

// Gateway is the subset of the tab messaging gateway the panel consumes.
type Gateway interface {
	ListEligibleTabs(ctx context.Context) []types.EligibleTab
	Ping(ctx context.Context, id types.TabID, tabURL string) types.PingResult
	SetText(ctx context.Context, id types.TabID, tabURL, text string) types.Result
	SendCommand(ctx context.Context, id types.TabID) types.Result
	Subscribe(fn func(types.ComposerChanged)) func()
}

// Store persists panel keys.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
	Delete(key string) error
}

// Sink receives toasts and diagnostics as they are raised.
type Sink interface {
	Toast(types.Toast)
	Diagnostic(types.Diagnostic)
}

type Options struct {
	LiveSyncDebounce time.Duration
	SendDelay        time.Duration
	PollInterval     time.Duration
}

func (o Options) withDefaults() Options {
	if o.LiveSyncDebounce <= 0 {
		o.LiveSyncDebounce = DefaultLiveSyncDebounce
	}
	if o.SendDelay <= 0 {
		o.SendDelay = DefaultSendDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Status is the readiness of one target slot.
type Status struct {
	TabID  types.TabID `json:"tabId,omitempty"`
	Ready  bool        `json:"ready"`
	Reason string      `json:"reason,omitempty"`
}

// View is a point-in-time copy of the panel state.
type View struct {
	Text        string              `json:"text"`
	Length      int                 `json:"length"`
	TargetA     types.TabID         `json:"targetA,omitempty"`
	TargetB     types.TabID         `json:"targetB,omitempty"`
	LiveSync    bool                `json:"liveSync"`
	Theme       Theme               `json:"theme"`
	Tabs        []types.EligibleTab `json:"tabs"`
	Statuses    []Status            `json:"statuses"`
	Diagnostics []types.Diagnostic  `json:"diagnostics"`
}

// Failure names a target an operation could not reach.
type Failure struct {
	TabID types.TabID `json:"tabId"`
	Error string      `json:"error"`
}

// Dispatch summarizes a fan-out to the targets.
type Dispatch struct {
	Targets   int       `json:"targets"`
	Delivered int       `json:"delivered"`
	Failures  []Failure `json:"failures,omitempty"`
}

type Panel struct {
	gw    Gateway
	store Store
	sink  Sink
	opts  Options
	now   func() time.Time

	life   context.Context
	cancel context.CancelFunc
	syncWG sync.WaitGroup

	changed chan struct{}

	mu          sync.Mutex
	text        string
	targetA     types.TabID
	targetB     types.TabID
	liveSync    bool
	theme       Theme
	tabs        []types.EligibleTab
	statuses    [2]Status
	diagnostics []types.Diagnostic
	syncTimer   *time.Timer
	closed      bool
}

// New creates a panel. sink may be nil.
func New(gw Gateway, store Store, sink Sink, opts Options) *Panel {
	if sink == nil {
		sink = nopSink{}
	}
	life, cancel := context.WithCancel(context.Background())
	return &Panel{
		gw:       gw,
		store:    store,
		sink:     sink,
		opts:     opts.withDefaults(),
		now:      time.Now,
		life:     life,
		cancel:   cancel,
		changed:  make(chan struct{}, 1),
		liveSync: true,
		theme:    ThemeSystem,
	}
}

// Changes signals after every state change. Signals coalesce; a single
// reader is expected.
func (p *Panel) Changes() <-chan struct{} { return p.changed }

func (p *Panel) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// Open restores persisted keys and fetches the eligible tabs.
func (p *Panel) Open(ctx context.Context) error {
	p.restore()
	tabs := p.RefreshTabs(ctx)
	p.logConnect(tabs)
	return nil
}

// logConnect records that a panel attached. It never fails Open.
func (p *Panel) logConnect(tabs []types.EligibleTab) {
	p.mu.Lock()
	a, b := p.targetA, p.targetB
	p.addDiagnostic(types.LevelInfo, 0, fmt.Sprintf("Panel connected (%d eligible tabs)", len(tabs)))
	p.mu.Unlock()
	p.notify()
	slog.Info("panel connected", "tabs", len(tabs), "target_a", a, "target_b", b)
}

func (p *Panel) restore() {
	var (
		live   bool
		theme  string
		text   string
		ta, tb types.TabID
	)
	restoreKey := func(key string, out any) bool {
		ok, err := p.store.Get(key, out)
		if err != nil {
			slog.Warn("panel restore failed", "key", key, "error", err)
			p.addDiagnostic(types.LevelError, 0, fmt.Sprintf("Restore failed (%s): %v", key, err))
			return false
		}
		return ok
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.liveSync = true
	if restoreKey(KeyLiveSync, &live) {
		p.liveSync = live
	}
	p.theme = ThemeSystem
	if restoreKey(KeyTheme, &theme) {
		p.theme = ParseTheme(theme)
	}
	if restoreKey(KeyText, &text) {
		p.text = truncateRunes(text, types.MaxTextLength)
	}
	if restoreKey(KeyTargetA, &ta) && ta > 0 {
		p.targetA = ta
	}
	if restoreKey(KeyTargetB, &tb) && tb > 0 {
		p.targetB = tb
	}
	slog.Info("panel restored", "live_sync", p.liveSync, "theme", p.theme, "target_a", p.targetA, "target_b", p.targetB, "len", types.TextLength(p.text))
}

// Run processes composer events and polls target statuses until ctx ends.
func (p *Panel) Run(ctx context.Context) error {
	events := make(chan types.ComposerChanged, eventQueueSize)
	unsubscribe := p.gw.Subscribe(func(ev types.ComposerChanged) {
		select {
		case events <- ev:
		default:
			slog.Debug("panel composer event dropped", "tab_id", ev.TabID)
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	p.Statuses(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			p.ApplyComposerChange(ctx, ev)
		case <-ticker.C:
			p.Statuses(ctx)
		}
	}
}

// Close cancels pending live syncs and waits for one in flight.
func (p *Panel) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopSyncLocked()
	p.mu.Unlock()
	p.cancel()
	p.syncWG.Wait()
}

// RefreshTabs fetches the eligible tabs, clears targets whose tab vanished
// and defaults target A to the first tab.
func (p *Panel) RefreshTabs(ctx context.Context) []types.EligibleTab {
	tabs := p.gw.ListEligibleTabs(ctx)

	p.mu.Lock()
	p.tabs = tabs
	if p.targetA != 0 && !hasTab(tabs, p.targetA) {
		slog.Info("panel target vanished", "slot", "A", "tab_id", p.targetA)
		p.targetA = 0
		p.persistTargetLocked(KeyTargetA, 0)
	}
	if p.targetB != 0 && !hasTab(tabs, p.targetB) {
		slog.Info("panel target vanished", "slot", "B", "tab_id", p.targetB)
		p.targetB = 0
		p.persistTargetLocked(KeyTargetB, 0)
	}
	if p.targetA == 0 && len(tabs) > 0 {
		p.targetA = tabs[0].ID
		p.persistTargetLocked(KeyTargetA, p.targetA)
	}
	p.addDiagnostic(types.LevelSuccess, 0, fmt.Sprintf("Fetched %d eligible tabs", len(tabs)))
	p.mu.Unlock()

	p.notify()
	p.Statuses(ctx)
	return append([]types.EligibleTab(nil), tabs...)
}

// SelectTargets sets target A and the optional target B (0 for none).
func (p *Panel) SelectTargets(a, b types.TabID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range []types.TabID{a, b} {
		if id != 0 && !hasTab(p.tabs, id) {
			return fmt.Errorf("tab %d: %w", id, ErrTargetNotEligible)
		}
	}
	p.targetA, p.targetB = a, b
	p.persistTargetLocked(KeyTargetA, a)
	p.persistTargetLocked(KeyTargetB, b)
	p.notify()
	return nil
}

// Targets returns A then B, with B dropped when unset or equal to A.
func (p *Panel) Targets() []types.TabID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetsLocked()
}

func (p *Panel) targetsLocked() []types.TabID {
	out := make([]types.TabID, 0, 2)
	if p.targetA != 0 {
		out = append(out, p.targetA)
	}
	if p.targetB != 0 && p.targetB != p.targetA {
		out = append(out, p.targetB)
	}
	return out
}

// SetText replaces the buffer. Over-long text is rejected and the buffer is
// left as it was. With live sync on, a sync follows after the debounce.
func (p *Panel) SetText(text string) error {
	if types.TextLength(text) > types.MaxTextLength {
		p.toast(types.LevelWarning, ToastTextTooLong)
		return types.ErrTextTooLong
	}

	p.mu.Lock()
	p.text = text
	p.persistLocked(KeyText, text)
	if p.liveSync && !p.closed {
		p.scheduleSyncLocked()
	}
	p.mu.Unlock()
	p.notify()
	return nil
}

func (p *Panel) scheduleSyncLocked() {
	p.stopSyncLocked()
	p.syncWG.Add(1)
	p.syncTimer = time.AfterFunc(p.opts.LiveSyncDebounce, func() {
		defer p.syncWG.Done()
		p.SyncText(p.life)
	})
}

func (p *Panel) stopSyncLocked() {
	if p.syncTimer != nil && p.syncTimer.Stop() {
		p.syncWG.Done()
	}
	p.syncTimer = nil
}

// SyncText writes the buffer into every target that is still eligible.
func (p *Panel) SyncText(ctx context.Context) (Dispatch, error) {
	p.mu.Lock()
	text := p.text
	if types.TextLength(text) > types.MaxTextLength {
		p.mu.Unlock()
		p.toast(types.LevelWarning, ToastTextTooLong)
		return Dispatch{}, types.ErrTextTooLong
	}
	p.persistLocked(KeyText, text)
	targets := p.reachableLocked(p.targetsLocked())
	p.mu.Unlock()

	if len(targets) == 0 {
		return Dispatch{}, nil
	}

	results := fanOut(ctx, targets, func(ctx context.Context, t types.EligibleTab) types.Result {
		return p.gw.SetText(ctx, t.ID, t.URL, text)
	})
	d := Dispatch{Targets: len(targets)}
	for i, res := range results {
		if res.OK {
			d.Delivered++
			continue
		}
		id := targets[i].ID
		d.Failures = append(d.Failures, Failure{TabID: id, Error: res.Error})
		p.diagnostic(types.LevelError, id, fmt.Sprintf("Sync failed (Tab %d): %s", id, res.Error))
	}
	if len(d.Failures) > 0 {
		p.Statuses(ctx)
	}
	return d, nil
}

// SendAll syncs the buffer, waits briefly and triggers send in every target.
// Any success clears the buffer.
func (p *Panel) SendAll(ctx context.Context) (Dispatch, error) {
	if _, err := p.SyncText(ctx); err != nil {
		slog.Info("panel send continuing without sync", "error", err)
	}

	select {
	case <-time.After(p.opts.SendDelay):
	case <-ctx.Done():
		return Dispatch{}, ctx.Err()
	}

	targets := p.Targets()
	if len(targets) == 0 {
		p.toast(types.LevelWarning, ToastNoTargets)
		return Dispatch{}, nil
	}

	tabs := make([]types.EligibleTab, len(targets))
	for i, id := range targets {
		tabs[i] = types.EligibleTab{ID: id}
	}
	results := fanOut(ctx, tabs, func(ctx context.Context, t types.EligibleTab) types.Result {
		return p.gw.SendCommand(ctx, t.ID)
	})

	d := Dispatch{Targets: len(targets)}
	for i, res := range results {
		if res.OK {
			d.Delivered++
			continue
		}
		d.Failures = append(d.Failures, Failure{TabID: targets[i], Error: res.Error})
		p.diagnostic(types.LevelError, targets[i], fmt.Sprintf("Send failed (Tab %d): %s", targets[i], res.Error))
	}

	if d.Delivered > 0 {
		p.toast(types.LevelSuccess, fmt.Sprintf("Sent to %d target(s)", d.Delivered))
		p.mu.Lock()
		p.stopSyncLocked()
		p.text = ""
		p.persistLocked(KeyText, "")
		p.mu.Unlock()
		p.notify()
	} else {
		p.toast(types.LevelError, ToastSendFailed)
	}

	p.Statuses(ctx)
	return d, nil
}

// SetLiveSync turns live sync on or off. Turning it off drops a pending sync.
func (p *Panel) SetLiveSync(on bool) {
	p.mu.Lock()
	p.liveSync = on
	if !on {
		p.stopSyncLocked()
	}
	p.persistLocked(KeyLiveSync, on)
	p.mu.Unlock()
	p.notify()
}

// CycleTheme advances system → light → dark → system. The system theme is
// stored as an absent key.
func (p *Panel) CycleTheme() Theme {
	p.mu.Lock()
	p.theme = p.theme.Next()
	if p.theme == ThemeSystem {
		p.deleteLocked(KeyTheme)
	} else {
		p.persistLocked(KeyTheme, string(p.theme))
	}
	theme := p.theme
	p.mu.Unlock()
	p.notify()
	return theme
}

// Clear empties the buffer.
func (p *Panel) Clear() {
	p.mu.Lock()
	p.stopSyncLocked()
	p.text = ""
	p.persistLocked(KeyText, "")
	p.mu.Unlock()
	p.toast(types.LevelSuccess, ToastCleared)
	p.notify()
}

// ApplyComposerChange mirrors an edit made in a target's composer into the
// buffer and, with live sync on, into the other target.
func (p *Panel) ApplyComposerChange(ctx context.Context, ev types.ComposerChanged) {
	if types.TextLength(ev.Text) > types.MaxTextLength {
		p.diagnostic(types.LevelError, ev.TabID, fmt.Sprintf("Mirror rejected (Tab %d): text too long", ev.TabID))
		return
	}

	p.mu.Lock()
	isTarget := ev.TabID != 0 && (ev.TabID == p.targetA || ev.TabID == p.targetB)
	if !isTarget {
		p.mu.Unlock()
		slog.Debug("panel composer change ignored", "tab_id", ev.TabID, "provider", ev.Provider)
		return
	}
	if p.text == ev.Text {
		p.mu.Unlock()
		return
	}
	p.text = ev.Text
	p.persistLocked(KeyText, ev.Text)
	var others []types.EligibleTab
	if p.liveSync {
		for _, t := range p.reachableLocked(p.targetsLocked()) {
			if t.ID != ev.TabID {
				others = append(others, t)
			}
		}
	}
	p.mu.Unlock()
	p.notify()

	p.diagnostic(types.LevelInfo, ev.TabID, fmt.Sprintf("Mirrored edit from %s (Tab %d)", ev.Provider, ev.TabID))
	for _, t := range others {
		if res := p.gw.SetText(ctx, t.ID, t.URL, ev.Text); !res.OK {
			p.diagnostic(types.LevelError, t.ID, fmt.Sprintf("Sync failed (Tab %d): %s", t.ID, res.Error))
		}
	}
}

// Statuses pings both target slots.
func (p *Panel) Statuses(ctx context.Context) []Status {
	p.mu.Lock()
	slots := [2]types.TabID{p.targetA, p.targetB}
	var urls [2]string
	for i, id := range slots {
		if t, ok := types.FindTab(p.tabs, id); ok {
			urls[i] = t.URL
		}
	}
	p.mu.Unlock()

	var out [2]Status
	var g errgroup.Group
	for i, id := range slots {
		out[i].TabID = id
		if id == 0 {
			continue
		}
		g.Go(func() error {
			res := p.gw.Ping(ctx, id, urls[i])
			out[i].Ready, out[i].Reason = res.Ready, res.Reason
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	p.statuses = out
	p.mu.Unlock()
	p.notify()
	return out[:]
}

// Diagnostics returns the log, newest first.
func (p *Panel) Diagnostics() []types.Diagnostic {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Diagnostic(nil), p.diagnostics...)
}

// View snapshots the panel.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View{
		Text:        p.text,
		Length:      types.TextLength(p.text),
		TargetA:     p.targetA,
		TargetB:     p.targetB,
		LiveSync:    p.liveSync,
		Theme:       p.theme,
		Tabs:        append([]types.EligibleTab{}, p.tabs...),
		Statuses:    append([]Status(nil), p.statuses[:]...),
		Diagnostics: append([]types.Diagnostic{}, p.diagnostics...),
	}
}

// reachableLocked resolves target ids against the eligible list, skipping
// ids that are no longer eligible.
func (p *Panel) reachableLocked(ids []types.TabID) []types.EligibleTab {
	out := make([]types.EligibleTab, 0, len(ids))
	for _, id := range ids {
		if t, ok := types.FindTab(p.tabs, id); ok {
			out = append(out, t)
		}
	}
	return out
}

func (p *Panel) diagnostic(level types.Level, tabID types.TabID, msg string) {
	p.mu.Lock()
	p.addDiagnostic(level, tabID, msg)
	p.mu.Unlock()
	p.notify()
}

// addDiagnostic requires p.mu.
func (p *Panel) addDiagnostic(level types.Level, tabID types.TabID, msg string) {
	d := types.Diagnostic{ID: uuid.NewString(), Level: level, Message: msg, TabID: tabID, At: p.now()}
	p.diagnostics = append([]types.Diagnostic{d}, p.diagnostics...)
	if len(p.diagnostics) > MaxDiagnostics {
		p.diagnostics = p.diagnostics[:MaxDiagnostics]
	}
	p.sink.Diagnostic(d)
}

func (p *Panel) toast(level types.Level, msg string) {
	t := types.Toast{ID: uuid.NewString(), Level: level, Message: msg, At: p.now()}
	slog.Debug("panel toast", "level", level, "message", msg)
	p.sink.Toast(t)
}

func (p *Panel) persistLocked(key string, value any) {
	if err := p.store.Set(key, value); err != nil {
		slog.Warn("panel persist failed", "key", key, "error", err)
	}
}

func (p *Panel) deleteLocked(key string) {
	if err := p.store.Delete(key); err != nil {
		slog.Warn("panel persist failed", "key", key, "error", err)
	}
}

func (p *Panel) persistTargetLocked(key string, id types.TabID) {
	if id == 0 {
		p.deleteLocked(key)
		return
	}
	p.persistLocked(key, id)
}

func hasTab(tabs []types.EligibleTab, id types.TabID) bool {
	_, ok := types.FindTab(tabs, id)
	return ok
}

func truncateRunes(s string, n int) string {
	if types.TextLength(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type nopSink struct{}

func (nopSink) Toast(types.Toast)           {}
func (nopSink) Diagnostic(types.Diagnostic) {}
