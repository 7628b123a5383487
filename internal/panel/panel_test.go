package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dgnsrekt/twintype/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	Type  types.MessageType
	TabID types.TabID
	Text  string
}

type fakeGateway struct {
	mu       sync.Mutex
	tabs     []types.EligibleTab
	calls    []call
	setText  func(id types.TabID) types.Result
	send     func(id types.TabID) types.Result
	ping     func(id types.TabID) types.PingResult
	listener func(types.ComposerChanged)
}

func newFakeGateway(tabs ...types.EligibleTab) *fakeGateway {
	return &fakeGateway{tabs: tabs}
}

func (f *fakeGateway) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeGateway) ListEligibleTabs(context.Context) []types.EligibleTab {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.EligibleTab(nil), f.tabs...)
}

func (f *fakeGateway) Ping(_ context.Context, id types.TabID, _ string) types.PingResult {
	if f.ping != nil {
		return f.ping(id)
	}
	return types.PingResult{Ready: true}
}

func (f *fakeGateway) SetText(_ context.Context, id types.TabID, _, text string) types.Result {
	f.record(call{types.MsgSetText, id, text})
	if f.setText != nil {
		return f.setText(id)
	}
	return types.Result{OK: true}
}

func (f *fakeGateway) SendCommand(_ context.Context, id types.TabID) types.Result {
	f.record(call{Type: types.MsgSendCommand, TabID: id})
	if f.send != nil {
		return f.send(id)
	}
	return types.Result{OK: true}
}

func (f *fakeGateway) Subscribe(fn func(types.ComposerChanged)) func() {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listener = nil
		f.mu.Unlock()
	}
}

func (f *fakeGateway) emit(ev types.ComposerChanged) bool {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(ev)
	return true
}

func (f *fakeGateway) callsOf(t types.MessageType) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

type memStore struct {
	mu   sync.Mutex
	keys map[string]json.RawMessage
}

func newMemStore() *memStore { return &memStore{keys: make(map[string]json.RawMessage)} }

func (s *memStore) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.keys[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (s *memStore) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.keys[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *memStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

func (s *memStore) raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.keys[key]
	return string(v), ok
}

type recordingSink struct {
	mu     sync.Mutex
	toasts []types.Toast
	diags  []types.Diagnostic
}

func (r *recordingSink) Toast(t types.Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

func (r *recordingSink) Diagnostic(d types.Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

func (r *recordingSink) lastToast() types.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return types.Toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

var (
	chatgptTab = types.EligibleTab{ID: 101, Provider: "chatgpt", URL: "https://chatgpt.com/c/1", Title: "ChatGPT"}
	claudeTab  = types.EligibleTab{ID: 102, Provider: "claude", URL: "https://claude.ai/chat/2", Title: "Claude"}
	geminiTab  = types.EligibleTab{ID: 103, Provider: "gemini", URL: "https://gemini.google.com/app/3", Title: "Gemini"}
)

var fastOpts = Options{LiveSyncDebounce: 20 * time.Millisecond, SendDelay: time.Millisecond, PollInterval: time.Hour}

func newTestPanel(t *testing.T, gw *fakeGateway) (*Panel, *memStore, *recordingSink) {
	t.Helper()
	store := newMemStore()
	sink := &recordingSink{}
	p := New(gw, store, sink, fastOpts)
	t.Cleanup(p.Close)
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open() = %v", err)
	}
	return p, store, sink
}

func TestSendAllDeliversToBothTargetsAndClears(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab)
	p, store, sink := newTestPanel(t, gw)
	p.SetLiveSync(false)
	if err := p.SelectTargets(101, 102); err != nil {
		t.Fatalf("SelectTargets() = %v", err)
	}
	if err := p.SetText("Hello"); err != nil {
		t.Fatalf("SetText() = %v", err)
	}

	d, err := p.SendAll(context.Background())
	if err != nil {
		t.Fatalf("SendAll() = %v", err)
	}
	if d.Delivered != 2 || d.Targets != 2 {
		t.Fatalf("SendAll() = %+v; want 2 of 2", d)
	}

	sets := gw.callsOf(types.MsgSetText)
	if len(sets) != 2 {
		t.Fatalf("SET_TEXT calls = %+v; want 2", sets)
	}
	seen := map[types.TabID]string{}
	for _, c := range sets {
		seen[c.TabID] = c.Text
	}
	if seen[101] != "Hello" || seen[102] != "Hello" {
		t.Fatalf("SET_TEXT = %v; want Hello to 101 and 102", seen)
	}
	if n := len(gw.callsOf(types.MsgSendCommand)); n != 2 {
		t.Fatalf("SEND_COMMAND calls = %d; want 2", n)
	}

	if got := p.View().Text; got != "" {
		t.Fatalf("buffer = %q; want cleared", got)
	}
	if raw, _ := store.raw(KeyText); raw != `""` {
		t.Fatalf("persisted inputText = %s; want empty string", raw)
	}
	if got := sink.lastToast(); got.Message != "Sent to 2 target(s)" || got.Level != types.LevelSuccess {
		t.Fatalf("toast = %+v; want success Sent to 2 target(s)", got)
	}
}

func TestSendAllPartialAndTotalFailure(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab)
	gw.send = func(id types.TabID) types.Result {
		if id == 102 {
			return types.Result{OK: false, Error: "Composer not found"}
		}
		return types.Result{OK: true}
	}
	p, _, sink := newTestPanel(t, gw)
	p.SetLiveSync(false)
	_ = p.SelectTargets(101, 102)
	_ = p.SetText("Hi")

	d, _ := p.SendAll(context.Background())
	if d.Delivered != 1 || len(d.Failures) != 1 || d.Failures[0].TabID != 102 {
		t.Fatalf("SendAll() = %+v; want one delivery and a failure for 102", d)
	}
	if got := sink.lastToast().Message; got != "Sent to 1 target(s)" {
		t.Fatalf("toast = %q; want Sent to 1 target(s)", got)
	}
	if diag := p.Diagnostics()[0].Message; diag != "Send failed (Tab 102): Composer not found" {
		t.Fatalf("newest diagnostic = %q", diag)
	}

	gw.send = func(types.TabID) types.Result { return types.Result{OK: false, Error: "no receiver"} }
	_ = p.SetText("again")
	if _, err := p.SendAll(context.Background()); err != nil {
		t.Fatalf("SendAll() = %v", err)
	}
	if got := sink.lastToast(); got.Message != "Failed to send to targets" || got.Level != types.LevelError {
		t.Fatalf("toast = %+v; want error Failed to send to targets", got)
	}
	if got := p.View().Text; got != "again" {
		t.Fatalf("buffer = %q; want kept after failed send", got)
	}
}

func TestSendAllWithoutTargets(t *testing.T) {
	gw := newFakeGateway()
	p, _, sink := newTestPanel(t, gw)
	if _, err := p.SendAll(context.Background()); err != nil {
		t.Fatalf("SendAll() = %v", err)
	}
	if got := sink.lastToast(); got.Message != "No targets selected" || got.Level != types.LevelWarning {
		t.Fatalf("toast = %+v; want warning No targets selected", got)
	}
	if n := len(gw.callsOf(types.MsgSendCommand)); n != 0 {
		t.Fatalf("SEND_COMMAND calls = %d; want 0", n)
	}
}

func TestSyncTextRejectsOverLongBuffer(t *testing.T) {
	gw := newFakeGateway(chatgptTab)
	p, _, sink := newTestPanel(t, gw)

	p.mu.Lock()
	p.text = strings.Repeat("a", types.MaxTextLength+1)
	p.mu.Unlock()

	if _, err := p.SyncText(context.Background()); !errors.Is(err, types.ErrTextTooLong) {
		t.Fatalf("SyncText() error = %v; want ErrTextTooLong", err)
	}
	if n := len(gw.callsOf(types.MsgSetText)); n != 0 {
		t.Fatalf("SET_TEXT calls = %d; want 0", n)
	}
	if got := sink.lastToast(); got.Message != "Text too long (100kb limit)" || got.Level != types.LevelWarning {
		t.Fatalf("toast = %+v; want length warning", got)
	}
}

func TestSetTextRejectsOverLongInput(t *testing.T) {
	gw := newFakeGateway(chatgptTab)
	p, _, _ := newTestPanel(t, gw)
	_ = p.SetText("kept")

	if err := p.SetText(strings.Repeat("b", types.MaxTextLength+1)); !errors.Is(err, types.ErrTextTooLong) {
		t.Fatalf("SetText() error = %v; want ErrTextTooLong", err)
	}
	if got := p.View().Text; got != "kept" {
		t.Fatalf("buffer = %q; want unchanged", got)
	}
}

func TestSyncTextSkipsTargetsNoLongerEligible(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab)
	gw.setText = func(id types.TabID) types.Result {
		return types.Result{OK: false, Error: "no receiver (injection failed)"}
	}
	p, _, _ := newTestPanel(t, gw)
	p.SetLiveSync(false)
	_ = p.SelectTargets(101, 102)
	_ = p.SetText("x")

	d, err := p.SyncText(context.Background())
	if err != nil {
		t.Fatalf("SyncText() = %v", err)
	}
	if d.Targets != 2 || d.Delivered != 0 || len(d.Failures) != 2 {
		t.Fatalf("SyncText() = %+v; want two failures", d)
	}
	if msg := p.Diagnostics()[0].Message; !strings.HasPrefix(msg, "Sync failed (Tab 10") {
		t.Fatalf("newest diagnostic = %q; want a sync failure", msg)
	}

	// 102 leaves the eligible set between refreshes: it is skipped.
	p.mu.Lock()
	p.tabs = []types.EligibleTab{chatgptTab}
	p.mu.Unlock()
	if d, _ := p.SyncText(context.Background()); d.Targets != 1 {
		t.Fatalf("SyncText() = %+v; want one reachable target", d)
	}
}

func TestTargetsDeduplicates(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab)
	p, _, _ := newTestPanel(t, gw)

	tests := []struct {
		a, b types.TabID
		want string
	}{
		{101, 101, "[101]"},
		{101, 102, "[101 102]"},
		{101, 0, "[101]"},
		{0, 102, "[102]"},
	}
	for _, tt := range tests {
		if err := p.SelectTargets(tt.a, tt.b); err != nil {
			t.Fatalf("SelectTargets(%d, %d) = %v", tt.a, tt.b, err)
		}
		if got := fmt.Sprint(p.Targets()); got != tt.want {
			t.Fatalf("Targets() after (%d, %d) = %s; want %s", tt.a, tt.b, got, tt.want)
		}
	}
	if err := p.SelectTargets(999, 0); !errors.Is(err, ErrTargetNotEligible) {
		t.Fatalf("SelectTargets(999) error = %v; want ErrTargetNotEligible", err)
	}
}

func TestRefreshTabsValidatesTargets(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab, geminiTab)
	p, store, _ := newTestPanel(t, gw)

	if got := p.View().TargetA; got != 101 {
		t.Fatalf("TargetA = %d; want default to first tab 101", got)
	}
	if msg := p.Diagnostics()[1].Message; msg != "Fetched 3 eligible tabs" {
		t.Fatalf("refresh diagnostic = %q", msg)
	}
	_ = p.SelectTargets(102, 103)

	gw.mu.Lock()
	gw.tabs = []types.EligibleTab{chatgptTab, geminiTab}
	gw.mu.Unlock()
	p.RefreshTabs(context.Background())

	v := p.View()
	if v.TargetA != 101 || v.TargetB != 103 {
		t.Fatalf("targets = %d/%d; want A reset to 101 and B kept 103", v.TargetA, v.TargetB)
	}

	gw.mu.Lock()
	gw.tabs = []types.EligibleTab{chatgptTab}
	gw.mu.Unlock()
	p.RefreshTabs(context.Background())
	if v := p.View(); v.TargetB != 0 {
		t.Fatalf("TargetB = %d; want cleared", v.TargetB)
	}
	if _, ok := store.raw(KeyTargetB); ok {
		t.Fatal("selectedTargetB still persisted after its tab vanished")
	}
}

func TestOpenRestoresPersistedKeys(t *testing.T) {
	store := newMemStore()
	_ = store.Set(KeyLiveSync, false)
	_ = store.Set(KeyTheme, "dark")
	_ = store.Set(KeyText, strings.Repeat("z", types.MaxTextLength+5))
	_ = store.Set(KeyTargetA, 102)
	_ = store.Set(KeyTargetB, 101)

	p := New(newFakeGateway(chatgptTab, claudeTab), store, nil, fastOpts)
	defer p.Close()
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open() = %v", err)
	}

	v := p.View()
	if v.LiveSync || v.Theme != ThemeDark || v.TargetA != 102 || v.TargetB != 101 {
		t.Fatalf("View() = live %v theme %s targets %d/%d; want restored values", v.LiveSync, v.Theme, v.TargetA, v.TargetB)
	}
	if v.Length != types.MaxTextLength {
		t.Fatalf("restored length = %d; want capped at %d", v.Length, types.MaxTextLength)
	}
}

func TestOpenLogsConnect(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })

	gw := newFakeGateway(chatgptTab, claudeTab)
	p, _, _ := newTestPanel(t, gw)

	if msg := p.Diagnostics()[0].Message; msg != "Panel connected (2 eligible tabs)" {
		t.Fatalf("newest diagnostic = %q; want the connect entry", msg)
	}
	out := buf.String()
	if !strings.Contains(out, `msg="panel connected"`) || !strings.Contains(out, "tabs=2") || !strings.Contains(out, "target_a=101") {
		t.Fatalf("log = %q; want a panel connected line with tabs and target", out)
	}
}

func TestOpenDefaultsLiveSyncOn(t *testing.T) {
	p := New(newFakeGateway(), newMemStore(), nil, fastOpts)
	defer p.Close()
	_ = p.Open(context.Background())
	if v := p.View(); !v.LiveSync || v.Theme != ThemeSystem {
		t.Fatalf("View() = live %v theme %s; want live sync on and system theme", v.LiveSync, v.Theme)
	}
}

func TestLiveSyncDebouncesEdits(t *testing.T) {
	gw := newFakeGateway(chatgptTab)
	p, _, _ := newTestPanel(t, gw)

	for _, s := range []string{"H", "He", "Hel", "Hell", "Hello"} {
		_ = p.SetText(s)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(gw.callsOf(types.MsgSetText)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	sets := gw.callsOf(types.MsgSetText)
	if len(sets) != 1 || sets[0].Text != "Hello" {
		t.Fatalf("SET_TEXT calls = %+v; want one with the final text", sets)
	}
}

func TestLiveSyncOffDoesNotSync(t *testing.T) {
	gw := newFakeGateway(chatgptTab)
	p, store, _ := newTestPanel(t, gw)
	p.SetLiveSync(false)
	_ = p.SetText("quiet")
	time.Sleep(60 * time.Millisecond)

	if n := len(gw.callsOf(types.MsgSetText)); n != 0 {
		t.Fatalf("SET_TEXT calls = %d; want 0 with live sync off", n)
	}
	if raw, _ := store.raw(KeyLiveSync); raw != "false" {
		t.Fatalf("persisted liveSync = %s; want false", raw)
	}
}

func TestCycleTheme(t *testing.T) {
	p, store, _ := newTestPanel(t, newFakeGateway())
	for _, want := range []Theme{ThemeLight, ThemeDark, ThemeSystem, ThemeLight} {
		if got := p.CycleTheme(); got != want {
			t.Fatalf("CycleTheme() = %s; want %s", got, want)
		}
		raw, ok := store.raw(KeyTheme)
		if want == ThemeSystem && ok {
			t.Fatalf("theme key = %s; want removed for system", raw)
		}
		if want != ThemeSystem && raw != `"`+string(want)+`"` {
			t.Fatalf("theme key = %s; want %q", raw, want)
		}
	}
}

func TestClear(t *testing.T) {
	p, _, sink := newTestPanel(t, newFakeGateway())
	p.SetLiveSync(false)
	_ = p.SetText("something")
	p.Clear()
	if got := p.View().Text; got != "" {
		t.Fatalf("buffer = %q; want empty", got)
	}
	if got := sink.lastToast(); got.Message != "Cleared" {
		t.Fatalf("toast = %q; want Cleared", got.Message)
	}
}

func TestDiagnosticsRingIsBounded(t *testing.T) {
	p, _, _ := newTestPanel(t, newFakeGateway())
	for i := 0; i < 45; i++ {
		p.diagnostic(types.LevelInfo, 0, fmt.Sprintf("entry %d", i))
	}
	diags := p.Diagnostics()
	if len(diags) != MaxDiagnostics {
		t.Fatalf("len(Diagnostics()) = %d; want %d", len(diags), MaxDiagnostics)
	}
	if diags[0].Message != "entry 44" || diags[MaxDiagnostics-1].Message != "entry 25" {
		t.Fatalf("ring = newest %q oldest %q; want entry 44 .. entry 25", diags[0].Message, diags[MaxDiagnostics-1].Message)
	}
}

func TestStatusesPingsBothSlots(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab)
	gw.ping = func(id types.TabID) types.PingResult {
		if id == 102 {
			return types.PingResult{Reason: "composer not found"}
		}
		return types.PingResult{Ready: true}
	}
	p, _, _ := newTestPanel(t, gw)
	_ = p.SelectTargets(101, 102)

	got := p.Statuses(context.Background())
	want := []Status{{TabID: 101, Ready: true}, {TabID: 102, Reason: "composer not found"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Statuses() = %+v; want %+v", got, want)
	}

	_ = p.SelectTargets(101, 0)
	if got := p.Statuses(context.Background()); got[1] != (Status{}) {
		t.Fatalf("empty slot status = %+v; want zero", got[1])
	}
}

func TestRunMirrorsComposerChanges(t *testing.T) {
	gw := newFakeGateway(chatgptTab, claudeTab, geminiTab)
	p, _, _ := newTestPanel(t, gw)
	_ = p.SelectTargets(101, 102)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() = %v", err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !gw.emit(types.ComposerChanged{TabID: 101, Provider: "chatgpt", Text: "from page"}) {
		if time.Now().After(deadline) {
			t.Fatal("Run() never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for p.View().Text != "from page" {
		if time.Now().After(deadline) {
			t.Fatalf("buffer = %q; want mirrored text", p.View().Text)
		}
		time.Sleep(5 * time.Millisecond)
	}
	for len(gw.callsOf(types.MsgSetText)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("mirrored edit was not forwarded to the other target")
		}
		time.Sleep(5 * time.Millisecond)
	}
	sets := gw.callsOf(types.MsgSetText)
	if len(sets) != 1 || sets[0].TabID != 102 || sets[0].Text != "from page" {
		t.Fatalf("SET_TEXT calls = %+v; want one to 102 only", sets)
	}

	// Edits in tabs that are not targets are ignored.
	gw.emit(types.ComposerChanged{TabID: 103, Provider: "gemini", Text: "elsewhere"})
	time.Sleep(30 * time.Millisecond)
	if got := p.View().Text; got != "from page" {
		t.Fatalf("buffer = %q; want unchanged by non-target tab", got)
	}
}
