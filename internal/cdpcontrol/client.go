package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/twintype/internal/adapter"
	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/types"
	"github.com/dgnsrekt/twintype/internal/watcher"
)

// goneHints are substrings in eval failures that mean the page (or our
// session with it) went away. They surface as NO_RECEIVER.
var goneHints = []string{
	"target closed",
	"session closed",
	"session with given id not found",
	"cannot find context",
	"execution context was destroyed",
	"inspected target navigated or closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection closed",
}

const (
	jsVisibility    = `document.visibilityState`
	lookupTimeout   = 2 * time.Second
	lookupParallel  = 4
	untitledTabName = "Untitled"
)

type tabSession struct {
	id        types.TabID // fixed for the target's lifetime
	info      TabInfo
	mu        sync.Mutex
	sessionID string // CDP session ID from Target.attachToTarget

	// watcher is guarded by Client.mu.
	watcher *watcher.Watcher
}

// Client owns the browser connection, the tab inventory and one watcher per
// injected tab.
type Client struct {
	cdpURL      string
	evalTimeout time.Duration
	profiles    adapter.ProfileSource
	watchOpts   watcher.Options

	life   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	cdp        *rawCDP
	unregister []func()
	tabs       map[target.ID]*tabSession
	ids        map[types.TabID]target.ID
	numbers    map[target.ID]types.TabID
	nextID     types.TabID

	bySession sync.Map // CDP session ID -> *tabSession

	listenersMu sync.RWMutex
	listeners   []func(types.ComposerChanged)
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewClient(cdpURL string, evalTimeout time.Duration, profiles adapter.ProfileSource, opts watcher.Options) *Client {
	life, cancel := context.WithCancel(context.Background())
	return &Client{
		cdpURL:      cdpURL,
		evalTimeout: evalTimeout,
		profiles:    profiles,
		watchOpts:   opts,
		life:        life,
		cancel:      cancel,
		tabs:        make(map[target.ID]*tabSession),
		ids:         make(map[types.TabID]target.ID),
		numbers:     make(map[target.ID]types.TabID),
	}
}

// OnComposerChanged registers a listener for edits reported by watchers.
// Listeners run on the reporting watcher's goroutine and must not block.
func (c *Client) OnComposerChanged(fn func(types.ComposerChanged)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

func (c *Client) emit(ev types.ComposerChanged) {
	c.listenersMu.RLock()
	listeners := slices.Clone(c.listeners)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	td, err := c.connectLocked(ctx)
	c.mu.Unlock()
	td.run()
	retire(td.watchers)
	return err
}

// connectLocked replaces the connection. The returned teardown releases the
// previous one and must run after c.mu is released.
func (c *Client) connectLocked(ctx context.Context) (teardown, error) {
	if c.cdpURL == "" {
		return teardown{}, newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpcontrol connect start", "cdp_url", c.cdpURL)
	td := c.cleanupLocked()

	cdp := newRawCDP(c.cdpURL)
	cdp.onClose = func() { c.handleDisconnect(cdp) }
	if err := cdp.connect(ctx); err != nil {
		return td, newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}
	c.cdp = cdp
	c.registerHandlersLocked(cdp)

	if err := c.syncTabsLocked(ctx); err != nil {
		slog.Error("cdpcontrol initial tab sync failed", "error", err)
		td.merge(c.cleanupLocked())
		return td, newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}

	slog.Info("cdpcontrol connect ok", "cdp_url", c.cdpURL, "tabs", len(c.tabs))
	return td, nil
}

func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	td := c.cleanupLocked()
	c.mu.Unlock()
	td.run()
	for _, w := range td.watchers {
		w.Close()
	}
	return nil
}

type detachment struct {
	cdp       *rawCDP
	targetID  target.ID
	sessionID string
}

// teardown is what cleanupLocked hands back: browser round trips and watcher
// shutdowns that must not happen under c.mu.
type teardown struct {
	detach   []detachment
	conns    []*rawCDP
	watchers []*watcher.Watcher
}

func (td *teardown) merge(other teardown) {
	td.detach = append(td.detach, other.detach...)
	td.conns = append(td.conns, other.conns...)
	td.watchers = append(td.watchers, other.watchers...)
}

// run detaches the collected sessions and then closes their connections.
// Watchers are left to the caller.
func (td teardown) run() {
	for _, d := range td.detach {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := d.cdp.detachFromTarget(ctx, d.sessionID); err != nil {
			slog.Debug("cdpcontrol detach cleanup failed", "target_id", d.targetID, "error", err)
		}
		cancel()
	}
	for _, cdp := range td.conns {
		cdp.close()
	}
}

// cleanupLocked forgets every session and the connection without talking to
// the browser; the returned teardown does that once c.mu is released.
func (c *Client) cleanupLocked() teardown {
	var td teardown
	for _, fn := range c.unregister {
		fn()
	}
	c.unregister = nil

	for _, session := range c.tabs {
		if session == nil {
			continue
		}
		if session.watcher != nil {
			td.watchers = append(td.watchers, session.watcher)
			session.watcher = nil
		}
		session.mu.Lock()
		if session.sessionID != "" {
			if c.cdp != nil {
				td.detach = append(td.detach, detachment{cdp: c.cdp, targetID: target.ID(session.info.TargetID), sessionID: session.sessionID})
			}
			c.bySession.Delete(session.sessionID)
			session.sessionID = ""
		}
		session.mu.Unlock()
	}
	if c.cdp != nil {
		td.conns = append(td.conns, c.cdp)
		c.cdp = nil
	}
	c.tabs = make(map[target.ID]*tabSession)
	return td
}

// handleDisconnect runs when the browser connection drops underneath us.
func (c *Client) handleDisconnect(cdp *rawCDP) {
	c.mu.Lock()
	if c.cdp != cdp {
		c.mu.Unlock()
		return
	}
	slog.Warn("cdpcontrol connection lost", "cdp_url", c.cdpURL)
	td := c.cleanupLocked()
	c.mu.Unlock()
	go td.run()
	retire(td.watchers)
}

func (c *Client) registerHandlersLocked(cdp *rawCDP) {
	c.unregister = append(c.unregister,
		cdp.registerEventHandler("Runtime.bindingCalled", c.handleBindingCalled),
		cdp.registerEventHandler("Runtime.executionContextsCleared", c.handleContextsCleared),
		cdp.registerEventHandler("Target.detachedFromTarget", c.handleDetached),
	)
}

func (c *Client) sessionFor(sessionID string) *tabSession {
	if sessionID == "" {
		return nil
	}
	v, ok := c.bySession.Load(sessionID)
	if !ok {
		return nil
	}
	return v.(*tabSession)
}

func (c *Client) watcherOf(s *tabSession) *watcher.Watcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.watcher
}

func (c *Client) handleBindingCalled(sessionID string, params json.RawMessage) {
	var ev runtime.EventBindingCalled
	if err := json.Unmarshal(params, &ev); err != nil || ev.Name != notifyBinding {
		return
	}
	s := c.sessionFor(sessionID)
	if s == nil {
		return
	}
	w := c.watcherOf(s)
	if w == nil {
		return
	}

	var p bindingPayload
	if err := json.Unmarshal([]byte(ev.Payload), &p); err != nil {
		slog.Debug("cdpcontrol bad binding payload", "session_id", sessionID, "error", err)
		return
	}
	switch p.Kind {
	case payloadMutation:
		w.NotifyMutation()
	case payloadInput:
		w.NotifyInput(p.Text)
	}
}

func (c *Client) handleContextsCleared(sessionID string, _ json.RawMessage) {
	s := c.sessionFor(sessionID)
	if s == nil {
		return
	}
	slog.Debug("cdpcontrol execution contexts cleared", "tab_id", s.id)
	c.dropWatcher(s, nil)
}

func (c *Client) handleDetached(sessionID string, params json.RawMessage) {
	var ev target.EventDetachedFromTarget
	if err := json.Unmarshal(params, &ev); err == nil && ev.SessionID != "" {
		sessionID = string(ev.SessionID)
	}
	s := c.sessionFor(sessionID)
	if s == nil {
		return
	}
	c.bySession.Delete(sessionID)
	s.mu.Lock()
	if s.sessionID == sessionID {
		s.sessionID = ""
	}
	s.mu.Unlock()
	slog.Debug("cdpcontrol session detached", "tab_id", s.id, "session_id", sessionID)
	c.dropWatcher(s, nil)
}

// dropWatcher removes the tab's watcher. When only is non-nil the watcher is
// dropped only if it is still the current one.
func (c *Client) dropWatcher(s *tabSession, only *watcher.Watcher) {
	c.mu.Lock()
	w := s.watcher
	if w == nil || (only != nil && w != only) {
		c.mu.Unlock()
		return
	}
	s.watcher = nil
	c.mu.Unlock()
	retire([]*watcher.Watcher{w})
}

// retire closes watchers off the caller's goroutine. Event handlers run on
// the CDP read loop, which a closing watcher may be waiting on.
func retire(ws []*watcher.Watcher) {
	for _, w := range ws {
		go w.Close()
	}
}

// ListTabs returns the eligible tabs ordered by tab ID. Window and
// visibility lookups are best effort.
func (c *Client) ListTabs(ctx context.Context) ([]types.EligibleTab, error) {
	if err := c.refreshTabs(ctx); err != nil {
		slog.Warn("cdpcontrol list tabs failed", "error", err)
		return nil, err
	}

	type candidate struct {
		session  *tabSession
		info     TabInfo
		provider provider.Name
	}
	c.mu.Lock()
	candidates := make([]candidate, 0, len(c.tabs))
	for _, s := range c.tabs {
		if s == nil {
			continue
		}
		s.mu.Lock()
		info := s.info
		s.mu.Unlock()
		if name, ok := provider.Classify(info.URL); ok {
			candidates = append(candidates, candidate{session: s, info: info, provider: name})
		}
	}
	c.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].session.id < candidates[j].session.id
	})

	out := make([]types.EligibleTab, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupParallel)
	for i, cand := range candidates {
		info := cand.info
		title := info.Title
		if strings.TrimSpace(title) == "" {
			title = untitledTabName
		}
		out[i] = types.EligibleTab{
			ID:       info.TabID,
			Provider: string(cand.provider),
			Title:    title,
			URL:      info.URL,
		}
		g.Go(func() error {
			out[i].WindowID = c.windowID(gctx, cand.session)
			out[i].Active = c.visible(gctx, cand.session)
			return nil
		})
	}
	_ = g.Wait()

	slog.Debug("cdpcontrol list tabs", "count", len(out))
	return out, nil
}

func (c *Client) windowID(ctx context.Context, s *tabSession) int {
	s.mu.Lock()
	cached := s.info.WindowID
	targetID := s.info.TargetID
	s.mu.Unlock()
	if cached != 0 {
		return cached
	}

	cdp := c.currentCDP()
	if cdp == nil {
		return 0
	}
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	id, err := cdp.windowForTarget(lookupCtx, targetID)
	if err != nil {
		slog.Debug("cdpcontrol window lookup failed", "target_id", targetID, "error", err)
		return 0
	}
	s.mu.Lock()
	s.info.WindowID = int(id)
	s.mu.Unlock()
	return int(id)
}

func (c *Client) visible(ctx context.Context, s *tabSession) bool {
	cdp := c.currentCDP()
	if cdp == nil {
		return false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	sid, err := c.ensureSession(lookupCtx, cdp, s)
	if err != nil {
		return false
	}
	state, err := cdp.evaluate(lookupCtx, sid, jsVisibility)
	if err != nil {
		slog.Debug("cdpcontrol visibility lookup failed", "tab_id", s.id, "error", err)
		return false
	}
	return state == "visible"
}

// Tab returns what the client knows about a tab.
func (c *Client) Tab(ctx context.Context, id types.TabID) (TabInfo, error) {
	s, err := c.resolveTab(ctx, id)
	if err != nil {
		return TabInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, nil
}

// hasReceiver reports whether a page bundle watcher is attached to the tab.
func (c *Client) hasReceiver(id types.TabID) bool {
	s, found := c.lookupTab(id)
	return found && c.watcherOf(s) != nil
}

// SendMessage delivers msg to the tab's watcher and returns its single reply.
// Without an injected bundle the error is NO_RECEIVER.
func (c *Client) SendMessage(ctx context.Context, id types.TabID, msg types.Message) (types.Reply, error) {
	s, err := c.resolveTab(ctx, id)
	if err != nil {
		return types.Reply{}, err
	}
	w := c.watcherOf(s)
	if w == nil {
		return types.Reply{}, newError(CodeNoReceiver, "no page bundle in tab "+id.String(), nil)
	}

	reply, err := w.Handle(ctx, msg)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, types.ErrNoReceiver) {
		slog.Debug("cdpcontrol receiver gone", "tab_id", id, "error", err)
		c.dropWatcher(s, w)
		if HasCode(err, CodeNoReceiver) {
			return types.Reply{}, err
		}
		return types.Reply{}, newError(CodeNoReceiver, "page bundle gone", err)
	}
	return types.Reply{}, err
}

// Inject installs the page bundle for the provider in the tab and starts a
// fresh watcher, replacing any previous one.
func (c *Client) Inject(ctx context.Context, id types.TabID, name provider.Name) error {
	s, err := c.resolveTab(ctx, id)
	if err != nil {
		return err
	}

	slog.Debug("cdpcontrol inject start", "tab_id", id, "provider", name)
	var out struct {
		Provider string `json:"provider"`
	}
	if err := c.evalOnSession(ctx, s, jsInstall(name), &out); err != nil {
		slog.Warn("cdpcontrol inject failed", "tab_id", id, "provider", name, "error", err)
		return err
	}

	page := &tabPage{client: c, session: s}
	w := watcher.New(id, page, adapter.New(page, name, c.profiles), c.emit, c.watchOpts)

	c.mu.Lock()
	old := s.watcher
	s.watcher = w
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	w.Start(c.life)
	slog.Info("cdpcontrol inject ok", "tab_id", id, "provider", name)
	return nil
}

// OpenTab creates a new page target at url and returns its tab ID.
func (c *Client) OpenTab(ctx context.Context, url string) (types.TabID, error) {
	if strings.TrimSpace(url) == "" {
		return 0, newError(CodeValidation, "url is required", nil)
	}
	if err := c.ensureConnected(ctx); err != nil {
		return 0, err
	}
	cdp := c.currentCDP()
	if cdp == nil {
		return 0, newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	targetID, err := cdp.createTarget(ctx, url)
	if err != nil {
		return 0, newError(CodeCDPUnavailable, "create target failed", err)
	}

	c.mu.Lock()
	id := c.numberLocked(targetID)
	c.mu.Unlock()
	if err := c.refreshTabs(ctx); err != nil {
		slog.Warn("cdpcontrol refresh after open failed", "error", err)
	}
	slog.Info("cdpcontrol tab opened", "tab_id", id, "url", url)
	return id, nil
}

func (c *Client) currentCDP() *rawCDP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cdp
}

// tabPage runs page bundle primitives in one tab.
type tabPage struct {
	client  *Client
	session *tabSession
}

func (p *tabPage) Call(ctx context.Context, fn string, out any, args ...any) error {
	return p.client.evalOnSession(ctx, p.session, jsCall(fn, args), out)
}

func (c *Client) evalOnSession(ctx context.Context, session *tabSession, js string, out any) error {
	cdp := c.currentCDP()
	if cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := c.ensureSession(ctx, cdp, session)
	if err != nil {
		return err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, c.evalTimeout)
	defer evalCancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return newError(CodeEvalTimeout, "evaluation timed out", err)
		}
		slog.Warn("cdpcontrol eval failed", "tab_id", session.id, "error", err)
		if isGone(err) {
			// Reset so the next injection attaches a fresh session.
			session.mu.Lock()
			if session.sessionID == sessionID {
				session.sessionID = ""
			}
			session.mu.Unlock()
			c.bySession.Delete(sessionID)
			return newError(CodeNoReceiver, "tab unreachable", err)
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return newError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// ensureSession returns a CDP session ID for the tab, attaching and enabling
// the Runtime domain and notify binding if needed.
func (c *Client) ensureSession(ctx context.Context, cdp *rawCDP, session *tabSession) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.sessionID != "" {
		return session.sessionID, nil
	}

	targetID := session.info.TargetID
	sid, err := cdp.attachToTarget(ctx, targetID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not allowed") {
			return "", newError(CodePermissionDenied, "attach to target refused", err)
		}
		return "", newError(CodeCDPUnavailable, "attach to target failed", err)
	}
	if err := cdp.enableRuntime(ctx, sid); err != nil {
		return "", newError(CodeEvalFailure, "enable runtime failed", err)
	}
	if err := cdp.addBinding(ctx, sid, notifyBinding); err != nil {
		return "", newError(CodeEvalFailure, "add binding failed", err)
	}

	session.sessionID = sid
	c.bySession.Store(sid, session)
	slog.Debug("cdpcontrol session attached", "target_id", targetID, "session_id", sid)
	return sid, nil
}

func (c *Client) resolveTab(ctx context.Context, id types.TabID) (*tabSession, error) {
	if id <= 0 {
		return nil, newError(CodeValidation, "tab id must be positive", nil)
	}
	if s, found := c.lookupTab(id); found {
		return s, nil
	}

	if err := c.refreshTabs(ctx); err != nil {
		return nil, err
	}

	if s, found := c.lookupTab(id); found {
		return s, nil
	}
	return nil, newError(CodeTabNotFound, "tab not found: "+id.String(), nil)
}

func (c *Client) lookupTab(id types.TabID) (*tabSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	targetID, ok := c.ids[id]
	if !ok {
		return nil, false
	}
	s := c.tabs[targetID]
	return s, s != nil
}

func (c *Client) refreshTabs(ctx context.Context) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	err := c.syncTabsLocked(ctx)
	c.mu.Unlock()
	return err
}

func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	td, err := c.connectLocked(ctx)
	c.mu.Unlock()
	td.run()
	retire(td.watchers)
	return err
}

// numberLocked returns the tab ID of a target, assigning the next one on
// first sight.
func (c *Client) numberLocked(targetID target.ID) types.TabID {
	if id, ok := c.numbers[targetID]; ok {
		return id
	}
	c.nextID++
	c.numbers[targetID] = c.nextID
	c.ids[c.nextID] = targetID
	return c.nextID
}

func (c *Client) syncTabsLocked(ctx context.Context) error {
	if c.cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return newError(CodeCDPUnavailable, "failed to list targets", err)
	}

	expected := make(map[target.ID]TabInfo)
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		expected[t.TargetID] = TabInfo{
			TabID:    c.numberLocked(t.TargetID),
			TargetID: string(t.TargetID),
			URL:      t.URL,
			Title:    t.Title,
		}
	}

	var stale []*watcher.Watcher
	for targetID, session := range c.tabs {
		if _, ok := expected[targetID]; ok {
			continue
		}
		if session != nil && session.watcher != nil {
			stale = append(stale, session.watcher)
		}
		delete(c.tabs, targetID)
	}
	for targetID, id := range c.numbers {
		if _, ok := expected[targetID]; ok {
			continue
		}
		delete(c.numbers, targetID)
		delete(c.ids, id)
	}

	for targetID, info := range expected {
		session := c.tabs[targetID]
		if session != nil {
			session.mu.Lock()
			info.WindowID = session.info.WindowID
			if session.info.URL != info.URL && session.watcher != nil {
				if name, ok := provider.Classify(info.URL); !ok {
					// Navigated away from every provider.
					stale = append(stale, session.watcher)
					session.watcher = nil
				} else if name != session.watcher.Provider() {
					stale = append(stale, session.watcher)
					session.watcher = nil
				}
			}
			session.info = info
			session.mu.Unlock()
			continue
		}
		c.tabs[targetID] = &tabSession{id: info.TabID, info: info}
	}
	retire(stale)

	slog.Debug("cdpcontrol tab sync", "targets", len(targets), "pages", len(c.tabs))
	return nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.cdp != nil
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.reconnect(ctx)
}

func isGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range goneHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
