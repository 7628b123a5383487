// Package gateway routes panel requests to per-tab watchers and injects the
// page bundle on demand. It keeps no state besides its listeners, and no raw
// error leaves it: every outcome is an {ok,error} or {ready,reason} value.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/types"
)

// DefaultSettle is how long injection is given to initialize before the
// follow-up ping.
const DefaultSettle = 50 * time.Millisecond

// Tabs is the browser-side surface the gateway drives.
type Tabs interface {
	ListTabs(ctx context.Context) ([]types.EligibleTab, error)
	SendMessage(ctx context.Context, id types.TabID, msg types.Message) (types.Reply, error)
	Inject(ctx context.Context, id types.TabID, name provider.Name) error
	OpenTab(ctx context.Context, url string) (types.TabID, error)
	OnComposerChanged(fn func(types.ComposerChanged))
}

type Gateway struct {
	tabs   Tabs
	settle time.Duration

	mu        sync.RWMutex
	listeners map[int]func(types.ComposerChanged)
	nextSub   int
}

// New creates a gateway over tabs and subscribes to its composer events.
// settle <= 0 selects DefaultSettle.
func New(tabs Tabs, settle time.Duration) *Gateway {
	if settle <= 0 {
		settle = DefaultSettle
	}
	g := &Gateway{
		tabs:      tabs,
		settle:    settle,
		listeners: make(map[int]func(types.ComposerChanged)),
	}
	tabs.OnComposerChanged(g.publish)
	return g
}

// Subscribe registers a COMPOSER_CHANGED listener and returns its
// cancellation. Listeners must not block.
func (g *Gateway) Subscribe(fn func(types.ComposerChanged)) func() {
	g.mu.Lock()
	g.nextSub++
	id := g.nextSub
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gateway) publish(ev types.ComposerChanged) {
	g.mu.RLock()
	fns := make([]func(types.ComposerChanged), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()

	slog.Debug("gateway composer changed", "tab_id", ev.TabID, "provider", ev.Provider, "len", types.TextLength(ev.Text))
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Debug("gateway listener panicked", "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}

// ListEligibleTabs enumerates provider tabs. Enumeration failures degrade to
// an empty list.
func (g *Gateway) ListEligibleTabs(ctx context.Context) []types.EligibleTab {
	tabs, err := g.tabs.ListTabs(ctx)
	if err != nil {
		slog.Warn("gateway list tabs failed", "error", err)
		return []types.EligibleTab{}
	}
	out := make([]types.EligibleTab, 0, len(tabs))
	for _, t := range tabs {
		if _, ok := provider.Classify(t.URL); ok {
			out = append(out, t)
		}
	}
	return out
}

// Ping asks the tab's watcher whether its composer is ready, injecting the
// page bundle once if nothing answers. An empty tabURL is looked up.
func (g *Gateway) Ping(ctx context.Context, id types.TabID, tabURL string) types.PingResult {
	if tabURL == "" {
		tabURL = g.lookupURL(ctx, id)
	}
	return g.ping(ctx, id, tabURL, true)
}

func (g *Gateway) ping(ctx context.Context, id types.TabID, tabURL string, retry bool) types.PingResult {
	reply, err := g.tabs.SendMessage(ctx, id, types.Message{Type: types.MsgPing})
	if err != nil {
		slog.Debug("gateway ping failed", "tab_id", id, "retry", retry, "error", err)
		if errors.Is(err, types.ErrNoReceiver) {
			if retry {
				return g.injectAndRetryPing(ctx, id, tabURL)
			}
			return types.PingResult{Ready: false, Reason: types.ReasonInjectionFailed}
		}
		return types.PingResult{Ready: false, Reason: Reason(err)}
	}

	if reply.OK {
		res := types.PingResult{Ready: reply.ComposerReady}
		if !reply.ComposerReady {
			res.Reason = reply.Reason
			if res.Reason == "" {
				res.Reason = types.ReasonComposerNotFound
			}
		}
		return res
	}
	reason := reply.Reason
	if reason == "" {
		reason = types.ReasonContentScriptError
	}
	return types.PingResult{Ready: false, Reason: reason}
}

func (g *Gateway) injectAndRetryPing(ctx context.Context, id types.TabID, tabURL string) types.PingResult {
	name, ok := provider.Classify(tabURL)
	if !ok {
		slog.Info("gateway inject skipped", "tab_id", id, "reason", types.ReasonUnknownProvider)
		return types.PingResult{Ready: false, Reason: types.ReasonUnknownProvider}
	}

	slog.Info("gateway injecting page bundle", "tab_id", id, "provider", name)
	if err := g.tabs.Inject(ctx, id, name); err != nil {
		slog.Warn("gateway injection failed", "tab_id", id, "provider", name, "error", err)
		return types.PingResult{Ready: false, Reason: types.ReasonInjectionFailed}
	}

	select {
	case <-time.After(g.settle):
	case <-ctx.Done():
		return types.PingResult{Ready: false, Reason: types.ReasonInjectionFailed}
	}
	return g.ping(ctx, id, tabURL, false)
}

// SetText writes text into the tab's composer. A missing receiver triggers
// one injection and, when the composer is then ready, one more attempt.
func (g *Gateway) SetText(ctx context.Context, id types.TabID, tabURL, text string) types.Result {
	if types.TextLength(text) > types.MaxTextLength {
		return types.Result{OK: false, Error: types.ReasonTextTooLong}
	}

	msg := types.Message{Type: types.MsgSetText, Text: text}
	reply, err := g.tabs.SendMessage(ctx, id, msg)
	if err == nil {
		return types.Result{OK: reply.OK, Error: reply.Error}
	}
	if !errors.Is(err, types.ErrNoReceiver) {
		slog.Warn("gateway set text failed", "tab_id", id, "error", err)
		return types.Result{OK: false, Error: Reason(err)}
	}

	if tabURL == "" {
		tabURL = g.lookupURL(ctx, id)
	}
	ping := g.injectAndRetryPing(ctx, id, tabURL)
	if !ping.Ready {
		slog.Info("gateway set text gave up", "tab_id", id, "reason", ping.Reason)
		return types.Result{OK: false, Error: types.ErrorInjectionFailed}
	}

	reply, err = g.tabs.SendMessage(ctx, id, msg)
	if err != nil {
		slog.Warn("gateway set text retry failed", "tab_id", id, "error", err)
		return types.Result{OK: false, Error: Reason(err)}
	}
	return types.Result{OK: reply.OK, Error: reply.Error}
}

// SendCommand triggers the provider's send action. No injection is tried.
func (g *Gateway) SendCommand(ctx context.Context, id types.TabID) types.Result {
	reply, err := g.tabs.SendMessage(ctx, id, types.Message{Type: types.MsgSend})
	if err != nil {
		slog.Warn("gateway send failed", "tab_id", id, "error", err)
		return types.Result{OK: false, Error: Reason(err)}
	}
	return types.Result{OK: reply.OK, Error: reply.Error}
}

// GetText reads the tab's composer text. No injection is tried.
func (g *Gateway) GetText(ctx context.Context, id types.TabID) types.Reply {
	reply, err := g.tabs.SendMessage(ctx, id, types.Message{Type: types.MsgGetText})
	if err != nil {
		return types.Reply{OK: false, Error: Reason(err)}
	}
	return reply
}

// OpenProvider opens a new tab on the provider's start page.
func (g *Gateway) OpenProvider(ctx context.Context, name provider.Name) (types.TabID, error) {
	url := provider.StartURL(name)
	if url == "" {
		return 0, types.ErrUnknownProvider
	}
	return g.tabs.OpenTab(ctx, url)
}

// Handle dispatches a panel-level protocol message and returns its reply
// value.
func (g *Gateway) Handle(ctx context.Context, msg types.Message) any {
	switch msg.Type {
	case types.MsgGetEligibleTabs:
		return types.TabsReply{Tabs: g.ListEligibleTabs(ctx)}
	case types.MsgPingTab:
		return g.Ping(ctx, msg.TabID, msg.TabURL)
	case types.MsgSetText:
		return g.SetText(ctx, msg.TabID, msg.TabURL, msg.Text)
	case types.MsgSendCommand:
		return g.SendCommand(ctx, msg.TabID)
	case types.MsgGetText:
		return g.GetText(ctx, msg.TabID)
	default:
		return types.Result{OK: false, Error: types.ErrorUnknownMessageType}
	}
}

func (g *Gateway) lookupURL(ctx context.Context, id types.TabID) string {
	if tab, ok := types.FindTab(g.ListEligibleTabs(ctx), id); ok {
		return tab.URL
	}
	return ""
}

// Reason maps a delivery failure to its stable reason string.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrContextInvalidated):
		return types.ReasonExtensionReloaded
	case errors.Is(err, types.ErrPermissionDenied):
		return types.ReasonPermissionDenied
	case errors.Is(err, types.ErrUnknownProvider):
		return types.ReasonUnknownProvider
	case errors.Is(err, types.ErrInjectionFailed):
		return types.ReasonInjectionFailed
	default:
		return types.ReasonNoReceiver
	}
}
