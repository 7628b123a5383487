// Package watcher keeps per-tab composer state: readiness tracking driven by
// DOM mutations, input listener reattachment, and the reverse-sync channel
// guarded by a suppression window.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/twintype/internal/adapter"
	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/suppress"
	"github.com/dgnsrekt/twintype/internal/types"
)

const (
	DefaultMutationDebounce = 100 * time.Millisecond
	DefaultSuppressWindow   = 500 * time.Millisecond

	eventQueueSize = 256
)

// ErrClosed is returned for commands sent to a closed watcher. It unwraps to
// types.ErrNoReceiver.
var ErrClosed = fmt.Errorf("watcher closed: %w", types.ErrNoReceiver)

// Emitter receives COMPOSER_CHANGED events. Delivery is best-effort.
type Emitter func(types.ComposerChanged)

// Options tunes the watcher's timers. Zero values take the defaults.
type Options struct {
	MutationDebounce time.Duration
	SuppressWindow   time.Duration
}

// State reports whether the watcher has started observing.
type State int

const (
	Uninitialized State = iota
	Observing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Observing:
		return "observing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	evMutation eventKind = iota
	evInput
	evCommand
)

type event struct {
	kind  eventKind
	text  string
	ctx   context.Context
	msg   types.Message
	reply chan commandResult
}

type commandResult struct {
	reply types.Reply
	err   error
}

// composerState is owned by the run loop.
type composerState struct {
	composer         *adapter.Element
	ready            bool
	lastObservedText string
	suppress         suppress.Window
}

// Watcher serializes everything that happens to one tab's composer on a
// single goroutine, so commands are answered in arrival order.
type Watcher struct {
	tabID   types.TabID
	adapter *adapter.Adapter
	page    adapter.Page
	emit    Emitter
	opts    Options

	events chan event
	stopCh chan struct{}
	doneCh chan struct{}

	mu    sync.Mutex
	state State

	cs composerState
}

// New creates a watcher for a tab. Call Start to begin observing.
func New(tabID types.TabID, page adapter.Page, a *adapter.Adapter, emit Emitter, opts Options) *Watcher {
	if opts.MutationDebounce <= 0 {
		opts.MutationDebounce = DefaultMutationDebounce
	}
	if opts.SuppressWindow <= 0 {
		opts.SuppressWindow = DefaultSuppressWindow
	}
	return &Watcher{
		tabID:   tabID,
		adapter: a,
		page:    page,
		emit:    emit,
		opts:    opts,
		events:  make(chan event, eventQueueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// TabID returns the tab the watcher belongs to.
func (w *Watcher) TabID() types.TabID { return w.tabID }

// Provider returns the provider whose composer is watched.
func (w *Watcher) Provider() provider.Name { return w.adapter.Provider() }

// State returns the lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start enters Observing and runs an initial readiness check. The loop lives
// until Close or ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.state != Uninitialized {
		w.mu.Unlock()
		return
	}
	w.state = Observing
	w.mu.Unlock()

	slog.Debug("watcher start", "tab_id", w.tabID, "provider", w.adapter.Provider())
	go w.run(ctx)
}

// Close stops the loop and waits for it to exit. Pending and later commands
// fail with ErrClosed.
func (w *Watcher) Close() {
	w.mu.Lock()
	switch w.state {
	case Closed:
		w.mu.Unlock()
		return
	case Uninitialized:
		w.state = Closed
		close(w.stopCh)
		close(w.doneCh)
		w.mu.Unlock()
		return
	}
	w.state = Closed
	close(w.stopCh)
	w.mu.Unlock()
	<-w.doneCh
	w.cs.suppress.Disarm()
	slog.Debug("watcher closed", "tab_id", w.tabID)
}

// Done is closed once the loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// NotifyMutation reports a DOM mutation batch. Notices are coalesced by the
// debounce timer, so a full queue drops them.
func (w *Watcher) NotifyMutation() {
	select {
	case w.events <- event{kind: evMutation}:
	default:
	}
}

// NotifyInput reports the composer text after a user input event. It never
// blocks; when the queue is full the notice is dropped.
func (w *Watcher) NotifyInput(text string) {
	select {
	case w.events <- event{kind: evInput, text: text}:
	default:
		slog.Debug("watcher input dropped", "tab_id", w.tabID)
	}
}

// Handle delivers a command and waits for its single reply.
func (w *Watcher) Handle(ctx context.Context, msg types.Message) (types.Reply, error) {
	ev := event{kind: evCommand, ctx: ctx, msg: msg, reply: make(chan commandResult, 1)}
	select {
	case w.events <- ev:
	case <-w.stopCh:
		return types.Reply{}, ErrClosed
	case <-w.doneCh:
		return types.Reply{}, ErrClosed
	case <-ctx.Done():
		return types.Reply{}, ctx.Err()
	}
	select {
	case res := <-ev.reply:
		return res.reply, res.err
	case <-w.doneCh:
		return types.Reply{}, ErrClosed
	case <-ctx.Done():
		return types.Reply{}, ctx.Err()
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	w.checkReady(ctx)

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev := <-w.events:
			switch ev.kind {
			case evMutation:
				if debounce == nil {
					debounce = time.NewTimer(w.opts.MutationDebounce)
				} else {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(w.opts.MutationDebounce)
				}
				fire = debounce.C
			case evInput:
				w.onInput(ev.text)
			case evCommand:
				reply, err := w.handle(ev.ctx, ev.msg)
				ev.reply <- commandResult{reply: reply, err: err}
			}
		case <-fire:
			fire = nil
			w.checkReady(ctx)
		}
	}
}

// checkReady re-runs discovery and reattaches the input listener whenever a
// composer appears or is replaced.
func (w *Watcher) checkReady(ctx context.Context) bool {
	el := w.adapter.FindComposer(ctx)
	found := el != nil

	if found != w.cs.ready {
		if found {
			slog.Info("watcher composer found", "tab_id", w.tabID, "provider", w.adapter.Provider())
		} else {
			slog.Info("watcher composer lost", "tab_id", w.tabID, "provider", w.adapter.Provider())
		}
	}

	if found && (!w.cs.ready || w.cs.composer == nil || w.cs.composer.Ref != el.Ref) {
		if err := w.page.Call(ctx, adapter.FnAttachInput, nil, el.Ref); err != nil {
			slog.Debug("watcher attach input failed", "tab_id", w.tabID, "error", err)
		}
	}

	w.cs.ready = found
	w.cs.composer = el
	return found
}

func (w *Watcher) onInput(text string) {
	if w.cs.suppress.Armed() {
		slog.Debug("watcher input suppressed", "tab_id", w.tabID)
		return
	}
	if text == w.cs.lastObservedText {
		return
	}
	w.cs.lastObservedText = text
	if w.emit == nil {
		return
	}
	w.emit(types.ComposerChanged{TabID: w.tabID, Provider: string(w.adapter.Provider()), Text: text})
}

func (w *Watcher) handle(ctx context.Context, msg types.Message) (types.Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.page.Call(ctx, adapter.FnAlive, nil); err != nil {
		if errors.Is(err, types.ErrNoReceiver) {
			return types.Reply{}, err
		}
		slog.Debug("watcher alive check failed", "tab_id", w.tabID, "error", err)
	}

	provider := string(w.adapter.Provider())
	slog.Debug("watcher command", "tab_id", w.tabID, "type", msg.Type)

	switch msg.Type {
	case types.MsgPing:
		ready := w.checkReady(ctx)
		reply := types.Reply{OK: true, Provider: provider, ComposerReady: ready}
		if !ready {
			reply.Reason = types.ReasonComposerNotFound
		}
		return reply, nil
	case types.MsgSetText:
		w.cs.suppress.Arm(w.opts.SuppressWindow)
		res := w.adapter.SetText(ctx, msg.Text)
		if res.OK {
			w.cs.lastObservedText = msg.Text
		}
		return types.Reply{OK: res.OK, Error: res.Error}, nil
	case types.MsgSend:
		res := w.adapter.Send(ctx)
		return types.Reply{OK: res.OK, Error: res.Error}, nil
	case types.MsgGetText:
		return types.Reply{OK: true, Provider: provider, Text: w.adapter.GetText(ctx)}, nil
	default:
		return types.Reply{OK: false, Error: types.ErrorUnknownMessageType}, nil
	}
}
