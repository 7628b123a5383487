package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/twintype/internal/types"
)

const forwardTimeout = 5 * time.Second

// Source is where composer edits come from.
type Source interface {
	Subscribe(fn func(types.ComposerChanged)) func()
}

// Forwarder receives toasts outside the SSE stream (e.g. ntfy).
type Forwarder interface {
	Forward(ctx context.Context, t types.Toast) error
}

// Relay publishes composer edits, toasts and diagnostics to a Broker. It
// doubles as the panel's sink.
type Relay struct {
	broker  *Broker
	forward Forwarder

	mu          sync.Mutex
	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a relay. forward may be nil.
func New(broker *Broker, forward Forwarder) *Relay {
	return &Relay{broker: broker, forward: forward}
}

// Start subscribes to src. Calling Start again replaces the subscription.
func (r *Relay) Start(src Source) {
	unsub := src.Subscribe(func(ev types.ComposerChanged) {
		r.broker.Emit(FeedComposerChanged, ev)
	})
	r.mu.Lock()
	prev := r.unsubscribe
	r.unsubscribe = unsub
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
	slog.Info("relay started")
}

// Stop drops the subscription and waits for pending forwards.
func (r *Relay) Stop() {
	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	r.wg.Wait()
	slog.Info("relay stopped")
}

// Toast publishes t and forwards it best-effort.
func (r *Relay) Toast(t types.Toast) {
	r.broker.Emit(FeedToast, t)
	if r.forward == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()
		if err := r.forward.Forward(ctx, t); err != nil {
			slog.Debug("relay toast forward failed", "error", err)
		}
	}()
}

// Diagnostic publishes d.
func (r *Relay) Diagnostic(d types.Diagnostic) {
	r.broker.Emit(FeedDiagnostic, d)
}
