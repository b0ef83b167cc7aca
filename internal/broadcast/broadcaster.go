// Package broadcast carries fire-and-forget "data changed" signals per
// domain so that widgets can refresh without being wired to whoever
// performed the mutation.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finflow/internal/core"
	applog "finflow/internal/log"
	"finflow/internal/stream"
)

// Relay forwards local signals to other processes.
type Relay interface {
	Publish(ctx context.Context, domain core.Domain) error
}

const relayTimeout = 5 * time.Second

// Broadcaster emits unit signals for one domain. There is no buffering and
// no replay: subscribers only see signals emitted after they subscribed.
type Broadcaster struct {
	domain core.Domain
	sig    *stream.Subject[struct{}]
	logger *slog.Logger

	mu    sync.RWMutex
	relay Relay
}

// New creates a broadcaster for domain. Relay failures are logged to
// logger; nil means slog.Default().
func New(domain core.Domain, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		domain: domain,
		sig:    stream.NewSubject[struct{}](),
		logger: logger,
	}
}

// Domain returns the domain this broadcaster signals for.
func (b *Broadcaster) Domain() core.Domain {
	return b.domain
}

// SetRelay attaches a relay that receives every Notify.
func (b *Broadcaster) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Notify signals all current subscribers and forwards the signal to the
// relay, if any. With no subscribers it is a no-op locally.
func (b *Broadcaster) Notify() {
	b.Deliver()

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		if err := relay.Publish(ctx, b.domain); err != nil {
			b.logger.Warn("Failed to relay update signal",
				applog.FieldOperation, applog.OpRelay,
				applog.FieldDomain, string(b.domain),
				applog.FieldError, err)
		}
	}()
}

// Deliver signals local subscribers only. Used for signals arriving from the
// relay so they are not published back.
func (b *Broadcaster) Deliver() {
	b.sig.Next(struct{}{})
}

// OnUpdate subscribes fn to future signals.
func (b *Broadcaster) OnUpdate(fn func()) (unsubscribe func()) {
	return b.sig.Subscribe(func(struct{}) { fn() })
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	return b.sig.Len()
}

// Hub owns one broadcaster per domain.
type Hub struct {
	mu     sync.Mutex
	byDom  map[core.Domain]*Broadcaster
	relay  Relay
	logger *slog.Logger
}

// NewHub creates a hub with broadcasters for every known domain. logger is
// handed to each of them.
func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{byDom: make(map[core.Domain]*Broadcaster), logger: logger}
	for _, d := range core.Domains() {
		h.byDom[d] = New(d, logger)
	}
	return h
}

// For returns the broadcaster for domain, creating it on first use.
func (h *Hub) For(domain core.Domain) *Broadcaster {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.byDom[domain]
	if !ok {
		b = New(domain, h.logger)
		if h.relay != nil {
			b.SetRelay(h.relay)
		}
		h.byDom[domain] = b
	}
	return b
}

// SetRelay attaches r to every broadcaster.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
	for _, b := range h.byDom {
		b.SetRelay(r)
	}
}

// Deliver signals local subscribers of domain. Unknown domains are ignored.
func (h *Hub) Deliver(domain core.Domain) {
	h.mu.Lock()
	b, ok := h.byDom[domain]
	h.mu.Unlock()
	if ok {
		b.Deliver()
	}
}

// OnAny subscribes fn to signals of every domain currently in the hub.
func (h *Hub) OnAny(fn func(core.Domain)) (unsubscribe func()) {
	h.mu.Lock()
	var unsubs []func()
	for d, b := range h.byDom {
		d := d
		unsubs = append(unsubs, b.OnUpdate(func() { fn(d) }))
	}
	h.mu.Unlock()

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
