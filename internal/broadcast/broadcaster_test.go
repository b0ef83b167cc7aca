package broadcast

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow/internal/core"
)

type recordingRelay struct {
	mu      sync.Mutex
	domains []core.Domain
	done    chan struct{}
}

func (r *recordingRelay) Publish(_ context.Context, d core.Domain) error {
	r.mu.Lock()
	r.domains = append(r.domains, d)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

type failingRelay struct{ done chan struct{} }

func (r failingRelay) Publish(context.Context, core.Domain) error {
	defer close(r.done)
	return errors.New("broker down")
}

// lockedBuffer guards the log output written from the relay goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBroadcaster_RelayFailureIsLogged(t *testing.T) {
	out := &lockedBuffer{}
	b := New(core.DomainDebt, slog.New(slog.NewTextHandler(out, nil)))
	relay := failingRelay{done: make(chan struct{})}
	b.SetRelay(relay)

	b.Notify()

	select {
	case <-relay.done:
	case <-time.After(time.Second):
		t.Fatal("relay was not called")
	}
	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "domain=debt") && strings.Contains(s, "broker down")
	}, time.Second, 5*time.Millisecond)
}

func TestBroadcaster_NotifyWithoutSubscribersIsNoop(t *testing.T) {
	b := New(core.DomainDebt, nil)
	assert.NotPanics(t, b.Notify)
	assert.Equal(t, 0, b.Subscribers())
}

func TestBroadcaster_LateSubscriberMissesEarlierSignals(t *testing.T) {
	b := New(core.DomainSaving, nil)
	b.Notify()

	count := 0
	unsub := b.OnUpdate(func() { count++ })
	assert.Equal(t, 0, count)

	b.Notify()
	b.Notify()
	assert.Equal(t, 2, count)

	unsub()
	b.Notify()
	assert.Equal(t, 2, count)
}

func TestBroadcaster_RelayGetsNotifyButNotDeliver(t *testing.T) {
	relay := &recordingRelay{done: make(chan struct{}, 4)}
	b := New(core.DomainBudget, nil)
	b.SetRelay(relay)

	local := 0
	b.OnUpdate(func() { local++ })

	b.Notify()
	select {
	case <-relay.done:
	case <-time.After(time.Second):
		t.Fatal("relay was not called")
	}
	b.Deliver()

	assert.Equal(t, 2, local)
	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Equal(t, []core.Domain{core.DomainBudget}, relay.domains)
}

func TestHub_OnAnyAndDeliver(t *testing.T) {
	h := NewHub(nil)
	var got []core.Domain
	unsub := h.OnAny(func(d core.Domain) { got = append(got, d) })

	h.For(core.DomainExpense).Notify()
	h.Deliver(core.DomainIncome)
	h.Deliver(core.Domain("unknown"))
	unsub()
	h.For(core.DomainExpense).Notify()

	assert.Equal(t, []core.Domain{core.DomainExpense, core.DomainIncome}, got)
	assert.Same(t, h.For(core.DomainDebt), h.For(core.DomainDebt))
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	fired := make(chan struct{}, 4)
	d := Debounce(20*time.Millisecond, func() {
		calls.Add(1)
		fired <- struct{}{}
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debounced function never ran")
	}
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := Debounce(20*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
