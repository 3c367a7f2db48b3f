// usage:
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{
//	    LookupEvery:   100, // sample ~every 100th Get
//	    FallbackEvery: 1,
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := tiercache.New(tiercache.Options{
//	    Namespace: "chat",
//	    Disk:      store,
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/stream"
)

// Hooks moves event delivery off the caller's goroutine. Events are dropped
// when the queue is full. StreamFinished is forwarded only when inner also
// implements stream.Hooks.
type Hooks struct {
	inner   tiercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var (
	_ tiercache.Hooks = (*Hooks)(nil)
	_ stream.Hooks    = (*Hooks)(nil)
)

func New(inner tiercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	if inner == nil {
		inner = tiercache.NopHooks{}
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost a race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Lookup(t tiercache.Tier, hit bool) { h.try(func() { h.inner.Lookup(t, hit) }) }
func (h *Hooks) DiskDecodeFallback(k string)       { h.try(func() { h.inner.DiskDecodeFallback(k) }) }
func (h *Hooks) Promoted(k string)                 { h.try(func() { h.inner.Promoted(k) }) }
func (h *Hooks) DiskReadError(k string, err error) {
	h.try(func() { h.inner.DiskReadError(k, err) })
}
func (h *Hooks) AsyncError(op, k string, err error) {
	h.try(func() { h.inner.AsyncError(op, k, err) })
}
func (h *Hooks) StreamFinished(ok bool, status, n int, d time.Duration) {
	sh, isStream := h.inner.(stream.Hooks)
	if !isStream {
		return
	}
	h.try(func() { sh.StreamFinished(ok, status, n, d) })
}
