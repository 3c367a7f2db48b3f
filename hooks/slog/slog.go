// Package sloghook logs cache and stream events with log/slog.
package sloghook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/stream"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LookupEvery   uint64
	FallbackEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lookupCtr   atomic.Uint64
	fallbackCtr atomic.Uint64
}

var (
	_ tiercache.Hooks = (*Hooks)(nil)
	_ stream.Hooks    = (*Hooks)(nil)
)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(tier tiercache.Tier, hit bool) {
	if h.l == nil || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug("tiercache.lookup",
		"tier", string(tier),
		"hit", hit)
}

func (h *Hooks) DiskDecodeFallback(key string) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Debug("tiercache.disk_decode_fallback",
		"key", h.redact(key))
}

func (h *Hooks) DiskReadError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tiercache.disk_read_error",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) AsyncError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tiercache.async_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) Promoted(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tiercache.promoted",
		"key", h.redact(key))
}

func (h *Hooks) StreamFinished(ok bool, status, received int, elapsed time.Duration) {
	if h.l == nil {
		return
	}
	level := slog.LevelInfo
	if !ok {
		level = slog.LevelWarn
	}
	h.l.Log(context.Background(), level, "stream.finished",
		"ok", ok,
		"status", status,
		"received", received,
		"elapsed", elapsed)
}
