package tiercache

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/disk"
	"github.com/unkn0wn-root/tiercache/internal/wire"
	pr "github.com/unkn0wn-root/tiercache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu      sync.Mutex
	m       map[string]memEntry
	failGet error
	failSet error
	reject  bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failGet != nil {
		return nil, false, p.failGet
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSet != nil {
		return false, p.failSet
	}
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}
func (p *memProvider) Close(_ context.Context) error { return nil }

// failingDisk wraps a disk.Store and fails reads on demand.
type failingDisk struct {
	*disk.Mem
	failGet error
}

func (d *failingDisk) Get(ctx context.Context, key string) (string, bool, error) {
	if d.failGet != nil {
		return "", false, d.failGet
	}
	return d.Mem.Get(ctx, key)
}

type recordingHooks struct {
	NopHooks
	mu        sync.Mutex
	lookups   []string
	fallbacks []string
	readErrs  int
	asyncErrs []string
	promoted  []string
}

func (h *recordingHooks) Lookup(tier Tier, hit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !hit {
		h.lookups = append(h.lookups, "miss")
		return
	}
	h.lookups = append(h.lookups, string(tier))
}
func (h *recordingHooks) DiskDecodeFallback(key string) {
	h.mu.Lock()
	h.fallbacks = append(h.fallbacks, key)
	h.mu.Unlock()
}
func (h *recordingHooks) DiskReadError(string, error) {
	h.mu.Lock()
	h.readErrs++
	h.mu.Unlock()
}
func (h *recordingHooks) AsyncError(op, key string, _ error) {
	h.mu.Lock()
	h.asyncErrs = append(h.asyncErrs, op+":"+key)
	h.mu.Unlock()
}
func (h *recordingHooks) Promoted(key string) {
	h.mu.Lock()
	h.promoted = append(h.promoted, key)
	h.mu.Unlock()
}

type message struct {
	Role    string `json:"role" msgpack:"role"`
	Message string `json:"message" msgpack:"message"`
}

func newTestCache(t *testing.T, optsOpt func(*Options)) *Cache {
	t.Helper()
	opts := Options{Namespace: "test"}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return cc
}

func diskKeys(t *testing.T, cc *Cache) []string {
	t.Helper()
	ctx := context.Background()
	n, err := cc.disk.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	var out []string
	for i := 0; i < n; i++ {
		k, _, _ := cc.disk.Key(ctx, i)
		out = append(out, k)
	}
	return out
}

// ==============================
// Facade and storage modes
// ==============================

func TestSetGetByMode(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	// memory
	if err := cc.Set(ctx, "m", "v", Memory); err != nil {
		t.Fatalf("Set memory: %v", err)
	}
	if v, ok := cc.Get(ctx, "m"); !ok || v != "v" {
		t.Fatalf("Get after memory set: v=%v ok=%v", v, ok)
	}
	if cc.HasDisk(ctx, "m") {
		t.Fatalf("memory mode must not write disk")
	}

	// diskOnly
	if err := cc.Set(ctx, "d", "v", DiskOnly); err != nil {
		t.Fatalf("Set diskOnly: %v", err)
	}
	if _, ok := cc.GetMemory("d"); ok {
		t.Fatalf("diskOnly must not write memory")
	}
	if v, ok := cc.GetDisk(ctx, "d"); !ok || v != "v" {
		t.Fatalf("GetDisk after diskOnly: v=%v ok=%v", v, ok)
	}

	// disk => both
	if err := cc.Set(ctx, "b", "v", Disk); err != nil {
		t.Fatalf("Set disk: %v", err)
	}
	if !cc.HasMemory("b") || !cc.HasDisk(ctx, "b") {
		t.Fatalf("disk mode must write both tiers")
	}
}

func TestZeroModeIsMemory(t *testing.T) {
	var m StorageMode
	if m != Memory || m.String() != "memory" {
		t.Fatalf("zero StorageMode should be memory, got %v", m)
	}
}

func TestSetInvalidMode(t *testing.T) {
	cc := newTestCache(t, nil)
	err := cc.Set(context.Background(), "k", 1, StorageMode(42))
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if cc.HasMemory("k") {
		t.Fatalf("invalid mode must not write")
	}
}

func TestGetPrefersMemoryOverDisk(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	if err := cc.SetDisk(ctx, "k", "disk"); err != nil {
		t.Fatalf("SetDisk: %v", err)
	}
	cc.SetMemory("k", "memory")
	if v, _ := cc.Get(ctx, "k"); v != "memory" {
		t.Fatalf("memory tier must win, got %v", v)
	}
}

func TestGetMissOnBothTiers(t *testing.T) {
	cc := newTestCache(t, nil)
	if v, ok := cc.Get(context.Background(), "nope"); ok || v != nil {
		t.Fatalf("expected miss, got v=%v ok=%v", v, ok)
	}
}

func TestStoredNilIsNotAMiss(t *testing.T) {
	cc := newTestCache(t, nil)
	cc.SetMemory("k", nil)
	if _, ok := cc.Get(context.Background(), "k"); !ok {
		t.Fatalf("stored nil must be distinguishable from absent")
	}
}

// ==============================
// Disk tier
// ==============================

func TestDiskRoundTripDeepEqual(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	values := []any{
		"hello",
		float64(42),
		true,
		nil,
		[]any{"a", float64(1), false},
		map[string]any{"chat": []any{map[string]any{"role": "user", "message": "hi"}}},
	}
	for i, v := range values {
		key := "k" + string(rune('a'+i))
		if err := cc.SetDisk(ctx, key, v); err != nil {
			t.Fatalf("SetDisk %v: %v", v, err)
		}
		got, ok := cc.GetDisk(ctx, key)
		if !ok || !reflect.DeepEqual(got, v) {
			t.Fatalf("round trip mismatch: got=%#v want=%#v", got, v)
		}
	}
}

func TestDiskAsTyped(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	want := []message{{Role: "user", Message: "hi"}, {Role: "assistant", Message: "hello"}}
	if err := cc.SetDisk(ctx, "chat", want); err != nil {
		t.Fatalf("SetDisk: %v", err)
	}
	got, ok, err := DiskAs[[]message](ctx, cc, "chat")
	if err != nil || !ok || !reflect.DeepEqual(got, want) {
		t.Fatalf("DiskAs: got=%v ok=%v err=%v", got, ok, err)
	}

	if _, ok, err := DiskAs[[]message](ctx, cc, "missing"); err != nil || ok {
		t.Fatalf("DiskAs miss: ok=%v err=%v", ok, err)
	}

	if err := cc.disk.Set(ctx, "raw", "hello"); err != nil {
		t.Fatalf("seed raw: %v", err)
	}
	if s, ok, err := DiskAs[string](ctx, cc, "raw"); err != nil || !ok || s != "hello" {
		t.Fatalf("DiskAs[string] fallback: s=%q ok=%v err=%v", s, ok, err)
	}
	if _, _, err := DiskAs[[]message](ctx, cc, "raw"); err == nil {
		t.Fatalf("DiskAs into a struct type must fail on non-JSON text")
	}
}

func TestDiskAsStringRejectsOtherJSON(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	cc := newTestCache(t, func(o *Options) { o.Hooks = hooks })

	if err := cc.SetDisk(ctx, "n", 123); err != nil {
		t.Fatalf("SetDisk: %v", err)
	}
	_, _, err := DiskAs[string](ctx, cc, "n")
	var te *TierError
	if !errors.As(err, &te) || te.Tier != TierDisk {
		t.Fatalf("expected disk TierError for a number read as string, got %v", err)
	}
	if len(hooks.fallbacks) != 0 {
		t.Fatalf("valid JSON must not report a decode fallback, got %v", hooks.fallbacks)
	}

	if err := cc.SetDisk(ctx, "s", "123"); err != nil {
		t.Fatalf("SetDisk: %v", err)
	}
	if s, ok, err := DiskAs[string](ctx, cc, "s"); err != nil || !ok || s != "123" {
		t.Fatalf("DiskAs[string] = %q ok=%v err=%v", s, ok, err)
	}
}

func TestDiskMalformedFallsBackToRawString(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	cc := newTestCache(t, func(o *Options) { o.Hooks = hooks })

	if err := cc.disk.Set(ctx, "x", "hello"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	v, ok := cc.GetDisk(ctx, "x")
	if !ok || v != "hello" {
		t.Fatalf("expected raw fallback, got v=%v ok=%v", v, ok)
	}
	if len(hooks.fallbacks) != 1 || hooks.fallbacks[0] != "x" {
		t.Fatalf("expected one fallback hook, got %v", hooks.fallbacks)
	}
}

func TestSetDiskPropagatesErrors(t *testing.T) {
	ctx := context.Background()

	cc := newTestCache(t, nil)
	err := cc.SetDisk(ctx, "fn", func() {})
	var te *TierError
	if !errors.As(err, &te) || te.Tier != TierDisk || te.Op != "set" {
		t.Fatalf("expected disk set TierError on unencodable value, got %v", err)
	}

	small := newTestCache(t, func(o *Options) { o.Disk = disk.NewMemWithQuota(8) })
	err = small.SetDisk(ctx, "big", strings.Repeat("x", 64))
	if !errors.Is(err, disk.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	// disk mode writes memory first; the failed disk write leaves it there
	err = small.Set(ctx, "big", strings.Repeat("x", 64), Disk)
	if !errors.Is(err, disk.ErrQuotaExceeded) || !small.HasMemory("big") {
		t.Fatalf("expected quota error with memory copy kept, err=%v", err)
	}
}

func TestDiskReadErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	fd := &failingDisk{Mem: disk.NewMem()}
	cc := newTestCache(t, func(o *Options) {
		o.Disk = fd
		o.Hooks = hooks
	})

	if err := cc.SetDisk(ctx, "k", 1); err != nil {
		t.Fatalf("SetDisk: %v", err)
	}
	fd.failGet = errors.New("disk unplugged")

	if _, ok := cc.GetDisk(ctx, "k"); ok {
		t.Fatalf("read error must read as miss")
	}
	if cc.HasDisk(ctx, "k") {
		t.Fatalf("HasDisk must be false on read error")
	}
	if _, ok := cc.Get(ctx, "k"); ok {
		t.Fatalf("Get must be a miss on read error")
	}
	if hooks.readErrs != 3 {
		t.Fatalf("expected 3 read error hooks, got %d", hooks.readErrs)
	}
}

func TestClearDiskWithPrefix(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	for _, k := range []string{"session_a", "session_b_keep", "other"} {
		if err := cc.SetDisk(ctx, k, k); err != nil {
			t.Fatalf("SetDisk %s: %v", k, err)
		}
	}
	n, err := cc.ClearDiskWithPrefix(ctx, "session_", "keep")
	if err != nil {
		t.Fatalf("ClearDiskWithPrefix: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	got := diskKeys(t, cc)
	if !reflect.DeepEqual(got, []string{"session_b_keep", "other"}) {
		t.Fatalf("unexpected remaining keys %v", got)
	}
}

func TestClearDiskWithPrefixAdjacentMatches(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	// consecutive matches would be skipped by a forward index walk
	for _, k := range []string{"p1", "p2", "p3", "q", "p4"} {
		_ = cc.SetDisk(ctx, k, 0)
	}
	n, err := cc.ClearDiskWithPrefix(ctx, "p", "")
	if err != nil || n != 4 {
		t.Fatalf("expected 4 removals, n=%d err=%v", n, err)
	}
	if got := diskKeys(t, cc); !reflect.DeepEqual(got, []string{"q"}) {
		t.Fatalf("unexpected remaining keys %v", got)
	}
}

func TestClearDiskLeavesMemoryAlone(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)
	_ = cc.Set(ctx, "session_x", 1, Disk)
	if _, err := cc.ClearDiskWithPrefix(ctx, "session_", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cc.HasDisk(ctx, "session_x") || !cc.HasMemory("session_x") {
		t.Fatalf("clear must only touch the disk tier")
	}
}

// ==============================
// Read promotion and idempotence
// ==============================

func TestGetDoesNotPromoteByDefault(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	cc := newTestCache(t, func(o *Options) { o.Hooks = hooks })

	_ = cc.Set(ctx, "k", map[string]any{"a": "b"}, DiskOnly)
	v1, ok1 := cc.Get(ctx, "k")
	v2, ok2 := cc.Get(ctx, "k")
	if !ok1 || !ok2 || !reflect.DeepEqual(v1, v2) {
		t.Fatalf("repeated Get must agree: %v/%v %v/%v", v1, ok1, v2, ok2)
	}
	if cc.HasMemory("k") {
		t.Fatalf("Get must not write memory without PromoteDiskHits")
	}
	if !reflect.DeepEqual(hooks.lookups, []string{"disk", "disk"}) {
		t.Fatalf("both reads should come from disk, got %v", hooks.lookups)
	}
	if got := diskKeys(t, cc); len(got) != 1 {
		t.Fatalf("Get must not mutate disk, keys=%v", got)
	}
}

func TestGetPromotesWhenEnabled(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	cc := newTestCache(t, func(o *Options) {
		o.PromoteDiskHits = true
		o.Hooks = hooks
	})

	_ = cc.Set(ctx, "k", "v", DiskOnly)
	if _, ok := cc.Get(ctx, "k"); !ok {
		t.Fatalf("expected disk hit")
	}
	if v, ok := cc.GetMemory("k"); !ok || v != "v" {
		t.Fatalf("expected promoted value in memory, v=%v ok=%v", v, ok)
	}
	_, _ = cc.Get(ctx, "k")
	if !reflect.DeepEqual(hooks.lookups, []string{"disk", "memory"}) {
		t.Fatalf("second read should come from memory, got %v", hooks.lookups)
	}
	if !reflect.DeepEqual(hooks.promoted, []string{"k"}) {
		t.Fatalf("expected one promotion, got %v", hooks.promoted)
	}
}

// ==============================
// Cookies
// ==============================

func TestCookieRoundTrip(t *testing.T) {
	cc := newTestCache(t, nil)
	cc.SetCookie("tok", "abc", 1)
	if v, ok := cc.GetCookie("tok"); !ok || v != "abc" {
		t.Fatalf("GetCookie: v=%q ok=%v", v, ok)
	}
	cc.ClearCookie("tok")
	if _, ok := cc.GetCookie("tok"); ok {
		t.Fatalf("expected cookie to be cleared")
	}
}

// ==============================
// Async tier
// ==============================

func TestAsyncUnavailable(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)
	if err := cc.SetAsync(ctx, "k", 1); !errors.Is(err, ErrAsyncUnavailable) {
		t.Fatalf("expected ErrAsyncUnavailable, got %v", err)
	}
	if _, _, err := cc.GetAsync(ctx, "k"); !errors.Is(err, ErrAsyncUnavailable) {
		t.Fatalf("expected ErrAsyncUnavailable, got %v", err)
	}
}

func TestAsyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, func(o *Options) { o.Async = mp })

	if _, ok, err := cc.GetAsync(ctx, "conv"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	v := map[string]any{"title": "chat", "turns": []any{"hi", "hello"}}
	if err := cc.SetAsync(ctx, "conv", v); err != nil {
		t.Fatalf("SetAsync: %v", err)
	}
	got, ok, err := cc.GetAsync(ctx, "conv")
	if err != nil || !ok {
		t.Fatalf("GetAsync: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("round trip mismatch: got=%#v want=%#v", got, v)
	}

	if _, ok := mp.m["async:test:conv"]; !ok {
		t.Fatalf("expected namespaced async key, have %v", mp.m)
	}
	// async writes never touch the other tiers
	if cc.HasMemory("conv") || cc.HasDisk(ctx, "conv") {
		t.Fatalf("async write leaked into another tier")
	}
}

func TestAsyncTypedWithCodecs(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, func(o *Options) { o.Async = newMemProvider() })

	want := message{Role: "user", Message: "hi"}
	if err := SetAsyncAs[message](ctx, cc, "m", want, c.MustCBOR[message](true)); err != nil {
		t.Fatalf("SetAsyncAs: %v", err)
	}
	got, ok, err := AsyncAs[message](ctx, cc, "m", c.MustCBOR[message](true))
	if err != nil || !ok || got != want {
		t.Fatalf("AsyncAs: got=%v ok=%v err=%v", got, ok, err)
	}

	// default async codec is msgpack; reading a CBOR entry with it must fail loudly
	if _, _, err := cc.GetAsync(ctx, "m"); !errors.Is(err, ErrCodecMismatch) {
		t.Fatalf("expected ErrCodecMismatch, got %v", err)
	}
}

func TestAsyncErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recordingHooks{}
	cc := newTestCache(t, func(o *Options) {
		o.Async = mp
		o.Hooks = hooks
	})

	boom := errors.New("storage unavailable")
	mp.failSet = boom
	if err := cc.SetAsync(ctx, "k", 1); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	mp.failSet = nil

	mp.reject = true
	if err := cc.SetAsync(ctx, "k", 1); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	mp.reject = false

	mp.failGet = boom
	if _, _, err := cc.GetAsync(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("expected provider error on get, got %v", err)
	}
	mp.failGet = nil

	// foreign bytes under our key
	mp.m["async:test:foreign"] = memEntry{v: []byte("not a frame")}
	if _, _, err := cc.GetAsync(ctx, "foreign"); !errors.Is(err, wire.ErrCorrupt) {
		t.Fatalf("expected wire.ErrCorrupt, got %v", err)
	}

	if len(hooks.asyncErrs) != 4 {
		t.Fatalf("expected 4 async error hooks, got %v", hooks.asyncErrs)
	}
}

func TestAsyncTTL(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, func(o *Options) {
		o.Async = newMemProvider()
		o.AsyncTTL = 20 * time.Millisecond
	})
	if err := cc.SetAsync(ctx, "k", "v"); err != nil {
		t.Fatalf("SetAsync: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, err := cc.GetAsync(ctx, "k"); err != nil || ok {
		t.Fatalf("expected expiry, ok=%v err=%v", ok, err)
	}
}

func TestNegativeAsyncTTL(t *testing.T) {
	if _, err := New(Options{AsyncTTL: -time.Second}); err == nil {
		t.Fatalf("expected error on negative ttl")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	cc, err := New(Options{Async: newMemProvider()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := cc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cc.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
