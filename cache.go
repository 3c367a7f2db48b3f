package tiercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	c "github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/cookie"
	"github.com/unkn0wn-root/tiercache/disk"
	"github.com/unkn0wn-root/tiercache/internal/wire"
	"github.com/unkn0wn-root/tiercache/memory"
	pr "github.com/unkn0wn-root/tiercache/provider"
)

const defaultNamespace = "tiercache"

// Cache is the tier facade. It is safe for concurrent use; writers to the same
// key race and the last write wins, as with the stores underneath.
type Cache struct {
	ns         string
	mem        memory.Store
	disk       disk.Store
	cookies    *cookie.Jar
	async      pr.Provider
	asyncCodec c.Codec[any]
	asyncTTL   time.Duration
	promote    bool
	log        Logger
	hooks      Hooks
	now        func() time.Time

	closeOnce sync.Once
	closeErr  error
}

func newCache(opts Options) (*Cache, error) {
	if opts.AsyncTTL < 0 {
		return nil, fmt.Errorf("tiercache: negative async ttl %v", opts.AsyncTTL)
	}
	cc := &Cache{
		ns:       coalesce(opts.Namespace, defaultNamespace),
		mem:      opts.Memory,
		disk:     opts.Disk,
		cookies:  opts.Cookies,
		async:    opts.Async,
		asyncTTL: opts.AsyncTTL,
		promote:  opts.PromoteDiskHits,
		now:      time.Now,
	}

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.asyncCodec = coalesce[c.Codec[any]](opts.AsyncCodec, c.Msgpack[any]{})
	if cc.mem == nil {
		cc.mem = memory.NewMap()
	}
	if cc.disk == nil {
		cc.disk = disk.NewMem()
	}
	if cc.cookies == nil {
		cc.cookies = cookie.NewJar()
	}
	return cc, nil
}

// Close releases every tier. Safe to call more than once.
func (cc *Cache) Close(ctx context.Context) error {
	cc.closeOnce.Do(func() {
		var errs []error
		if err := cc.mem.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close memory tier: %w", err))
		}
		if err := cc.disk.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close disk tier: %w", err))
		}
		if cc.async != nil {
			if err := cc.async.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close async tier: %w", err))
			}
		}
		cc.closeErr = errors.Join(errs...)
	})
	return cc.closeErr
}

// ---- memory tier ----

// SetMemory stores value by reference. It never fails.
func (cc *Cache) SetMemory(key string, value any) {
	cc.mem.Set(key, value)
}

// GetMemory returns (nil, false) when key is absent.
func (cc *Cache) GetMemory(key string) (any, bool) {
	return cc.mem.Get(key)
}

func (cc *Cache) HasMemory(key string) bool {
	return cc.mem.Has(key)
}

func (cc *Cache) DeleteMemory(key string) {
	cc.mem.Delete(key)
}

// ---- disk tier ----

// SetDisk stores value as JSON text. Encoding errors (unsupported types such as
// channels or funcs, NaN) and store errors (quota, IO) are returned.
func (cc *Cache) SetDisk(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &TierError{Tier: TierDisk, Op: "set", Key: key, Err: err}
	}
	if err := cc.disk.Set(ctx, key, string(b)); err != nil {
		return &TierError{Tier: TierDisk, Op: "set", Key: key, Err: err}
	}
	return nil
}

// GetDisk returns the decoded JSON value for key. Text that isn't valid JSON
// comes back as the raw string. Store errors are logged and read as a miss.
func (cc *Cache) GetDisk(ctx context.Context, key string) (any, bool) {
	raw, ok := cc.readDisk(ctx, key)
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		cc.hooks.DiskDecodeFallback(key)
		cc.log.Debug("disk value is not JSON; returning raw string", Fields{"key": key})
		return raw, true
	}
	return v, true
}

func (cc *Cache) HasDisk(ctx context.Context, key string) bool {
	_, ok := cc.readDisk(ctx, key)
	return ok
}

// RemoveDisk deletes key from the disk tier.
func (cc *Cache) RemoveDisk(ctx context.Context, key string) error {
	if err := cc.disk.Remove(ctx, key); err != nil {
		return &TierError{Tier: TierDisk, Op: "remove", Key: key, Err: err}
	}
	return nil
}

func (cc *Cache) readDisk(ctx context.Context, key string) (string, bool) {
	raw, ok, err := cc.disk.Get(ctx, key)
	if err != nil {
		cc.hooks.DiskReadError(key, err)
		cc.log.Warn("disk read failed; treating as miss", Fields{"key": key, "err": err})
		return "", false
	}
	return raw, ok
}

// ClearDiskWithPrefix removes every disk key starting with prefix, except keys
// that also contain exclude (when exclude is non-empty). Keys are walked from
// the last index to the first so removals never shift a key that is still to
// be visited. It returns how many keys were removed.
func (cc *Cache) ClearDiskWithPrefix(ctx context.Context, prefix, exclude string) (int, error) {
	n, err := cc.disk.Len(ctx)
	if err != nil {
		return 0, &TierError{Tier: TierDisk, Op: "clear", Err: err}
	}
	removed := 0
	for i := n - 1; i >= 0; i-- {
		key, ok, err := cc.disk.Key(ctx, i)
		if err != nil {
			return removed, &TierError{Tier: TierDisk, Op: "clear", Err: err}
		}
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if exclude != "" && strings.Contains(key, exclude) {
			continue
		}
		if err := cc.disk.Remove(ctx, key); err != nil {
			return removed, &TierError{Tier: TierDisk, Op: "clear", Key: key, Err: err}
		}
		removed++
	}
	cc.log.Debug("cleared disk keys", Fields{"prefix": prefix, "exclude": exclude, "removed": removed})
	return removed, nil
}

// ---- facade ----

// Set writes value to the tiers selected by mode. With Disk, memory is written
// first; a failing disk write leaves the memory copy in place.
func (cc *Cache) Set(ctx context.Context, key string, value any, mode StorageMode) error {
	if !mode.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	if mode.writesMemory() {
		cc.SetMemory(key, value)
	}
	if mode.writesDisk() {
		return cc.SetDisk(ctx, key, value)
	}
	return nil
}

// Get checks memory, then disk. A disk hit is not written back to memory
// unless Options.PromoteDiskHits is set, so repeated reads hit disk again.
func (cc *Cache) Get(ctx context.Context, key string) (any, bool) {
	if v, ok := cc.mem.Get(key); ok {
		cc.hooks.Lookup(TierMemory, true)
		return v, true
	}
	v, ok := cc.GetDisk(ctx, key)
	if !ok {
		cc.hooks.Lookup("", false)
		return nil, false
	}
	cc.hooks.Lookup(TierDisk, true)
	if cc.promote {
		cc.mem.Set(key, v)
		cc.hooks.Promoted(key)
	}
	return v, true
}

// ---- cookies ----

// SetCookie stores a token for days (<= 0 => 30) with Path "/", Secure and
// SameSite=Lax.
func (cc *Cache) SetCookie(key, value string, days int) {
	cc.cookies.Set(key, value, days)
}

func (cc *Cache) GetCookie(key string) (string, bool) {
	return cc.cookies.Get(key)
}

// ClearCookie removes key using the same "/" path it was set with.
func (cc *Cache) ClearCookie(key string) {
	cc.cookies.Remove(key, cookie.DefaultPath)
}

// Cookies exposes the jar, e.g. to write Set-Cookie headers.
func (cc *Cache) Cookies() *cookie.Jar { return cc.cookies }

// ---- async tier ----

// SetAsync encodes value with the async codec and stores it. Every failure is
// returned.
func (cc *Cache) SetAsync(ctx context.Context, key string, value any) error {
	return setAsync(ctx, cc, key, value, cc.asyncCodec)
}

// GetAsync returns (nil, false, nil) on miss. Provider errors, corrupt frames
// and codec errors are returned.
func (cc *Cache) GetAsync(ctx context.Context, key string) (any, bool, error) {
	return getAsync(ctx, cc, key, cc.asyncCodec)
}

func (cc *Cache) asyncKey(userKey string) string {
	return "async:" + cc.ns + ":" + userKey
}

func (cc *Cache) asyncErr(op, key string, err error) error {
	cc.hooks.AsyncError(op, key, err)
	cc.log.Warn("async "+op+" failed", Fields{"key": key, "err": err})
	return &TierError{Tier: TierAsync, Op: op, Key: key, Err: err}
}

func setAsync[V any](ctx context.Context, cc *Cache, key string, value V, cd c.Codec[V]) error {
	if cc.async == nil {
		return ErrAsyncUnavailable
	}
	payload, err := cd.Encode(value)
	if err != nil {
		return cc.asyncErr("set", key, err)
	}
	frame := wire.Encode(c.IDOf(cd), cc.now(), payload)
	ok, err := cc.async.Set(ctx, cc.asyncKey(key), frame, int64(len(frame)), cc.asyncTTL)
	if err != nil {
		return cc.asyncErr("set", key, err)
	}
	if !ok {
		return cc.asyncErr("set", key, ErrRejected)
	}
	return nil
}

func getAsync[V any](ctx context.Context, cc *Cache, key string, cd c.Codec[V]) (V, bool, error) {
	var zero V
	if cc.async == nil {
		return zero, false, ErrAsyncUnavailable
	}
	raw, ok, err := cc.async.Get(ctx, cc.asyncKey(key))
	if err != nil {
		return zero, false, cc.asyncErr("get", key, err)
	}
	if !ok {
		return zero, false, nil
	}
	entry, err := wire.Decode(raw)
	if err != nil {
		return zero, false, cc.asyncErr("get", key, err)
	}
	if want := c.IDOf(cd); entry.Codec != c.IDUnknown && want != c.IDUnknown && entry.Codec != want {
		return zero, false, cc.asyncErr("get", key, ErrCodecMismatch)
	}
	v, err := cd.Decode(entry.Payload)
	if err != nil {
		return zero, false, cc.asyncErr("get", key, err)
	}
	return v, true, nil
}
