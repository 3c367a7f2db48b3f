package tiercache

import (
	"context"
	"encoding/json"

	c "github.com/unkn0wn-root/tiercache/codec"
)

// DiskAs decodes the disk value for key into V. A miss is (zero, false, nil).
// When V is string and the stored text isn't JSON, the raw text is returned,
// matching GetDisk. Valid JSON of another shape (a number read as string) and
// invalid JSON for any other V are errors.
func DiskAs[V any](ctx context.Context, cc *Cache, key string) (V, bool, error) {
	var v V
	raw, ok := cc.readDisk(ctx, key)
	if !ok {
		return v, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		if s, isString := any(raw).(V); isString && !json.Valid([]byte(raw)) {
			cc.hooks.DiskDecodeFallback(key)
			return s, true, nil
		}
		return v, false, &TierError{Tier: TierDisk, Op: "get", Key: key, Err: err}
	}
	return v, true, nil
}

// SetAsyncAs stores value in the async tier with a caller-chosen codec.
// Read it back with AsyncAs and a codec of the same kind.
func SetAsyncAs[V any](ctx context.Context, cc *Cache, key string, value V, cd c.Codec[V]) error {
	return setAsync(ctx, cc, key, value, cd)
}

// AsyncAs reads key from the async tier and decodes it with cd.
func AsyncAs[V any](ctx context.Context, cc *Cache, key string, cd c.Codec[V]) (V, bool, error) {
	return getAsync(ctx, cc, key, cd)
}
