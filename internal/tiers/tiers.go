// Package tiers builds a tiercache.Cache from config.CacheConfig.
package tiers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache"
	c "github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/config"
	"github.com/unkn0wn-root/tiercache/cookie"
	"github.com/unkn0wn-root/tiercache/disk"
	diskredis "github.com/unkn0wn-root/tiercache/disk/redis"
	"github.com/unkn0wn-root/tiercache/disk/sqlite"
	"github.com/unkn0wn-root/tiercache/memory"
	"github.com/unkn0wn-root/tiercache/memory/ristretto"
	pr "github.com/unkn0wn-root/tiercache/provider"
	"github.com/unkn0wn-root/tiercache/provider/badger"
	"github.com/unkn0wn-root/tiercache/provider/bigcache"
	provredis "github.com/unkn0wn-root/tiercache/provider/redis"
)

type Deps struct {
	Logger tiercache.Logger
	Hooks  tiercache.Hooks
}

// Open builds every tier named in cfg. On error, tiers already opened are
// closed before returning.
func Open(ctx context.Context, cfg config.CacheConfig, deps Deps) (*tiercache.Cache, error) {
	var opened []func() error
	fail := func(err error) (*tiercache.Cache, error) {
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i]()
		}
		return nil, err
	}

	mem, err := openMemory(cfg.Memory)
	if err != nil {
		return fail(fmt.Errorf("open memory tier: %w", err))
	}
	opened = append(opened, mem.Close)

	dsk, err := openDisk(ctx, cfg.Disk)
	if err != nil {
		return fail(fmt.Errorf("open disk tier: %w", err))
	}
	opened = append(opened, func() error { return dsk.Close(ctx) })

	async, err := openAsync(ctx, cfg.Async)
	if err != nil {
		return fail(fmt.Errorf("open async tier: %w", err))
	}
	if async != nil {
		opened = append(opened, func() error { return async.Close(ctx) })
	}

	cd, err := AsyncCodec(cfg.Async.Codec, cfg.Async.MaxDecode)
	if err != nil {
		return fail(err)
	}

	jar, err := LoadCookies(cfg.Cookies.Path)
	if err != nil {
		return fail(err)
	}

	cc, err := tiercache.New(tiercache.Options{
		Namespace:       cfg.Namespace,
		Memory:          mem,
		Disk:            dsk,
		Cookies:         jar,
		Async:           async,
		AsyncCodec:      cd,
		AsyncTTL:        cfg.Async.TTL,
		PromoteDiskHits: cfg.PromoteDiskHits,
		Logger:          deps.Logger,
		Hooks:           deps.Hooks,
	})
	if err != nil {
		return fail(err)
	}
	return cc, nil
}

func openMemory(cfg config.MemoryConfig) (memory.Store, error) {
	switch cfg.Kind {
	case "", "map":
		return memory.NewMap(), nil
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: cfg.MaxItems * 10,
			MaxCost:     cfg.MaxItems,
			BufferItems: 64,
		})
	}
	return nil, fmt.Errorf("unknown memory kind %q", cfg.Kind)
}

func openDisk(ctx context.Context, cfg config.DiskConfig) (disk.Store, error) {
	switch cfg.Kind {
	case "mem":
		if cfg.QuotaBytes > 0 {
			return disk.NewMemWithQuota(cfg.QuotaBytes), nil
		}
		return disk.NewMem(), nil
	case "", "sqlite":
		return sqlite.New(ctx, sqlite.Config{Path: cfg.Path, Namespace: cfg.Namespace})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return diskredis.New(diskredis.Config{Client: rdb, Namespace: cfg.Namespace, CloseClient: true})
	}
	return nil, fmt.Errorf("unknown disk kind %q", cfg.Kind)
}

// openAsync returns a nil provider for kind "none".
func openAsync(ctx context.Context, cfg config.AsyncConfig) (pr.Provider, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "badger":
		return badger.New(badger.Config{Dir: cfg.Dir, InMemory: cfg.Dir == ""})
	case "bigcache":
		life := cfg.TTL
		if life <= 0 {
			life = 24 * time.Hour
		}
		return bigcache.New(ctx, bigcache.Config{LifeWindow: life, HardMaxCacheSizeMB: cfg.MaxSizeMB})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return provredis.New(provredis.Config{Client: rdb, CloseClient: true})
	}
	return nil, fmt.Errorf("unknown async kind %q", cfg.Kind)
}

// AsyncCodec maps a codec name to a Codec[any]. maxDecode > 0 bounds the
// payload size accepted on read.
func AsyncCodec(name string, maxDecode int) (c.Codec[any], error) {
	var cd c.Codec[any]
	switch name {
	case "", "msgpack":
		cd = c.Msgpack[any]{}
	case "cbor":
		cbor, err := c.NewCBOR[any](true)
		if err != nil {
			return nil, fmt.Errorf("cbor codec: %w", err)
		}
		cd = cbor
	case "json":
		cd = c.JSON[any]{}
	case "structpb":
		cd = c.StructPB{}
	default:
		return nil, fmt.Errorf("unknown async codec %q", name)
	}
	if maxDecode > 0 {
		cd = c.LimitCodec[any]{Inner: cd, MaxDecode: maxDecode}
	}
	return cd, nil
}

// LoadCookies reads a jar saved by SaveCookies. An empty path or a missing
// file yields an empty jar.
func LoadCookies(path string) (*cookie.Jar, error) {
	jar := cookie.NewJar()
	if path == "" {
		return jar, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return jar, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cookies: %w", err)
	}
	defer f.Close()
	if err := jar.Load(f); err != nil {
		return nil, err
	}
	return jar, nil
}

// SaveCookies writes jar to path; an empty path is a no-op.
func SaveCookies(path string, jar *cookie.Jar) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cookies: %w", err)
	}
	if err := jar.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
