package tiercache

import (
	"time"

	c "github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/cookie"
	"github.com/unkn0wn-root/tiercache/disk"
	"github.com/unkn0wn-root/tiercache/memory"
	pr "github.com/unkn0wn-root/tiercache/provider"
)

// Options configure a Cache. Every field is optional.
type Options struct {
	Namespace string       // async keys are "async:<ns>:<key>"; "" => "tiercache"
	Memory    memory.Store // nil => memory.NewMap()
	Disk      disk.Store   // nil => disk.NewMem()
	Cookies   *cookie.Jar  // nil => cookie.NewJar()

	Async      pr.Provider   // nil => async operations return ErrAsyncUnavailable
	AsyncCodec c.Codec[any]  // nil => codec.Msgpack[any]{}
	AsyncTTL   time.Duration // 0 => no expiry

	// PromoteDiskHits copies a value found only on disk into memory during Get.
	// Off by default, so a later GetMemory still misses.
	PromoteDiskHits bool

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

// New builds a Cache. The returned Cache owns every tier it was given and
// closes them in Close.
func New(opts Options) (*Cache, error) {
	return newCache(opts)
}
