// Package tiercache is a client-side cache facade over three storage tiers and
// a cookie side channel.
//
// Tiers:
//   - memory: volatile, in-process, values held by reference (memory.Store).
//   - disk:   synchronous persistent string store walked by index, like
//     window.localStorage (disk.Store). Values are stored as JSON text.
//   - async:  persistent byte store for structured values (provider.Provider
//     plus a Codec), the IndexedDB analog. Errors propagate to the caller.
//
// Set and Get hide tier selection for the common case:
//
//	c, _ := tiercache.New(tiercache.Options{Disk: sqliteStore})
//	_ = c.Set(ctx, "session_user", user, tiercache.Disk) // memory + disk
//	v, ok := c.Get(ctx, "session_user")                  // memory, then disk
//
// Tiers are never synchronized behind the caller's back: the StorageMode passed
// to Set decides which tiers receive a write, and Get does not copy disk hits
// into memory unless Options.PromoteDiskHits is set.
package tiercache
