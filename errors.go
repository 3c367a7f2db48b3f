package tiercache

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMode      = errors.New("tiercache: invalid storage mode")
	ErrAsyncUnavailable = errors.New("tiercache: async tier not configured")
	ErrRejected         = errors.New("tiercache: write rejected by store")
	ErrCodecMismatch    = errors.New("tiercache: entry written with a different codec")
)

// Tier names a backing store.
type Tier string

const (
	TierMemory Tier = "memory"
	TierDisk   Tier = "disk"
	TierAsync  Tier = "async"
)

// TierError is returned by operations that surface tier failures to the
// caller: disk writes and every async operation.
type TierError struct {
	Tier Tier
	Op   string // "set", "get", "remove", "clear"
	Key  string
	Err  error
}

func (e *TierError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Tier, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Tier, e.Op, e.Key, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }
