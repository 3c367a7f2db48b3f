package tiercache

// Hooks lightweight callbacks for cache events.
// Implementations MUST be cheap and non-blocking; Lookup runs on every Get.
type Hooks interface {
	// Get was answered by tier, or by no tier when hit is false (tier == "").
	Lookup(tier Tier, hit bool)

	// A disk value was not valid JSON and was returned as the raw string.
	DiskDecodeFallback(key string)

	// The disk store failed a read; the read was reported as a miss.
	DiskReadError(key string, err error)

	// An async operation failed and the error was returned to the caller.
	AsyncError(op, key string, err error)

	// A disk hit was copied into memory (Options.PromoteDiskHits).
	Promoted(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(Tier, bool)                {}
func (NopHooks) DiskDecodeFallback(string)        {}
func (NopHooks) DiskReadError(string, error)      {}
func (NopHooks) AsyncError(string, string, error) {}
func (NopHooks) Promoted(string)                  {}
