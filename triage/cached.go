package triage

import (
	"framekit/cache"
)

// CacheOperation is the cache operation name for triage results.
const CacheOperation = "triage"

// Cached is Triage backed by c. Only successful results are stored; the
// second return value reports a cache hit. A nil cache disables lookup.
func Cached(c *cache.Cache, text string, opts Options) (Result, bool, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, false, err
	}
	if c == nil || !c.Enabled() {
		res, err := Triage(text, opts)
		return res, false, err
	}

	hash := cache.ContentHash([]byte(text))
	fp := opts.Fingerprint()

	var res Result
	if c.Lookup(hash, CacheOperation, fp, &res) {
		return res, true, nil
	}

	res, err := Triage(text, opts)
	if err != nil {
		return res, false, err
	}
	// A failed write only costs the next lookup.
	_ = c.Store(hash, CacheOperation, fp, res)
	return res, false, nil
}
