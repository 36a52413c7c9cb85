package gallery

import (
	"github.com/Tweska/TildeverseGallery/pkg/cache"
	"github.com/Tweska/TildeverseGallery/pkg/inventory"
)

// Merge reconciles the cached records with a fresh inventory. The inventory
// is a full census: its usernames and timestamps are authoritative, users
// absent from it are dropped, and users new to the cache come back Pending.
// Capture results of users present in both are carried over unchanged.
func Merge(cached map[string]*cache.UserRecord, entries []inventory.Entry) map[string]*cache.UserRecord {
	merged := make(map[string]*cache.UserRecord, len(entries))

	for _, e := range entries {
		rec := &cache.UserRecord{
			Username:          e.Username,
			ActivityTimestamp: e.ActivityTimestamp,
		}
		if old, ok := cached[e.Username]; ok && old != nil && old.Result != nil {
			res := *old.Result
			rec.Result = &res
		}
		merged[e.Username] = rec
	}

	return merged
}

// IsStale reports whether rec must be captured again. Complete records that
// have not been active since the watermark are left alone.
func IsStale(rec *cache.UserRecord, watermark int64) bool {
	if !rec.Complete() {
		return true
	}
	return rec.ActivityTimestamp >= watermark
}
