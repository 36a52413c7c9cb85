package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tweska/TildeverseGallery/pkg/cache"
	"github.com/Tweska/TildeverseGallery/pkg/inventory"
)

func TestMerge(t *testing.T) {
	cached := map[string]*cache.UserRecord{
		"alice": {Username: "alice", ActivityTimestamp: 100, Result: &cache.CaptureResult{Fingerprint: "fa", IsDefault: true}},
		"bob":   {Username: "bob", ActivityTimestamp: 200, Result: &cache.CaptureResult{HasError: true}},
		"carol": {Username: "carol", ActivityTimestamp: 300, Result: &cache.CaptureResult{Fingerprint: "fc"}},
		"dave":  {Username: "dave", ActivityTimestamp: 50},
	}
	entries := []inventory.Entry{
		{Username: "alice", ActivityTimestamp: 150},
		{Username: "bob", ActivityTimestamp: 200},
		{Username: "dave", ActivityTimestamp: 60},
		{Username: "erin", ActivityTimestamp: 400},
	}

	merged := Merge(cached, entries)
	require.Len(t, merged, 4)

	// Derived fields carried over; timestamps from the inventory
	assert.Equal(t, int64(150), merged["alice"].ActivityTimestamp)
	assert.Equal(t, "fa", merged["alice"].Fingerprint())
	assert.True(t, merged["alice"].IsDefault())
	assert.True(t, merged["bob"].HasError())

	// Census: carol is gone
	assert.NotContains(t, merged, "carol")

	// Pending stays pending, new users are pending
	assert.Equal(t, cache.Pending, merged["dave"].State())
	assert.Equal(t, cache.Pending, merged["erin"].State())
	assert.Equal(t, int64(400), merged["erin"].ActivityTimestamp)

	// The cached records are not aliased
	merged["alice"].Result.Fingerprint = "changed"
	assert.Equal(t, "fa", cached["alice"].Fingerprint())
}

func TestMergeEmptyCache(t *testing.T) {
	merged := Merge(nil, []inventory.Entry{{Username: "bob", ActivityTimestamp: 1000}})
	require.Contains(t, merged, "bob")
	assert.False(t, merged["bob"].Complete())

	assert.Empty(t, Merge(map[string]*cache.UserRecord{"x": {Username: "x"}}, nil))
}

func TestIsStale(t *testing.T) {
	complete := func(ts int64) *cache.UserRecord {
		return &cache.UserRecord{Username: "u", ActivityTimestamp: ts, Result: &cache.CaptureResult{Fingerprint: "f"}}
	}

	tests := []struct {
		name      string
		rec       *cache.UserRecord
		watermark int64
		want      bool
	}{
		{"complete and older than watermark", complete(500), 1000, false},
		{"complete and newer than watermark", complete(1500), 1000, true},
		{"complete and equal to watermark", complete(1000), 1000, true},
		{"pending and older than watermark", &cache.UserRecord{Username: "u", ActivityTimestamp: 1}, 1000, true},
		{"complete with zero watermark", complete(0), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStale(tt.rec, tt.watermark))
		})
	}
}
