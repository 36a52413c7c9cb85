package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fpA = "0123456789abcdef0123456789abcdef"

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cache.json"), logger.NewNopLogger())

	doc := store.Load()
	require.NotNil(t, doc)
	assert.Equal(t, int64(0), doc.GenerationTimestamp)
	assert.Equal(t, 0, doc.DefaultFingerprints.Len())
	assert.Empty(t, doc.Users)
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	tl := logger.NewTestLogger()
	doc := NewStore(path, tl).Load()

	assert.Empty(t, doc.Users)
	assert.Equal(t, int64(0), doc.GenerationTimestamp)
	assert.True(t, tl.HasMessage("Cache corrupt, starting empty"))
}

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cache.json")
	store := NewStore(path, logger.NewNopLogger())

	doc := NewDocument()
	doc.GenerationTimestamp = 1700000000
	doc.DefaultFingerprints.Add(fpA)
	doc.Users["alice"] = &UserRecord{
		Username:          "alice",
		ActivityTimestamp: 1500,
		Result:            &CaptureResult{Fingerprint: fpA, IsDefault: true},
	}
	doc.Users["bob"] = &UserRecord{Username: "bob", ActivityTimestamp: 900}

	require.NoError(t, store.Save(doc))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// No temporary files are left next to the cache
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loaded := store.Load()
	assert.Equal(t, int64(1700000000), loaded.GenerationTimestamp)
	assert.True(t, loaded.DefaultFingerprints.Has(fpA))
	require.Contains(t, loaded.Users, "alice")
	require.Contains(t, loaded.Users, "bob")

	alice := loaded.Users["alice"]
	assert.True(t, alice.Complete())
	assert.True(t, alice.IsDefault())
	assert.Equal(t, fpA, alice.Fingerprint())

	bob := loaded.Users["bob"]
	assert.Equal(t, Pending, bob.State())
	assert.False(t, bob.Complete())
}

func TestStoreSaveReplacesPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(path, logger.NewNopLogger())

	first := NewDocument()
	first.GenerationTimestamp = 1
	require.NoError(t, store.Save(first))

	second := NewDocument()
	second.GenerationTimestamp = 2
	second.Users["carol"] = &UserRecord{Username: "carol", ActivityTimestamp: 5}
	require.NoError(t, store.Save(second))

	loaded := store.Load()
	assert.Equal(t, int64(2), loaded.GenerationTimestamp)
	assert.Contains(t, loaded.Users, "carol")
}

func TestStoreSaveUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// The parent of the cache path is a regular file
	store := NewStore(filepath.Join(blocker, "cache.json"), logger.NewNopLogger())
	assert.Error(t, store.Save(NewDocument()))
}

func TestRecordCompletenessFromJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		complete bool
	}{
		{"all fields", `{"username":"a","activityTimestamp":1,"fingerprint":"","isDefault":false,"hasError":true}`, true},
		{"identity only", `{"username":"a","activityTimestamp":1}`, false},
		{"missing hasError", `{"username":"a","activityTimestamp":1,"fingerprint":"x","isDefault":false}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec UserRecord
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &rec))
			assert.Equal(t, tt.complete, rec.Complete())
		})
	}
}

func TestDocumentJSONShape(t *testing.T) {
	doc := NewDocument()
	doc.GenerationTimestamp = 42
	doc.DefaultFingerprints.Add("ffff")
	doc.DefaultFingerprints.Add("aaaa")
	doc.Users["old"] = &UserRecord{Username: "old", ActivityTimestamp: 10}
	doc.Users["new"] = &UserRecord{
		Username:          "new",
		ActivityTimestamp: 20,
		Result:            &CaptureResult{HasError: true},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var raw struct {
		GenerationTimestamp int64                    `json:"generationTimestamp"`
		DefaultFingerprints []string                 `json:"defaultFingerprints"`
		Users               []map[string]interface{} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, int64(42), raw.GenerationTimestamp)
	assert.Equal(t, []string{"aaaa", "ffff"}, raw.DefaultFingerprints)
	require.Len(t, raw.Users, 2)
	assert.Equal(t, "new", raw.Users[0]["username"])
	assert.Equal(t, true, raw.Users[0]["hasError"])
	assert.Equal(t, "", raw.Users[0]["fingerprint"])
	assert.NotContains(t, raw.Users[1], "fingerprint")
}

func TestDocumentDuplicateUsernamesKeepLast(t *testing.T) {
	raw := `{"generationTimestamp":1,"defaultFingerprints":["x","x"],"users":[
		{"username":"dup","activityTimestamp":1},
		{"username":"dup","activityTimestamp":2}
	]}`

	doc := NewDocument()
	require.NoError(t, json.Unmarshal([]byte(raw), doc))
	require.Len(t, doc.Users, 1)
	assert.Equal(t, int64(2), doc.Users["dup"].ActivityTimestamp)
	assert.Equal(t, 1, doc.DefaultFingerprints.Len())
}

func TestFingerprintSetUnion(t *testing.T) {
	s := NewFingerprintSet("a", "b")
	assert.Equal(t, 1, s.Union(NewFingerprintSet("b", "c")))
	assert.Equal(t, 0, s.Union(NewFingerprintSet("a", "c")))
	assert.Equal(t, []string{"a", "b", "c"}, s.Sorted())

	s.Add("")
	assert.False(t, s.Has(""))
	assert.Equal(t, 3, s.Len())
}
