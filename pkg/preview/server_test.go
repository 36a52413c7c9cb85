package preview

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tweska/TildeverseGallery/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func buildArchive(t *testing.T, files [][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gallery.tar.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, file := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: file[0], Mode: 0644, Size: int64(len(file[1])), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return path
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestServer(t *testing.T) {
	archive := buildArchive(t, [][2]string{
		{"A.html", "<h1>A</h1>"},
		{"style.css", "body{}"},
		{"screenshots/alice.png", "\x89PNG"},
	})

	site, err := Load(archive)
	require.NoError(t, err)
	assert.Equal(t, []string{"/A.html", "/screenshots/alice.png", "/style.css"}, site.Names())

	h := NewServer(site, logger.NewNopLogger()).Handler()

	w := get(t, h, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/A.html", w.Header().Get("Location"))

	w = get(t, h, "/A.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<h1>A</h1>", w.Body.String())

	w = get(t, h, "/style.css")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")

	w = get(t, h, "/screenshots/alice.png")
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = get(t, h, "/missing.html")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, h, "/_entries")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Entries, 3)
}

func TestServerSinglePageHome(t *testing.T) {
	site, err := Load(buildArchive(t, [][2]string{{"index.html", "all"}, {"A.html", "a"}}))
	require.NoError(t, err)

	w := get(t, NewServer(site, logger.NewNopLogger()).Handler(), "/")
	assert.Equal(t, "/index.html", w.Header().Get("Location"))
}

func TestServerEmptyArchive(t *testing.T) {
	site, err := Load(buildArchive(t, nil))
	require.NoError(t, err)

	w := get(t, NewServer(site, logger.NewNopLogger()).Handler(), "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.tar.gz"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not gzip"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}
