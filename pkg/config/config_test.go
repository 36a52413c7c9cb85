package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Remote.User = "gallery"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ssh", cfg.Inventory.Mode)
	assert.Equal(t, 22, cfg.Remote.Port)
	assert.Equal(t, 1, cfg.Capture.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 32, cfg.Capture.FingerprintLength)
	assert.Equal(t, "window", cfg.Capture.RateLimitMode)
	assert.Zero(t, cfg.Remote.DialBackoff)
	assert.Equal(t, "https://tilde.club/~{username}/", cfg.Capture.URLPattern)
	assert.Equal(t, "./cache.json", cfg.Gallery.CacheFile)
	assert.Equal(t, "index.html", cfg.Gallery.TemplateName)
	assert.False(t, cfg.Gallery.SinglePage)
	assert.False(t, cfg.Upload.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TILDEGALLERY_REMOTE_HOST", "ctrl-c.club")
	t.Setenv("TILDEGALLERY_REMOTE_PORT", "2222")
	t.Setenv("TILDEGALLERY_CAPTURE_TIMEOUT", "45s")
	t.Setenv("TILDEGALLERY_CAPTURE_CONCURRENCY", "4")
	t.Setenv("TILDEGALLERY_GALLERY_SINGLE_PAGE", "true")
	t.Setenv("TILDEGALLERY_GALLERY_CACHE_FILE", "/var/lib/gallery/cache.json")
	t.Setenv("TILDEGALLERY_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "ctrl-c.club", cfg.Remote.Host)
	assert.Equal(t, 2222, cfg.Remote.Port)
	assert.Equal(t, 45*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 4, cfg.Capture.Concurrency)
	assert.True(t, cfg.Gallery.SinglePage)
	assert.Equal(t, "/var/lib/gallery/cache.json", cfg.Gallery.CacheFile)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched values keep their defaults
	assert.Equal(t, "index.html", cfg.Gallery.TemplateName)
}

func TestLoadFromEnvInvalidValue(t *testing.T) {
	t.Setenv("TILDEGALLERY_CAPTURE_CONCURRENCY", "many")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"local inventory without host", func(c *Config) {
			c.Inventory.Mode = "local"
			c.Remote.Host = ""
		}, false},
		{"unknown inventory mode", func(c *Config) { c.Inventory.Mode = "ftp" }, true},
		{"ssh without user", func(c *Config) { c.Remote.User = "" }, true},
		{"url pattern without username", func(c *Config) { c.Capture.URLPattern = "https://tilde.club/" }, true},
		{"zero timeout", func(c *Config) { c.Capture.Timeout = 0 }, true},
		{"too many workers", func(c *Config) { c.Capture.Concurrency = 32 }, true},
		{"upload without dir", func(c *Config) {
			c.Upload.Enabled = true
			c.Upload.RemoteDir = ""
		}, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"no dial attempts", func(c *Config) { c.Remote.DialAttempts = 0 }, true},
		{"negative dial backoff", func(c *Config) { c.Remote.DialBackoff = -time.Second }, true},
		{"token bucket pacing", func(c *Config) { c.Capture.RateLimitMode = "token" }, false},
		{"unknown rate limit mode", func(c *Config) { c.Capture.RateLimitMode = "leaky" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"cache-file":      "/tmp/cache.json",
		"archive":         "/tmp/site.tar.gz",
		"single":          true,
		"concurrency":     3,
		"capture-timeout": 10 * time.Second,
		"log-level":       "error",
	})

	assert.Equal(t, "/tmp/cache.json", cfg.Gallery.CacheFile)
	assert.Equal(t, "/tmp/site.tar.gz", cfg.Gallery.ArchivePath)
	assert.True(t, cfg.Gallery.SinglePage)
	assert.Equal(t, 3, cfg.Capture.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "tildegallery.yaml")

	cfg := validConfig()
	cfg.Remote.Host = "tilde.town"
	cfg.Capture.Concurrency = 5
	cfg.Capture.Timeout = 90 * time.Second
	require.NoError(t, cfg.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))
	assert.Equal(t, "tilde.town", loaded.Remote.Host)
	assert.Equal(t, 5, loaded.Capture.Concurrency)
	assert.Equal(t, 90*time.Second, loaded.Capture.Timeout)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("capture: [unclosed"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(configPath))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tildegallery.yaml")
	content := `
remote:
  user: fromfile
capture:
  concurrency: 2
gallery:
  archive_path: /file/archive.tar.gz
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	t.Setenv("TILDEGALLERY_CAPTURE_CONCURRENCY", "6")

	cfg, err := Load(configPath, map[string]interface{}{
		"archive": "/flag/archive.tar.gz",
	})
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.Remote.User)
	assert.Equal(t, 6, cfg.Capture.Concurrency)
	assert.Equal(t, "/flag/archive.tar.gz", cfg.Gallery.ArchivePath)
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	assert.Equal(t, "/home/alice/.ssh/id_ed25519", ExpandHome("~/.ssh/id_ed25519"))
	assert.Equal(t, "/home/alice", ExpandHome("~"))
	assert.Equal(t, "/etc/ssh/key", ExpandHome("/etc/ssh/key"))
	assert.Equal(t, "~bob/key", ExpandHome("~bob/key"))
}

func TestLoadExpandsIdentityFile(t *testing.T) {
	t.Setenv("HOME", "/home/alice")
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  user: alice\n  identity_file: ~/.ssh/tilde\n"), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.ssh/tilde", cfg.Remote.IdentityFile)
}
