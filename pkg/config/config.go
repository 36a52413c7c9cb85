package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Tweska/TildeverseGallery/pkg/ratelimit"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv
const EnvPrefix = "TILDEGALLERY_"

// Config holds all configuration options for the gallery builder
type Config struct {
	// Remote host that is inventoried and published to
	Remote RemoteConfig `yaml:"remote" json:"remote" envPrefix:"REMOTE_"`

	// How the list of users is obtained
	Inventory InventoryConfig `yaml:"inventory" json:"inventory" envPrefix:"INVENTORY_"`

	// Screenshot capture settings
	Capture CaptureConfig `yaml:"capture" json:"capture" envPrefix:"CAPTURE_"`

	// Cache, screenshots, templates and archive locations
	Gallery GalleryConfig `yaml:"gallery" json:"gallery" envPrefix:"GALLERY_"`

	// Publishing of the built archive
	Upload UploadConfig `yaml:"upload" json:"upload" envPrefix:"UPLOAD_"`

	// Local preview server
	Preview PreviewConfig `yaml:"preview" json:"preview" envPrefix:"PREVIEW_"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging" envPrefix:"LOG_"`
}

// RemoteConfig holds the SSH connection settings
type RemoteConfig struct {
	Host                  string        `yaml:"host" json:"host" env:"HOST"`
	Port                  int           `yaml:"port" json:"port" env:"PORT"`
	User                  string        `yaml:"user" json:"user" env:"USER"`
	IdentityFile          string        `yaml:"identity_file" json:"identity_file" env:"IDENTITY_FILE"`
	KnownHosts            string        `yaml:"known_hosts" json:"known_hosts" env:"KNOWN_HOSTS"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key" json:"insecure_ignore_host_key" env:"INSECURE_IGNORE_HOST_KEY"`
	Timeout               time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	// DialAttempts is how often a failing connect is tried before giving up
	DialAttempts int           `yaml:"dial_attempts" json:"dial_attempts" env:"DIAL_ATTEMPTS"`
	// DialBackoff is a fixed delay between attempts; zero backs off exponentially
	DialBackoff  time.Duration `yaml:"dial_backoff" json:"dial_backoff" env:"DIAL_BACKOFF"`
}

// InventoryConfig selects where the user listing comes from
type InventoryConfig struct {
	// Mode is "ssh" (run Command on the remote host) or "local"
	Mode    string `yaml:"mode" json:"mode" env:"MODE"`
	Command string `yaml:"command" json:"command" env:"COMMAND"`
}

// CaptureConfig holds screenshot capture configuration
type CaptureConfig struct {
	// Command is the screenshot executable; {url} and {output} are substituted in Args
	Command           string        `yaml:"command" json:"command" env:"COMMAND"`
	Args              []string      `yaml:"args" json:"args" env:"ARGS" envSeparator:" "`
	URLPattern        string        `yaml:"url_pattern" json:"url_pattern" env:"URL_PATTERN"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency" env:"CONCURRENCY"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	// RateLimitMode is "window" (sliding window) or "token" (bucket refilled each minute)
	RateLimitMode     string        `yaml:"rate_limit_mode" json:"rate_limit_mode" env:"RATE_LIMIT_MODE"`
	ThumbnailWidth    int           `yaml:"thumbnail_width" json:"thumbnail_width" env:"THUMBNAIL_WIDTH"`
	FingerprintLength int           `yaml:"fingerprint_length" json:"fingerprint_length" env:"FINGERPRINT_LENGTH"`
}

// GalleryConfig holds the on-disk layout of a gallery build
type GalleryConfig struct {
	CacheFile     string `yaml:"cache_file" json:"cache_file" env:"CACHE_FILE"`
	ScreenshotDir string `yaml:"screenshot_dir" json:"screenshot_dir" env:"SCREENSHOT_DIR"`
	TemplateDir   string `yaml:"template_dir" json:"template_dir" env:"TEMPLATE_DIR"`
	TemplateName  string `yaml:"template_name" json:"template_name" env:"TEMPLATE_NAME"`
	ArchivePath   string `yaml:"archive_path" json:"archive_path" env:"ARCHIVE_PATH"`
	SinglePage    bool   `yaml:"single_page" json:"single_page" env:"SINGLE_PAGE"`
}

// UploadConfig holds publishing configuration
type UploadConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	RemoteDir string `yaml:"remote_dir" json:"remote_dir" env:"REMOTE_DIR"`
}

// PreviewConfig holds the preview server configuration
type PreviewConfig struct {
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"LEVEL"`
	File  string `yaml:"file" json:"file" env:"FILE"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Host:         "tilde.club",
			Port:         22,
			User:         os.Getenv("USER"),
			IdentityFile: filepath.Join(os.Getenv("HOME"), ".ssh", "id_ed25519"),
			KnownHosts:   filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts"),
			Timeout:      30 * time.Second,
			DialAttempts: 3,
		},
		Inventory: InventoryConfig{
			Mode:    "ssh",
			Command: "stat -c '%Y %n' /home/*/public_html",
		},
		Capture: CaptureConfig{
			Command:           "chromium",
			Args:              []string{"--headless", "--disable-gpu", "--hide-scrollbars", "--window-size=1280,800", "--screenshot={output}", "{url}"},
			URLPattern:        "https://tilde.club/~{username}/",
			Timeout:           30 * time.Second,
			Concurrency:       1,
			RequestsPerMinute: 0,
			RateLimitMode:     ratelimit.ModeWindow,
			ThumbnailWidth:    320,
			FingerprintLength: 32,
		},
		Gallery: GalleryConfig{
			CacheFile:     "./cache.json",
			ScreenshotDir: "./screenshots",
			TemplateDir:   "./template",
			TemplateName:  "index.html",
			ArchivePath:   "./gallery.tar.gz",
			SinglePage:    false,
		},
		Upload: UploadConfig{
			Enabled:   false,
			RemoteDir: "public_html/gallery",
		},
		Preview: PreviewConfig{
			Addr: "127.0.0.1:8080",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from TILDEGALLERY_ prefixed environment variables
func (c *Config) LoadFromEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"tildegallery.yaml",
		"tildegallery.yml",
		".tildegallery.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "tildegallery", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tildegallery.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Inventory.Mode) {
	case "ssh":
		if c.Remote.Host == "" {
			errs = append(errs, errors.New("remote host is required for ssh inventory"))
		}
		if c.Remote.User == "" {
			errs = append(errs, errors.New("remote user is required for ssh inventory"))
		}
	case "local":
	default:
		errs = append(errs, fmt.Errorf("invalid inventory mode %q", c.Inventory.Mode))
	}
	if c.Inventory.Command == "" {
		errs = append(errs, errors.New("inventory command is required"))
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		errs = append(errs, errors.New("remote port must be between 1 and 65535"))
	}
	if c.Remote.DialAttempts < 1 {
		errs = append(errs, errors.New("remote dial attempts must be at least 1"))
	}
	if c.Remote.DialBackoff < 0 {
		errs = append(errs, errors.New("remote dial backoff cannot be negative"))
	}

	if c.Capture.Command == "" {
		errs = append(errs, errors.New("capture command is required"))
	}
	if !strings.Contains(c.Capture.URLPattern, "{username}") {
		errs = append(errs, errors.New("capture url pattern must contain {username}"))
	}
	if c.Capture.Timeout <= 0 {
		errs = append(errs, errors.New("capture timeout must be positive"))
	}
	if c.Capture.Concurrency <= 0 {
		errs = append(errs, errors.New("capture concurrency must be positive"))
	}
	if c.Capture.Concurrency > 16 {
		errs = append(errs, errors.New("capture concurrency should not exceed 16"))
	}
	if c.Capture.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if !ratelimit.ValidMode(c.Capture.RateLimitMode) {
		errs = append(errs, fmt.Errorf("unknown rate limit mode %q", c.Capture.RateLimitMode))
	}
	if c.Capture.ThumbnailWidth <= 0 {
		errs = append(errs, errors.New("thumbnail width must be positive"))
	}
	if c.Capture.FingerprintLength <= 0 {
		errs = append(errs, errors.New("fingerprint length must be positive"))
	}

	if c.Gallery.CacheFile == "" {
		errs = append(errs, errors.New("cache file is required"))
	}
	if c.Gallery.ScreenshotDir == "" {
		errs = append(errs, errors.New("screenshot directory is required"))
	}
	if c.Gallery.TemplateDir == "" || c.Gallery.TemplateName == "" {
		errs = append(errs, errors.New("template directory and name are required"))
	}
	if c.Gallery.ArchivePath == "" {
		errs = append(errs, errors.New("archive path is required"))
	}

	if c.Upload.Enabled && c.Upload.RemoteDir == "" {
		errs = append(errs, errors.New("upload remote directory is required when upload is enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// expandPaths resolves a leading ~/ in the SSH file paths
func (c *Config) expandPaths() {
	c.Remote.IdentityFile = ExpandHome(c.Remote.IdentityFile)
	c.Remote.KnownHosts = ExpandHome(c.Remote.KnownHosts)
}

// ExpandHome replaces a leading ~/ with the home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Addr returns the host:port of the remote SSH server
func (c *RemoteConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["cache-file"].(string); ok && v != "" {
		c.Gallery.CacheFile = v
	}
	if v, ok := flags["screenshot-dir"].(string); ok && v != "" {
		c.Gallery.ScreenshotDir = v
	}
	if v, ok := flags["template-dir"].(string); ok && v != "" {
		c.Gallery.TemplateDir = v
	}
	if v, ok := flags["archive"].(string); ok && v != "" {
		c.Gallery.ArchivePath = v
	}
	if v, ok := flags["single"].(bool); ok {
		c.Gallery.SinglePage = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Capture.Concurrency = v
	}
	if v, ok := flags["capture-timeout"].(time.Duration); ok && v > 0 {
		c.Capture.Timeout = v
	}
	if v, ok := flags["upload"].(bool); ok {
		c.Upload.Enabled = v
	}
	if v, ok := flags["inventory-mode"].(string); ok && v != "" {
		c.Inventory.Mode = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Preview.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tildegallery.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	config.expandPaths()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
