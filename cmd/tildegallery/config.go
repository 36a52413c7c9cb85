package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tweska/TildeverseGallery/pkg/config"
	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tildegallery configuration files.

Configuration is read from, in order of priority:
  - command line flags
  - environment variables (` + config.EnvPrefix + `*)
  - .env files
  - the configuration file
  - default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'tildegallery.yaml' in the current directory unless
a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from all sources and check it. Besides value
ranges this checks that the capture command can be found, the template
exists and, in ssh mode, that the identity file is readable.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# tildegallery configuration
#
# Every option can also be set with an environment variable, e.g.
# TILDEGALLERY_REMOTE_HOST or TILDEGALLERY_CAPTURE_CONCURRENCY.

# SSH access to the tilde server
remote:
  host: "tilde.club"
  port: 22
  user: ""
  identity_file: "~/.ssh/id_ed25519"
  known_hosts: "~/.ssh/known_hosts"
  # Only for throwaway test servers
  insecure_ignore_host_key: false
  timeout: 30s
  # Connection attempts before giving up
  dial_attempts: 3
  # Fixed wait between attempts; 0 backs off exponentially from 1s
  dial_backoff: 0s

# How the list of users is obtained. The command prints one
# "<unix mtime> <path>" line per user, the path ending in /home/<user>/public_html.
inventory:
  # ssh runs the command on the server, local runs it here
  mode: "ssh"
  command: "stat -c '%Y %n' /home/*/public_html"

# Screenshot capture
capture:
  # {url} and {output} are substituted in args
  command: "chromium"
  args: ["--headless", "--disable-gpu", "--hide-scrollbars", "--window-size=1280,800", "--screenshot={output}", "{url}"]
  url_pattern: "https://tilde.club/~{username}/"
  # A capture running longer is killed and counted as failed
  timeout: 30s
  concurrency: 1
  # 0 disables pacing
  requests_per_minute: 0
  # window or token
  rate_limit_mode: window
  thumbnail_width: 320
  # Only fingerprints of this length are considered by dedupe
  fingerprint_length: 32

# Files of a gallery build
gallery:
  cache_file: "./cache.json"
  screenshot_dir: "./screenshots"
  template_dir: "./template"
  template_name: "index.html"
  archive_path: "./gallery.tar.gz"
  # One index.html instead of A.html ... Z.html and other.html
  single_page: false

# Publishing
upload:
  enabled: false
  remote_dir: "public_html/gallery"

# tildegallery serve
preview:
  addr: "127.0.0.1:8080"

logging:
  # debug, info, warn, error
  level: "info"
  # Empty logs to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "tildegallery.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set remote.user and check the capture command")
	fmt.Println("2. Run 'tildegallery config validate'")
	fmt.Println("3. Run 'tildegallery update'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return err
	}

	problems, warnings := checkEnvironment(cfg)

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}
	if len(problems) > 0 {
		for _, p := range problems {
			ui.PrintError("Problem", p)
		}
		return fmt.Errorf("configuration has %d problems", len(problems))
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Inventory", cfg.Inventory.Mode+" "+cfg.Remote.User+"@"+cfg.Remote.Addr())
	ui.PrintInfo("Capture", fmt.Sprintf("%s, %d in flight, %s timeout", cfg.Capture.Command, cfg.Capture.Concurrency, cfg.Capture.Timeout))
	ui.PrintInfo("Archive", cfg.Gallery.ArchivePath)
	return nil
}

// checkEnvironment looks at the files and programs cfg refers to
func checkEnvironment(cfg *config.Config) (problems, warnings []string) {
	if _, err := exec.LookPath(cfg.Capture.Command); err != nil {
		problems = append(problems, fmt.Sprintf("capture command %q not found", cfg.Capture.Command))
	}

	tmpl := filepath.Join(cfg.Gallery.TemplateDir, cfg.Gallery.TemplateName)
	if _, err := os.Stat(tmpl); err != nil {
		problems = append(problems, fmt.Sprintf("template %s: %v", tmpl, err))
	}

	if strings.EqualFold(cfg.Inventory.Mode, "ssh") || cfg.Upload.Enabled {
		if _, err := os.Stat(cfg.Remote.IdentityFile); err != nil {
			problems = append(problems, fmt.Sprintf("identity file %s: %v", cfg.Remote.IdentityFile, err))
		}
		if cfg.Remote.InsecureIgnoreHostKey {
			warnings = append(warnings, "host key checking is disabled")
		}
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	return problems, warnings
}
