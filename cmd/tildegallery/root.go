package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	quiet         bool
	notifications bool
)

var rootCmd = &cobra.Command{
	Use:   "tildegallery",
	Short: "Build a screenshot gallery of every user page on a tilde server",
	Long: `tildegallery keeps a screenshot of every ~user page of a tilde server and
packages them into a static gallery.

Each update lists the public_html directories on the server, captures the
pages that changed since the previous run, and writes a gzip compressed tar
with one page per initial letter. Pages that are still the server's stock
placeholder are detected by fingerprint and left out of the gallery.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if noColor {
			ui.SetColor(false)
		}
		switch cmd.Name() {
		case "help", "version", "completion", "show":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on any error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./tildegallery.yaml or ~/.config/tildegallery/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when a long command finishes")

	rootCmd.SetVersionTemplate(`tildegallery {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
