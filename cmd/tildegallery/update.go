package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/gallery"
	"github.com/Tweska/TildeverseGallery/pkg/site"
	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var forceCapture bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Capture changed user pages and rebuild the gallery archive",
	Long: `Run one update cycle:

  1. load the cache document (a missing or corrupt cache starts empty)
  2. list the users and the modification time of their public_html
  3. capture every page that changed since the previous run
  4. save the cache and write the gallery archive
  5. with --upload, unpack the archive on the server

A failed capture is recorded and retried on the next run; it does not fail
the cycle. A listing, cache, template, archive or upload failure does.`,
	Example: `  # Regular run, e.g. from cron
  tildegallery update --upload

  # Recapture everything with four browsers in parallel
  tildegallery update --force --concurrency 4

  # Run on the tilde server itself
  tildegallery update --inventory-mode local`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	addCacheFlags(updateCmd)
	addBuildFlags(updateCmd)
	addUpdateFlags(updateCmd)
	updateCmd.Flags().BoolVar(&forceCapture, "force", false, "recapture every user regardless of activity")
	updateCmd.Flags().Bool("upload", false, "upload the archive after building it")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	notifier := ui.NewNotifier(notifications)
	report, build, err := a.update(ctx, forceCapture, ui.NewCaptureProgress())
	if err != nil {
		notifier.SendError("Gallery update failed", err.Error())
		return err
	}

	ui.PrintInfo("Run", report.RunID)
	ui.PrintInfo("Users", fmt.Sprintf("%d (%d dropped)", report.Users, report.Dropped))
	ui.PrintInfo("Captured", fmt.Sprintf("%d (%d failed, %d default, %d skipped)",
		report.Processed, report.Failed, report.Defaults, report.Skipped))
	ui.PrintInfo("Archive", fmt.Sprintf("%s (%s)", build.Path, describeBuild(build)))

	if a.cfg.Upload.Enabled {
		if err := a.publish(ctx); err != nil {
			notifier.SendError("Gallery upload failed", err.Error())
			return err
		}
		ui.PrintInfo("Published", a.cfg.Remote.Host+":"+a.cfg.Upload.RemoteDir)
	}

	notifier.SendSuccess("Gallery updated", fmt.Sprintf("%d pages captured, %d users", report.Processed, report.Users))
	return nil
}

// update runs the cycle and packages the resulting cache
func (a *app) update(ctx context.Context, force bool, observer gallery.Observer) (*gallery.UpdateReport, *site.BuildReport, error) {
	g, err := a.gallery(ctx, force, observer)
	if err != nil {
		return nil, nil, err
	}

	report, err := g.Update(ctx)
	if err != nil {
		return nil, nil, err
	}

	build, err := a.build(ctx, report.Document)
	if err != nil {
		return report, nil, err
	}
	return report, build, nil
}
