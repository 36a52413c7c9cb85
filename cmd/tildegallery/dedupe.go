package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/dedupe"
	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var applyDuplicates bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find screenshot fingerprints shared by several users",
	Long: `List the fingerprints that more than one user's screenshot has. These are
almost always the server's stock placeholder page.

With --update every user holding such a fingerprint is marked as default,
their screenshots are deleted and the fingerprints are added to the cache's
default set, so future captures of the same page are recognised at once.
Note that this also marks the first holder of a fingerprint.`,
	Example: `  # Show duplicates
  tildegallery dedupe

  # Mark them as default pages
  tildegallery dedupe --update`,
	Args: cobra.NoArgs,
	RunE: runDedupe,
}

func init() {
	rootCmd.AddCommand(dedupeCmd)

	addCacheFlags(dedupeCmd)
	dedupeCmd.Flags().BoolVar(&applyDuplicates, "update", false, "mark duplicates as default and save the cache")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sm, err := a.storage()
	if err != nil {
		return err
	}

	report, err := dedupe.Run(a.store(), sm, a.cfg.Capture.FingerprintLength, applyDuplicates, a.logger)
	if err != nil {
		return err
	}

	if len(report.Duplicates) == 0 {
		ui.PrintSuccess("No duplicate fingerprints")
		return nil
	}
	for _, fp := range report.Duplicates {
		fmt.Println(fp)
	}

	if report.Applied != nil {
		ui.PrintInfo("Marked default", fmt.Sprintf("%d users", len(report.Applied.Marked)))
		ui.PrintInfo("New default fingerprints", fmt.Sprintf("%d", report.Applied.Added))
		if report.Applied.RemoveFailures > 0 {
			ui.PrintWarning("Some screenshots could not be removed", report.Applied.RemoveFailures)
		}
	}
	return nil
}
