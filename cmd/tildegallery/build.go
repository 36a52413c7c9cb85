package main

import (
	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write the gallery archive from the cache without capturing",
	Long: `Render the gallery pages from the current cache document and write the
archive. Nothing is fetched or captured; this is useful after editing the
template or running dedupe.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	addCacheFlags(buildCmd)
	addBuildFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	report, err := a.build(ctx, a.store().Load())
	if err != nil {
		return err
	}

	ui.PrintSuccess("Archive written: " + report.Path)
	ui.PrintInfo("Contents", describeBuild(report))
	return nil
}
