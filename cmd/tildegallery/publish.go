package main

import (
	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the last built archive to the server",
	Long: `Stream the gallery archive to the server and unpack it into the configured
remote directory, creating the directory if needed.`,
	Example: `  tildegallery publish --archive ./gallery.tar.gz`,
	Args:    cobra.NoArgs,
	RunE:    runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("archive", "", "path of the archive to upload")
	publishCmd.Flags().String("inventory-mode", "", "ssh to upload over SSH, local to unpack on this machine")
}

func runPublish(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if err := a.publish(ctx); err != nil {
		return err
	}
	ui.PrintSuccess("Published to " + a.cfg.Upload.RemoteDir)
	return nil
}
