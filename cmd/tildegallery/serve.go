package main

import (
	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/preview"
	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a built archive locally for review",
	Long: `Load the gallery archive into memory and serve it over HTTP, so the pages
can be checked in a browser before publishing. Stop with Ctrl-C.`,
	Example: `  tildegallery serve --addr 127.0.0.1:8080`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("archive", "", "path of the archive to serve")
	serveCmd.Flags().String("addr", "", "listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	s, err := preview.Load(a.cfg.Gallery.ArchivePath)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	ui.PrintInfo("Serving", "http://"+a.cfg.Preview.Addr+"/")
	return preview.NewServer(s, a.logger).Run(ctx, a.cfg.Preview.Addr)
}
