package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tweska/TildeverseGallery/pkg/auth"
	"github.com/Tweska/TildeverseGallery/pkg/cache"
	"github.com/Tweska/TildeverseGallery/pkg/capture"
	"github.com/Tweska/TildeverseGallery/pkg/config"
	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/gallery"
	"github.com/Tweska/TildeverseGallery/pkg/inventory"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/ratelimit"
	"github.com/Tweska/TildeverseGallery/pkg/remote"
	"github.com/Tweska/TildeverseGallery/pkg/site"
	"github.com/Tweska/TildeverseGallery/pkg/storage"
)

var (
	stringFlags   = []string{"cache-file", "screenshot-dir", "template-dir", "archive", "inventory-mode", "addr", "log-level"}
	boolFlags     = []string{"single", "upload"}
	intFlags      = []string{"concurrency"}
	durationFlags = []string{"capture-timeout"}
)

// commandFlags collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects them.
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()
	for _, name := range stringFlags {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			flags[name] = v
		}
	}
	for _, name := range boolFlags {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			flags[name] = v
		}
	}
	for _, name := range intFlags {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			flags[name] = v
		}
	}
	for _, name := range durationFlags {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			flags[name] = v
		}
	}
	return flags
}

func addCacheFlags(cmd *cobra.Command) {
	cmd.Flags().String("cache-file", "", "path of the cache document")
	cmd.Flags().String("screenshot-dir", "", "directory holding the screenshots")
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("template-dir", "", "directory holding the page template and its assets")
	cmd.Flags().String("archive", "", "path of the archive to write")
	cmd.Flags().Bool("single", false, "render one index page instead of one page per letter")
}

func addUpdateFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "number of captures in flight")
	cmd.Flags().Duration("capture-timeout", 0, "hard timeout of one capture")
	cmd.Flags().String("inventory-mode", "", "where the listing command runs (ssh, local)")
}

// app carries the loaded configuration and the collaborators built from it
type app struct {
	cfg    *config.Config
	logger logger.Logger

	shell   remote.Shell
	closeFn func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return nil, errors.Config("load", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, errors.Config("logger", err)
	}
	log := logger.GetLogger().WithField("command", cmd.Name())
	log.WithField("version", version).Debug("tildegallery starting")
	return &app{cfg: cfg, logger: log}, nil
}

// remoteShell returns the shell the inventory and upload run in, dialing
// the server on first use in ssh mode. Dial failures are reported as kind.
func (a *app) remoteShell(ctx context.Context, kind errors.ErrorType) (remote.Shell, error) {
	if a.shell != nil {
		return a.shell, nil
	}
	if strings.EqualFold(a.cfg.Inventory.Mode, "local") {
		a.shell = remote.LocalRunner{}
		return a.shell, nil
	}

	creds := auth.NewManager()
	client, err := remote.Dial(ctx, a.cfg.Remote, creds.PassphraseFunc(a.cfg.Remote.IdentityFile), a.logger)
	if err != nil {
		return nil, errors.New(kind, "dial "+a.cfg.Remote.Addr(), err)
	}
	a.shell = client
	a.closeFn = client.Close
	return a.shell, nil
}

func (a *app) close() {
	if a.closeFn != nil {
		if err := a.closeFn(); err != nil {
			a.logger.WithError(err).Debug("Closing remote connection failed")
		}
	}
}

func (a *app) storage() (*storage.Manager, error) {
	sm, err := storage.NewManager(a.cfg.Gallery.ScreenshotDir)
	if err != nil {
		return nil, errors.CacheWrite("screenshot directory", err)
	}
	return sm, nil
}

func (a *app) store() *cache.Store {
	return cache.NewStore(a.cfg.Gallery.CacheFile, a.logger)
}

func (a *app) gallery(ctx context.Context, force bool, observer gallery.Observer) (*gallery.Gallery, error) {
	shell, err := a.remoteShell(ctx, errors.ErrorTypeInventory)
	if err != nil {
		return nil, err
	}
	sm, err := a.storage()
	if err != nil {
		return nil, err
	}

	source := inventory.NewCommandSource(shell, a.cfg.Inventory.Command, a.logger)
	capturer := capture.NewCommandCapturer(capture.Options{
		Command:        a.cfg.Capture.Command,
		Args:           a.cfg.Capture.Args,
		Timeout:        a.cfg.Capture.Timeout,
		ThumbnailWidth: a.cfg.Capture.ThumbnailWidth,
		Logger:         a.logger,
	})

	opts := gallery.Options{
		URLPattern:  a.cfg.Capture.URLPattern,
		Concurrency: a.cfg.Capture.Concurrency,
		Limiter:     ratelimit.New(a.cfg.Capture.RequestsPerMinute, a.cfg.Capture.RateLimitMode),
		Force:       force,
		Observer:    observer,
	}
	return gallery.New(a.store(), source, capturer, sm, opts, a.logger), nil
}

func (a *app) packager() (*site.Packager, error) {
	sm, err := a.storage()
	if err != nil {
		return nil, err
	}
	return site.NewPackager(site.Options{
		TemplateDir:  a.cfg.Gallery.TemplateDir,
		TemplateName: a.cfg.Gallery.TemplateName,
		ArchivePath:  a.cfg.Gallery.ArchivePath,
		SinglePage:   a.cfg.Gallery.SinglePage,
		URLPattern:   a.cfg.Capture.URLPattern,
	}, sm, a.logger), nil
}

// build packages doc into the configured archive
func (a *app) build(ctx context.Context, doc *cache.Document) (*site.BuildReport, error) {
	p, err := a.packager()
	if err != nil {
		return nil, err
	}
	users := doc.SortedUsers()
	if sm, err := a.storage(); err == nil {
		if missing := missingScreenshots(sm, users); len(missing) > 0 {
			a.logger.WarnWithFields("Captured users without a screenshot", map[string]interface{}{
				"count": len(missing),
				"users": missing,
			})
		}
	}
	return p.Build(ctx, users, doc.GenerationTimestamp)
}

// missingScreenshots names the users captured as real pages whose artifact
// is not on disk; they are published without a picture.
func missingScreenshots(sm *storage.Manager, users []*cache.UserRecord) []string {
	var out []string
	for _, u := range users {
		if u.Result == nil || u.IsDefault() || u.HasError() {
			continue
		}
		if !sm.HasArtifact(u.Username) {
			out = append(out, u.Username)
		}
	}
	return out
}

// publish uploads the configured archive
func (a *app) publish(ctx context.Context) error {
	shell, err := a.remoteShell(ctx, errors.ErrorTypeUpload)
	if err != nil {
		return err
	}
	uploader := remote.NewTarUploader(shell, a.logger)
	return uploader.Upload(ctx, a.cfg.Gallery.ArchivePath, a.cfg.Upload.RemoteDir)
}

func describeBuild(r *site.BuildReport) string {
	return fmt.Sprintf("%d pages, %d assets, %d screenshots, %d bytes", r.Pages, r.Assets, r.Screenshots, r.Bytes)
}
