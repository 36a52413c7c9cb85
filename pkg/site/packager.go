package site

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/Tweska/TildeverseGallery/pkg/cache"
	"github.com/Tweska/TildeverseGallery/pkg/capture"
	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/storage"
)

// EntryMode is applied to every archive entry
const EntryMode = 0644

// ScreenshotPrefix is the archive directory holding screenshots
const ScreenshotPrefix = "screenshots"

// ArtifactLister lists the screenshot files that exist for users
type ArtifactLister interface {
	Artifacts(usernames []string) []storage.Artifact
}

// Options configures a Packager
type Options struct {
	TemplateDir  string
	TemplateName string
	ArchivePath  string
	SinglePage   bool
	URLPattern   string
}

// Packager renders the gallery pages and writes the archive
type Packager struct {
	opts      Options
	artifacts ArtifactLister
	logger    logger.Logger
}

// NewPackager creates a packager
func NewPackager(opts Options, artifacts ArtifactLister, log logger.Logger) *Packager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Packager{opts: opts, artifacts: artifacts, logger: log.WithField("component", "site")}
}

// BuildReport describes a written archive
type BuildReport struct {
	Path        string
	Entries     []string
	Pages       int
	Assets      int
	Screenshots int
	Bytes       int64
}

type entry struct {
	name string
	// exactly one of body and path is set
	body []byte
	path string
}

// Build renders one page per bucket and writes pages, template assets and
// surviving screenshots into a gzip compressed tar at the archive path.
// Entry order, names, modes and timestamps depend only on the inputs.
func (p *Packager) Build(ctx context.Context, users []*cache.UserRecord, generation int64) (*BuildReport, error) {
	tmpl, err := LoadTemplate(p.opts.TemplateDir, p.opts.TemplateName)
	if err != nil {
		return nil, err
	}

	shots := p.screenshots(users)
	published := make(map[string]bool, len(shots))
	for _, a := range shots {
		published[a.Name] = true
	}

	buckets := Bin(users, p.opts.SinglePage)
	names := BucketNames(p.opts.SinglePage)
	updated := FormatTime(generation)

	var entries []entry
	for _, b := range buckets {
		data := PageData{
			Bucket:     b.Name,
			Buckets:    names,
			UpdateTime: updated,
			Summary:    summary(len(b.Users), len(users)),
			Users:      p.views(b.Users, published),
		}
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, filepath.Base(p.opts.TemplateName), data); err != nil {
			return nil, pageError(b.Name, err)
		}
		entries = append(entries, entry{name: PageName(b.Name), body: buf.Bytes()})
	}
	pages := len(entries)

	assets, err := p.assets()
	if err != nil {
		return nil, err
	}
	entries = append(entries, assets...)

	for _, a := range shots {
		entries = append(entries, entry{name: path.Join(ScreenshotPrefix, a.Name), path: a.Path})
	}

	size, err := writeArchive(ctx, p.opts.ArchivePath, entries, time.Unix(generation, 0))
	if err != nil {
		return nil, err
	}

	report := &BuildReport{
		Path:        p.opts.ArchivePath,
		Pages:       pages,
		Assets:      len(assets),
		Screenshots: len(shots),
		Bytes:       size,
	}
	for _, e := range entries {
		report.Entries = append(report.Entries, e.name)
	}

	p.logger.InfoWithFields("Archive written", map[string]interface{}{
		"path":        report.Path,
		"pages":       report.Pages,
		"assets":      report.Assets,
		"screenshots": report.Screenshots,
		"bytes":       report.Bytes,
	})
	return report, nil
}

// screenshots lists the files of users that are not placeholders
func (p *Packager) screenshots(users []*cache.UserRecord) []storage.Artifact {
	var names []string
	for _, u := range users {
		if !u.IsDefault() {
			names = append(names, u.Username)
		}
	}
	return p.artifacts.Artifacts(names)
}

func (p *Packager) views(users []*cache.UserRecord, published map[string]bool) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		v := UserView{
			Username:   u.Username,
			URL:        capture.TargetURL(p.opts.URLPattern, u.Username),
			LastActive: lastActive(u.ActivityTimestamp),
			IsDefault:  u.IsDefault(),
			HasError:   u.HasError(),
		}
		if name := storage.ArtifactName(u.Username); published[name] {
			v.Screenshot = path.Join(ScreenshotPrefix, name)
		}
		if name := storage.ThumbnailName(u.Username); published[name] {
			v.Thumbnail = path.Join(ScreenshotPrefix, name)
		}
		out = append(out, v)
	}
	return out
}

// assets returns every file of the template directory except the template
func (p *Packager) assets() ([]entry, error) {
	var out []entry
	err := filepath.WalkDir(p.opts.TemplateDir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(p.opts.TemplateDir, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == filepath.ToSlash(p.opts.TemplateName) {
			return nil
		}
		out = append(out, entry{name: rel, path: full})
		return nil
	})
	if err != nil {
		return nil, errors.Template("read template assets", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// writeArchive writes entries to a temporary file next to dst and renames
// it into place.
func writeArchive(ctx context.Context, dst string, entries []entry, modTime time.Time) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Archive("create archive directory", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, errors.Archive("create archive", err)
	}
	tmp := f.Name()
	fail := func(op string, err error) (int64, error) {
		f.Close()
		os.Remove(tmp)
		return 0, errors.Archive(op, err)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fail("write archive", err)
		}
		if err := writeEntry(tw, e, modTime); err != nil {
			return fail("write "+e.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fail("close tar", err)
	}
	if err := gz.Close(); err != nil {
		return fail("close gzip", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync archive", err)
	}
	info, err := f.Stat()
	if err != nil {
		return fail("stat archive", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, errors.Archive("close archive", err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return 0, errors.Archive("chmod archive", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, errors.Archive("replace archive", err)
	}
	return info.Size(), nil
}

func writeEntry(tw *tar.Writer, e entry, modTime time.Time) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.name,
		Mode:     EntryMode,
		ModTime:  modTime,
	}

	if e.path == "" {
		hdr.Size = int64(len(e.body))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(e.body)
		return err
	}

	src, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr.Size = info.Size()
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("copy %s: %w", e.path, err)
	}
	return nil
}
