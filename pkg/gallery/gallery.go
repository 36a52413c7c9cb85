package gallery

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Tweska/TildeverseGallery/internal/worker"
	"github.com/Tweska/TildeverseGallery/pkg/cache"
	"github.com/Tweska/TildeverseGallery/pkg/capture"
	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/inventory"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/ratelimit"
)

// Artifacts locates and removes the screenshots of a user
type Artifacts interface {
	ArtifactPath(username string) string
	RemoveArtifacts(username string) error
}

// Observer is told about capture progress. Calls come from the goroutine
// running Update.
type Observer interface {
	CapturesQueued(total int)
	CaptureDone(username string, err error)
}

// Options tunes an update cycle
type Options struct {
	// URLPattern builds the page address; {username} is substituted
	URLPattern string
	// Concurrency is the number of captures in flight
	Concurrency int
	// Limiter paces captures; nil means no pacing
	Limiter ratelimit.Limiter
	// Force recaptures every user regardless of the watermark
	Force bool
	// Now is the clock; defaults to time.Now
	Now func() time.Time
	// Observer, when set, follows the captures of a cycle
	Observer Observer
}

// Gallery runs the incremental update cycle
type Gallery struct {
	store     *cache.Store
	source    inventory.Source
	capturer  capture.Capturer
	artifacts Artifacts
	opts      Options
	logger    logger.Logger
}

// New creates a Gallery
func New(store *cache.Store, source inventory.Source, capturer capture.Capturer, artifacts Artifacts, opts Options, log logger.Logger) *Gallery {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Gallery{
		store:     store,
		source:    source,
		capturer:  capturer,
		artifacts: artifacts,
		opts:      opts,
		logger:    log,
	}
}

// Stats counts what one capture pass did
type Stats struct {
	Processed int
	Skipped   int
	Failed    int
	Defaults  int
}

// UpdateReport summarises one update cycle
type UpdateReport struct {
	RunID               string
	Users               int
	Dropped             int
	GenerationTimestamp int64
	Duration            time.Duration
	Stats

	// Document is the persisted cache after the cycle
	Document *cache.Document
}

// Update runs one cycle: load the cache, fetch the inventory, merge,
// capture stale users and persist the cache exactly once. An inventory
// failure or an unwritable cache aborts the cycle and leaves the previous
// cache on disk untouched.
func (g *Gallery) Update(ctx context.Context) (*UpdateReport, error) {
	start := g.opts.Now()
	runID := ulid.Make().String()
	log := g.logger.WithField("run_id", runID)

	logger.LogComponentStart(log, "update", map[string]interface{}{
		"cache":       g.store.Path(),
		"concurrency": g.opts.Concurrency,
		"force":       g.opts.Force,
	})

	doc := g.store.Load()
	watermark := doc.GenerationTimestamp

	entries, err := g.source.Fetch(ctx)
	if err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeUnknown {
			err = errors.Inventory("fetch", err)
		}
		return nil, err
	}

	merged := Merge(doc.Users, entries)
	dropped := 0
	for name := range doc.Users {
		if _, ok := merged[name]; !ok {
			dropped++
		}
	}
	doc.Users = merged

	stats, err := g.process(ctx, log, doc, watermark)
	if err != nil {
		return nil, err
	}

	doc.GenerationTimestamp = start.Unix()
	if doc.GenerationTimestamp < watermark {
		doc.GenerationTimestamp = watermark
	}

	if err := g.store.Save(doc); err != nil {
		return nil, errors.CacheWrite("save cache", err)
	}

	report := &UpdateReport{
		RunID:               runID,
		Users:               len(doc.Users),
		Dropped:             dropped,
		GenerationTimestamp: doc.GenerationTimestamp,
		Duration:            g.opts.Now().Sub(start),
		Stats:               *stats,
		Document:            doc,
	}

	logger.LogMetrics(log, "update", map[string]interface{}{
		"users":                report.Users,
		"dropped":              report.Dropped,
		"processed":            report.Processed,
		"skipped":              report.Skipped,
		"failed":               report.Failed,
		"defaults":             report.Defaults,
		"generation_timestamp": report.GenerationTimestamp,
		"duration_ms":          report.Duration.Milliseconds(),
	})

	return report, nil
}

// process captures every stale record of doc and applies the results. The
// watermark is the generation timestamp from before this cycle.
func (g *Gallery) process(ctx context.Context, log logger.Logger, doc *cache.Document, watermark int64) (*Stats, error) {
	stats := &Stats{}

	var jobs []worker.Job
	for _, rec := range doc.SortedUsers() {
		if !g.opts.Force && !IsStale(rec, watermark) {
			stats.Skipped++
			continue
		}
		jobs = append(jobs, worker.Job{
			Username: rec.Username,
			URL:      capture.TargetURL(g.opts.URLPattern, rec.Username),
			Output:   g.artifacts.ArtifactPath(rec.Username),
		})
	}

	log.InfoWithFields("Capturing stale pages", map[string]interface{}{
		"stale":     len(jobs),
		"skipped":   stats.Skipped,
		"watermark": watermark,
	})

	if len(jobs) == 0 {
		return stats, nil
	}
	if g.opts.Observer != nil {
		g.opts.Observer.CapturesQueued(len(jobs))
	}

	pool := worker.NewPool(g.opts.Concurrency, g.capturer, g.opts.Limiter, log)
	pool.Start(ctx)

	go func() {
		defer pool.Stop()
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				log.WithError(err).Warn("Stopped submitting captures")
				return
			}
		}
	}()

	// Results are applied on this goroutine only
	for res := range pool.Results() {
		g.apply(log, doc, res, stats)
		if g.opts.Observer != nil {
			g.opts.Observer.CaptureDone(res.Job.Username, res.Err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update cancelled after %d of %d captures: %w", stats.Processed, len(jobs), err)
	}
	return stats, nil
}

func (g *Gallery) apply(log logger.Logger, doc *cache.Document, res worker.Result, stats *Stats) {
	rec, ok := doc.Users[res.Job.Username]
	if !ok {
		return
	}
	stats.Processed++

	fp := ""
	if res.Err == nil {
		fp = res.Capture.Fingerprint
	}
	rec.Result = &cache.CaptureResult{
		Fingerprint: fp,
		HasError:    res.Err != nil,
		IsDefault:   doc.DefaultFingerprints.Has(fp),
	}

	logger.LogCapture(log, rec.Username, fp, res.Err == nil, rec.Result.IsDefault, res.Err)

	if res.Err != nil {
		stats.Failed++
		return
	}
	if rec.Result.IsDefault {
		stats.Defaults++
		if err := g.artifacts.RemoveArtifacts(rec.Username); err != nil {
			log.WithError(err).WarnWithFields("Failed to remove default page screenshots", map[string]interface{}{
				"username": rec.Username,
			})
		}
	}
}
