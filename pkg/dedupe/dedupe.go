package dedupe

import (
	"sort"

	"github.com/Tweska/TildeverseGallery/pkg/cache"
	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
)

// Remover deletes the screenshots of a user
type Remover interface {
	RemoveArtifacts(username string) error
}

// Detect returns the fingerprints of the expected length held by more than
// one user. Every such fingerprint is taken to be a placeholder page.
func Detect(users map[string]*cache.UserRecord, length int) cache.FingerprintSet {
	holders := make(map[string]int)
	for _, rec := range users {
		fp := rec.Fingerprint()
		if fp == "" || len(fp) != length {
			continue
		}
		holders[fp]++
	}

	dups := cache.NewFingerprintSet()
	for fp, n := range holders {
		if n > 1 {
			dups.Add(fp)
		}
	}
	return dups
}

// ApplyReport describes the changes made by Apply
type ApplyReport struct {
	// Marked lists the users newly or already flagged as default, sorted
	Marked []string
	// Added is the number of fingerprints new to the default set
	Added int
	// RemoveFailures counts users whose screenshots could not be deleted
	RemoveFailures int
}

// Apply flags every holder of a duplicated fingerprint as default, deletes
// their screenshots and merges dups into the default set. Holders include
// the first user to publish the page. Activity and generation timestamps
// are never touched.
func Apply(doc *cache.Document, dups cache.FingerprintSet, remover Remover, log logger.Logger) ApplyReport {
	if log == nil {
		log = logger.GetLogger()
	}

	var report ApplyReport
	for name, rec := range doc.Users {
		if rec.Result == nil || !dups.Has(rec.Result.Fingerprint) {
			continue
		}
		rec.Result.IsDefault = true
		report.Marked = append(report.Marked, name)

		if err := remover.RemoveArtifacts(name); err != nil {
			report.RemoveFailures++
			log.WithError(err).WarnWithFields("Failed to remove default page screenshots", map[string]interface{}{
				"username": name,
			})
		}
	}
	sort.Strings(report.Marked)

	report.Added = doc.DefaultFingerprints.Union(dups)
	return report
}

// Report is the outcome of a maintenance pass
type Report struct {
	Duplicates []string
	Applied    *ApplyReport
}

// Run loads the cache, reports duplicated fingerprints and, when update is
// set, applies them and saves the cache.
func Run(store *cache.Store, remover Remover, length int, update bool, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	doc := store.Load()
	dups := Detect(doc.Users, length)
	report := &Report{Duplicates: dups.Sorted()}

	log.InfoWithFields("Duplicate fingerprints detected", map[string]interface{}{
		"duplicates": dups.Len(),
		"users":      len(doc.Users),
	})

	if !update {
		return report, nil
	}

	applied := Apply(doc, dups, remover, log)
	report.Applied = &applied

	if err := store.Save(doc); err != nil {
		return nil, errors.CacheWrite("save cache", err)
	}

	logger.LogMetrics(log, "dedupe", map[string]interface{}{
		"marked":          len(applied.Marked),
		"added":           applied.Added,
		"remove_failures": applied.RemoveFailures,
		"default_total":   doc.DefaultFingerprints.Len(),
	})
	return report, nil
}
