// Package storage manages the screenshot directory of the gallery.
//
// Each user owns two files: `<username>.png`, written by the capture
// command, and `<username>-thumbnail.png`, derived from it. Placeholder
// pages have both removed once they are recognised, so the directory only
// ever holds screenshots worth publishing.
//
// Usage:
//
//	manager, err := storage.NewManager("screenshots")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := manager.RemoveArtifacts("alice"); err != nil {
//	    log.Printf("cleanup failed: %v", err)
//	}
package storage
