// Package cache holds the persisted state of the gallery between runs.
//
// A Document records:
//   - the generation timestamp of the last completed update (the watermark)
//   - the set of fingerprints known to be placeholder pages
//   - one UserRecord per username, either Pending or Captured
//
// The Store loads the document once per run and saves it once at the end.
// Saves go through a temporary file in the same directory followed by a
// rename, so an interrupted run leaves the previous cache intact. A missing
// or corrupt cache file loads as an empty document.
package cache
