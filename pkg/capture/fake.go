package capture

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/storage"
)

// FakeResponse is a canned answer of the Fake capturer
type FakeResponse struct {
	Fingerprint string
	Err         error
	// Delay blocks the capture, honouring ctx
	Delay time.Duration
}

// Call records one invocation of the Fake capturer
type Call struct {
	URL    string
	Output string
}

// Fake is a Capturer returning canned results, for tests
type Fake struct {
	// Responses keyed by URL; Default answers everything else
	Responses map[string]FakeResponse
	Default   FakeResponse
	// WriteFiles creates the artifact and thumbnail on success
	WriteFiles bool

	mu    sync.Mutex
	calls []Call
}

// NewFake creates a fake that fingerprints every page with fp
func NewFake(fp string) *Fake {
	return &Fake{
		Responses: make(map[string]FakeResponse),
		Default:   FakeResponse{Fingerprint: fp},
	}
}

// On sets the response for url and returns the fake for chaining
func (f *Fake) On(url string, resp FakeResponse) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Responses == nil {
		f.Responses = make(map[string]FakeResponse)
	}
	f.Responses[url] = resp
	return f
}

// Capture implements Capturer
func (f *Fake) Capture(ctx context.Context, url, outputPath string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{URL: url, Output: outputPath})
	resp, ok := f.Responses[url]
	if !ok {
		resp = f.Default
	}
	f.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, errors.Capture("fake", ErrTimeout)
		case <-time.After(resp.Delay):
		}
	}
	if resp.Err != nil {
		return Result{}, errors.Capture("fake", resp.Err)
	}

	thumb := storage.ThumbnailFor(outputPath)
	if f.WriteFiles {
		for _, p := range []string{outputPath, thumb} {
			if err := os.WriteFile(p, []byte(resp.Fingerprint), 0644); err != nil {
				return Result{}, errors.Capture("fake", err)
			}
		}
	}
	return Result{Fingerprint: resp.Fingerprint, Artifact: outputPath, Thumbnail: thumb}, nil
}

// Calls returns the recorded invocations in call order
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many captures were requested
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
