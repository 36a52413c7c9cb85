package capture

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/storage"
)

// ErrTimeout is returned when the capture command outlives its deadline
var ErrTimeout = stderrors.New("capture timed out")

// Result is the outcome of a successful capture
type Result struct {
	Fingerprint string
	Artifact    string
	Thumbnail   string
}

// Capturer takes a screenshot of url and writes it to outputPath.
// Any returned error means the capture failed and Result is empty.
type Capturer interface {
	Capture(ctx context.Context, url, outputPath string) (Result, error)
}

// TargetURL builds the page address of username from a pattern containing {username}
func TargetURL(pattern, username string) string {
	return strings.ReplaceAll(pattern, "{username}", url.PathEscape(username))
}

// Options configures a CommandCapturer
type Options struct {
	Command        string
	Args           []string
	Timeout        time.Duration
	ThumbnailWidth int
	Logger         logger.Logger
}

// CommandCapturer runs an external screenshot program per capture
type CommandCapturer struct {
	opts   Options
	logger logger.Logger
}

// NewCommandCapturer creates a capturer for the given command
func NewCommandCapturer(opts Options) *CommandCapturer {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = 320
	}
	return &CommandCapturer{
		opts:   opts,
		logger: log.WithField("component", "capture"),
	}
}

// Capture runs the command under a hard deadline, then fingerprints the
// artifact and writes its thumbnail. A command that exceeds the deadline is
// killed and reported as ErrTimeout.
func (c *CommandCapturer) Capture(ctx context.Context, target, outputPath string) (res Result, err error) {
	thumb := storage.ThumbnailFor(outputPath)
	// Leftovers from a previous run must not survive into this one
	if err := discard(outputPath, thumb); err != nil {
		return Result{}, errors.Capture("clear artifact", err)
	}
	defer func() {
		if err != nil {
			_ = discard(outputPath, thumb)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.opts.Command, expandArgs(c.opts.Args, target, outputPath)...)
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, errors.Capture("run "+c.opts.Command, fmt.Errorf("%w after %s", ErrTimeout, c.opts.Timeout))
	}
	if err != nil {
		c.logger.DebugWithFields("Capture command output", map[string]interface{}{
			"url":    target,
			"output": truncate(out.String(), 512),
		})
		return Result{}, errors.Capture("run "+c.opts.Command, err)
	}

	fp, err := Fingerprint(outputPath)
	if err != nil {
		return Result{}, errors.Capture("fingerprint", err)
	}

	if err := WriteThumbnail(outputPath, thumb, c.opts.ThumbnailWidth); err != nil {
		return Result{}, errors.Capture("thumbnail", err)
	}

	c.logger.DebugWithFields("Capture finished", map[string]interface{}{
		"url":         target,
		"fingerprint": fp,
		"duration_ms": elapsed.Milliseconds(),
	})

	return Result{Fingerprint: fp, Artifact: outputPath, Thumbnail: thumb}, nil
}

// discard removes the given files; missing ones are fine
func discard(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func expandArgs(args []string, target, outputPath string) []string {
	r := strings.NewReplacer("{url}", target, "{output}", outputPath)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// Fingerprint returns the hex MD5 digest of the file at path
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteThumbnail scales the image at src to width pixels wide, keeping the
// aspect ratio, and saves it at dst.
func WriteThumbnail(src, dst string, width int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open screenshot: %w", err)
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, dst); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
