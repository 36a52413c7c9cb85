package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColor(false)
	SetQuietMode(false)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t)

	PrintInfo("Users", "12")
	PrintError("Upload failed", errors.New("connection refused"))
	PrintWarning("Template missing")
	PrintSuccess("done")

	assert.Equal(t, "Users: 12\nUpload failed: connection refused\nTemplate missing\ndone\n", buf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintLogo()
	PrintInfo("Users", "12")
	PrintSuccess("done")
	PrintError("broken")

	assert.Equal(t, "broken\n", buf.String())
}

func TestColors(t *testing.T) {
	SetColor(true)
	t.Cleanup(func() { SetColor(false) })
	assert.Equal(t, "\033[31mx\033[0m", Red("x"))

	SetColor(false)
	assert.Equal(t, "x", Red("x"))
}

func TestCaptureProgress(t *testing.T) {
	buf := capture(t)

	clock := time.Unix(0, 0)
	p := NewCaptureProgress()
	p.now = func() time.Time { return clock }

	p.CapturesQueued(4)
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░] 0/4", p.Bar())

	clock = clock.Add(time.Minute)
	p.CaptureDone("alice", nil)
	p.CaptureDone("bob", errors.New("timeout"))

	done, failed := p.Counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, failed)
	assert.Equal(t, "[██████████░░░░░░░░░░] 2/4", p.Bar())
	assert.InDelta(t, 2.0, p.Rate(), 0.001)

	p.CaptureDone("carol", nil)
	p.CaptureDone("dave", nil)

	out := buf.String()
	assert.Contains(t, out, "4 stale pages")
	assert.Contains(t, out, "~dave")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

type fakeSender struct {
	titles []string
}

func (f *fakeSender) Send(title, message string) error {
	f.titles = append(f.titles, title)
	return errors.New("no display")
}

func TestNotifier(t *testing.T) {
	buf := capture(t)
	sender := &fakeSender{}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("Gallery updated", "3 pages captured")
	n.SendError("Upload failed", "permission denied")

	require.Len(t, sender.titles, 2)
	assert.Contains(t, buf.String(), "Gallery updated: 3 pages captured")
	assert.Contains(t, buf.String(), "Upload failed: permission denied")
}

func TestDisabledNotifierOnlyPrints(t *testing.T) {
	buf := capture(t)
	NewNotifier(false).SendSuccess("ok", "fine")
	assert.Contains(t, buf.String(), "ok: fine")
}

func TestAppleQuote(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, appleQuote(`say "hi"`))
}
