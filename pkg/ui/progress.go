package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// CaptureProgress prints a one-line progress bar while pages are captured
type CaptureProgress struct {
	mu        sync.Mutex
	total     int
	done      int
	failed    int
	last      string
	startTime time.Time
	now       func() time.Time
}

// NewCaptureProgress creates a tracker; the total is set by CapturesQueued
func NewCaptureProgress() *CaptureProgress {
	return &CaptureProgress{startTime: time.Now(), now: time.Now}
}

// CapturesQueued resets the tracker for total captures
func (p *CaptureProgress) CapturesQueued(total int) {
	p.mu.Lock()
	p.total = total
	p.done = 0
	p.failed = 0
	p.startTime = p.now()
	p.mu.Unlock()

	printf(false, "%s %s\n", Magenta("[CAPTURING]"), Yellow(fmt.Sprintf("%d stale pages", total)))
}

// CaptureDone records one finished capture and redraws the bar
func (p *CaptureProgress) CaptureDone(username string, err error) {
	p.mu.Lock()
	p.done++
	if err != nil {
		p.failed++
	}
	p.last = username
	line := p.line()
	finished := p.done >= p.total
	p.mu.Unlock()

	printf(false, "\r%s", line)
	if finished {
		printf(false, "\n")
	}
}

// Counts returns finished and failed captures so far
func (p *CaptureProgress) Counts() (done, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed
}

// Rate returns captures per minute since CapturesQueued
func (p *CaptureProgress) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate()
}

func (p *CaptureProgress) rate() float64 {
	elapsed := p.now().Sub(p.startTime).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.done) / elapsed
}

// Bar renders the progress bar
func (p *CaptureProgress) Bar() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar()
}

func (p *CaptureProgress) bar() string {
	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		p.done, p.total)
}

func (p *CaptureProgress) line() string {
	status := Green("[CAPTURED]")
	if p.failed > 0 {
		status = Yellow("[CAPTURED]")
	}
	return fmt.Sprintf("%s %s failed: %d %s %-20s",
		status, p.bar(), p.failed,
		Dim(fmt.Sprintf("%.1f/min", p.rate())),
		"~"+p.last)
}
