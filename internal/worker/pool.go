package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tweska/TildeverseGallery/pkg/capture"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/ratelimit"
)

// Job is one page to capture
type Job struct {
	Username string
	URL      string
	Output   string
}

// Result is the outcome of a Job. Err is set when the capture failed.
type Result struct {
	Job      Job
	Capture  capture.Result
	Err      error
	Duration time.Duration
}

// Pool runs captures on a bounded number of workers. Results are delivered
// on a single channel so the caller can apply them serially.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	capturer    capture.Capturer
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewPool creates a pool of numWorkers capture workers
func NewPool(numWorkers int, capturer capture.Capturer, limiter ratelimit.Limiter, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		capturer:    capturer,
		rateLimiter: limiter,
		logger:      log,
	}
}

// Start launches the workers. Cancelling ctx stops them after their
// current capture.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.logger.InfoWithFields("Starting capture pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight captures and then closes
// the result channel. Submit must not be called after Stop.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Debug("Capture pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("capture pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the channel results are delivered on
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		if p.ctx.Err() != nil {
			return
		}

		result := p.process(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := p.rateLimiter.Wait(p.ctx); err != nil {
		result.Err = fmt.Errorf("rate limit wait: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	p.logger.DebugWithFields("Worker capturing page", map[string]interface{}{
		"worker_id": workerID,
		"username":  job.Username,
		"url":       job.URL,
	})

	res, err := p.capturer.Capture(p.ctx, job.URL, job.Output)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}

	result.Capture = res
	return result
}
