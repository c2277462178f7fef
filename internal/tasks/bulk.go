package tasks

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/visionary/internal/shared"
)

const (
	defaultWorkers = 4
	maxWorkers     = 8
)

// BulkOpts contains configuration for batch classification.
type BulkOpts struct {
	NumWorkers int     // Concurrent workers (default: 4, max: 8)
	RateLimit  float64 // Photos started per second (default: unlimited)
}

// FileResult is the outcome for one input path.
type FileResult struct {
	Path    string   `json:"path"`
	Outcome *Outcome `json:"outcome,omitempty"`
	Error   error    `json:"-"`
	Kind    string   `json:"error_kind,omitempty"`
	Message string   `json:"error,omitempty"`
}

// BulkResult summarises a batch.
type BulkResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
}

type bulkJob struct {
	index int
	path  string
}

type bulkDone struct {
	index  int
	result FileResult
}

// BulkClassify classifies many photos concurrently with rate limiting and progress tracking.
//
// Results are returned in input order. A file that fails is recorded and the batch continues. When ctx ends,
// files not yet started are reported with the context error and the call returns once workers have exited.
func (p *Pipeline) BulkClassify(ctx context.Context, progress chan<- ProgressUpdate, paths []string, opts BulkOpts) *BulkResult {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	total := len(paths)
	result := &BulkResult{Total: total, Results: make([]FileResult, total)}
	sendProgress(progress, queueUpdate(total))

	jobs := make(chan bulkJob)
	done := make(chan bulkDone, total)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go p.classifyWorker(ctx, &wg, progress, total, jobs, done)
	}

	started := make([]bool, total)
	var stopErr error
	go func() {
		defer close(jobs)
		for i, path := range paths {
			if err := limiter.Wait(ctx); err != nil {
				stopErr = err
				return
			}
			select {
			case jobs <- bulkJob{index: i, path: path}:
				started[i] = true
			case <-ctx.Done():
				stopErr = ctx.Err()
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for d := range done {
		completed++
		result.Results[d.index] = d.result

		if d.result.Error == nil {
			result.Succeeded++
			sendProgress(progress, filedUpdate(completed, total, d.result.Path, d.result.Outcome))
		} else {
			result.Failed++
			sendProgress(progress, failedUpdate(completed, total, d.result.Path, d.result.Error))
		}
	}

	for i, path := range paths {
		if !started[i] {
			result.Results[i] = failure(path, stopErr)
			result.Failed++
		}
	}

	sendProgress(progress, batchDoneUpdate(result))
	return result
}

// classifyWorker is a worker goroutine that files photos from the jobs channel.
func (p *Pipeline) classifyWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	progress chan<- ProgressUpdate,
	total int,
	jobs <-chan bulkJob,
	done chan<- bulkDone,
) {
	defer wg.Done()

	for job := range jobs {
		sendProgress(progress, classifyingUpdate(job.index+1, total, job.path))

		out, err := p.ClassifyFile(ctx, job.path)
		if err != nil {
			done <- bulkDone{index: job.index, result: failure(job.path, err)}
			continue
		}
		done <- bulkDone{index: job.index, result: FileResult{Path: job.path, Outcome: out}}
	}
}

func failure(path string, err error) FileResult {
	return FileResult{
		Path:    path,
		Error:   err,
		Kind:    shared.ErrorKind(err),
		Message: err.Error(),
	}
}
