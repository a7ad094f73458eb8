// Package batch runs independent document jobs through a bounded worker
// pool. Results come back indexed by submission order regardless of
// completion order, and one job's failure never touches its siblings.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Artifact is the output reference a finished job leaves behind. Warnings
// carry non-fatal conditions such as a discarded enhancement.
type Artifact struct {
	Path     string   `json:"path,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Job is one unit of work. Run executes the whole chain for a single
// document and must be safe to call concurrently with sibling jobs.
type Job struct {
	ID   string
	Name string
	Run  func(ctx context.Context) (Artifact, error)
}

// Result pairs a job with its outcome. Index is the submission position;
// Err is nil on success.
type Result struct {
	JobID    string
	Name     string
	Index    int
	Artifact Artifact
	Err      error
	Elapsed  time.Duration
}

// Run executes jobs with at most maxParallel running concurrently; values
// below 1 are coerced to 1. The returned slice always has len(jobs) entries
// in submission order. Cancelling ctx stops dispatch of unstarted jobs and
// records the context error in their results; jobs already running see the
// cancellation through their own ctx.
func Run(ctx context.Context, jobs []Job, maxParallel int) []Result {
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]Result, len(jobs))
	limiter := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		results[i] = Result{JobID: job.ID, Name: job.Name, Index: i}

		select {
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		case limiter <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-limiter }()
			start := time.Now()
			defer func() {
				results[i].Elapsed = time.Since(start)
				if r := recover(); r != nil {
					log.Error().Str("job", job.ID).Str("name", job.Name).
						Interface("panic", r).Msg("job panicked")
					results[i].Err = fmt.Errorf("job %s panicked: %v", job.ID, r)
				}
			}()
			artifact, err := job.Run(ctx)
			results[i].Artifact = artifact
			results[i].Err = err
		}(i, job)
	}

	wg.Wait()
	return results
}
