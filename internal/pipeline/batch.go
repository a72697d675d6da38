package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/recognition"
)

// DefaultBatchWorkers bounds concurrent submissions in GradeBatch.
const DefaultBatchWorkers = 4

// Job is one submission to grade in a batch. When Rows is empty the
// Scan is recognized first.
type Job struct {
	Submission *model.Submission
	Rows       []model.RecognizedRow
	Scan       recognition.Scan
}

// BatchResult pairs a job's artifacts with its error. Index matches the
// job's position in the input.
type BatchResult struct {
	Artifacts *Artifacts
	Err       error
}

// GradeBatch grades jobs concurrently with at most workers in flight.
// One submission failing does not stop the others. The returned error is
// the context error if ctx ended before every job started.
func (p *Pipeline) GradeBatch(ctx context.Context, exam *model.Exam, jobs []Job, workers int) ([]BatchResult, error) {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	results := make([]BatchResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(jobs); j++ {
				results[j].Err = err
			}
			_ = g.Wait()
			return results, err
		}

		g.Go(func() error {
			job := jobs[i]
			var arts *Artifacts
			var err error
			if len(job.Rows) > 0 {
				arts, err = p.Grade(ctx, exam, job.Submission, job.Rows)
			} else {
				arts, err = p.Process(ctx, exam, job.Submission, job.Scan)
			}
			results[i] = BatchResult{Artifacts: arts, Err: err}
			if err != nil {
				p.logger.Warn("batch grading failed", "submission", job.Submission.ID, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results, ctx.Err()
}
