// Package insights implements the incremental reporting-job synchronization
// engine: sliding report windows, asynchronous job orchestration under
// timeout and backoff policy, and watermark-checkpointed result streaming.
package insights

import "context"

type (
	// JobHandle is the opaque remote-side identifier of an asynchronous
	// report computation.
	JobHandle string

	// JobStatus is the remote scheduler's report-run state. Values are the
	// platform's own status strings.
	JobStatus string

	// JobState is one observation of a polled job.
	JobState struct {
		Status          JobStatus
		PercentComplete int
	}

	// Service is the remote-platform port the engine drives: submit a job
	// with parameters, poll a handle for status and percent, and iterate a
	// completed handle's result pages.
	Service interface {
		// SubmitJob issues the asynchronous report computation request.
		// A failure that wraps ErrJobNotStarted is treated as "the job did
		// not start" and retried by the Runner; any other error propagates
		// unretried.
		SubmitJob(ctx context.Context, params Params) (JobHandle, error)

		// PollJob re-reads the job's status and completion percentage.
		PollJob(ctx context.Context, handle JobHandle) (JobState, error)

		// JobResults returns a pager over a completed job's result rows.
		// Pages are fetched lazily as the pager advances.
		JobResults(ctx context.Context, handle JobHandle) (ResultPager, error)
	}

	// ResultPager iterates result rows in the database/sql.Rows style:
	//
	//	for pager.Next(ctx) {
	//	    row := pager.Row()
	//	}
	//	if err := pager.Err(); err != nil { ... }
	ResultPager interface {
		// Next advances to the next row, fetching further pages as needed.
		// It returns false when the rows are exhausted or an error occurred.
		Next(ctx context.Context) bool

		// Row returns the current raw attribute mapping.
		Row() map[string]any

		// Err returns the first error encountered while paging, if any.
		Err() error
	}
)

// Report-run states as reported by the platform.
const (
	JobNotStarted JobStatus = "Job Not Started"
	JobStarted    JobStatus = "Job Started"
	JobRunning    JobStatus = "Job Running"
	JobCompleted  JobStatus = "Job Completed"
	JobFailed     JobStatus = "Job Failed"
	JobSkipped    JobStatus = "Job Skipped"
)

// IsTerminal reports whether the status is a final state: the job will make
// no further progress and polling should stop.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobSkipped:
		return true
	default:
		return false
	}
}
