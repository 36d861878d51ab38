package jobx

import "github.com/Abraxas-365/drugcontent/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrJobNotFound    = jobxErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, "Job not found")
	ErrNotActive      = jobxErrors.Register("NOT_ACTIVE", errx.TypeConflict, "Job is not active")
	ErrJobActive      = jobxErrors.Register("JOB_ACTIVE", errx.TypeConflict, "Active jobs cannot be removed")
	ErrNotFailed      = jobxErrors.Register("NOT_FAILED", errx.TypeConflict, "Only failed jobs can be retried")
	ErrInvalidJob     = jobxErrors.Register("INVALID_JOB", errx.TypeValidation, "Invalid job definition")
	ErrInvalidState   = jobxErrors.Register("INVALID_STATE", errx.TypeValidation, "Unknown job state")
	ErrNoHandler      = jobxErrors.Register("NO_HANDLER", errx.TypeValidation, "No handler registered for job type")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, "Worker is already running")
	ErrBackend        = jobxErrors.Register("BACKEND", errx.TypeExternal, "Queue backend failure")
)

// NotFound builds the error backends return for an unknown job id.
func NotFound(id string) *errx.Error {
	return jobxErrors.New(ErrJobNotFound).WithDetail("job_id", id)
}

// NotActive builds the error for an ownership transition on a job that is
// no longer active.
func NotActive(id string) *errx.Error {
	return jobxErrors.New(ErrNotActive).WithDetail("job_id", id)
}

// ActiveRemoval builds the error for removing a running job.
func ActiveRemoval(id string) *errx.Error {
	return jobxErrors.New(ErrJobActive).WithDetail("job_id", id)
}

// NotFailed builds the error for retrying a job that is not failed.
func NotFailed(id string, state State) *errx.Error {
	return jobxErrors.New(ErrNotFailed).WithDetail("job_id", id).WithDetail("state", string(state))
}

// InvalidState builds the error for an unknown state filter.
func InvalidState(s State) *errx.Error {
	return jobxErrors.New(ErrInvalidState).WithDetail("state", string(s))
}

// Backend wraps a storage failure.
func Backend(op string, cause error) *errx.Error {
	return jobxErrors.NewWithCause(ErrBackend, cause).WithDetail("op", op)
}

// Validate checks a job before it is stored and fills defaults.
func (j *Job) Validate() error {
	if j.Type == "" {
		return jobxErrors.NewWithMessage(ErrInvalidJob, "job type is required")
	}
	if j.Queue == "" {
		return jobxErrors.NewWithMessage(ErrInvalidJob, "job queue is required")
	}
	if j.Delay < 0 {
		return jobxErrors.NewWithMessage(ErrInvalidJob, "job delay cannot be negative")
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = DefaultMaxAttempts
	}
	if len(j.Payload) == 0 {
		j.Payload = []byte("{}")
	}
	return nil
}
