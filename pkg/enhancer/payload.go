package enhancer

import (
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
)

// Job types handled by the processor.
const (
	JobEnhance      = "enhance"
	JobRefresh      = "refresh"
	JobBatchEnhance = "batch-enhance"
)

// Default queue names.
const (
	EnhancementQueue = "content-enhancement"
	BatchQueue       = "content-batch"
)

// Payload targets one drug.
type Payload struct {
	DrugID         string         `json:"drugId"`
	ProcessingType string         `json:"processingType"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// BatchPayload targets several drugs processed in order by one worker.
type BatchPayload struct {
	DrugIDs        []string       `json:"drugIds"`
	ProcessingType string         `json:"processingType"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// JobResult is stored on the job once a record has been handled.
type JobResult struct {
	Success          bool           `json:"success"`
	DrugID           string         `json:"drugId"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	ContentGenerated bool           `json:"contentGenerated"`
	FallbackUsed     bool           `json:"fallbackUsed"`
	ContentScore     int            `json:"contentScore,omitempty"`
	Error            string         `json:"error,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// BatchJobResult aggregates the per-record results of a batch.
type BatchJobResult struct {
	ProcessedCount int         `json:"processedCount"`
	FailedCount    int         `json:"failedCount"`
	FallbackCount  int         `json:"fallbackCount"`
	Results        []JobResult `json:"results"`
}

// NewRecordJob builds an enhance or refresh job for queue.
func NewRecordJob(jobType, queue string, p Payload, priority int, delay time.Duration) (jobx.Job, error) {
	if p.ProcessingType == "" {
		p.ProcessingType = jobType
	}
	job, err := jobx.NewJob(jobType, queue, p)
	if err != nil {
		return jobx.Job{}, err
	}
	job.Priority = priority
	job.Delay = delay
	return job, nil
}

// NewBatchJob builds a batch-enhance job for queue.
func NewBatchJob(queue string, p BatchPayload, delay time.Duration) (jobx.Job, error) {
	if p.ProcessingType == "" {
		p.ProcessingType = JobEnhance
	}
	job, err := jobx.NewJob(JobBatchEnhance, queue, p)
	if err != nil {
		return jobx.Job{}, err
	}
	job.Priority = jobx.PriorityMedium
	job.Delay = delay
	return job, nil
}
