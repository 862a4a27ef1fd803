package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

// Step identifies a stage of the conversion pipeline. Steps only advance;
// a job never moves to an earlier step.
type Step string

const (
	StepMetadata   Step = "metadata"
	StepThumbnail  Step = "thumbnail"
	StepConversion Step = "conversion"
	StepUpload     Step = "upload"
	StepCompleted  Step = "completed"
)

var stepOrder = map[Step]int{
	StepMetadata:   0,
	StepThumbnail:  1,
	StepConversion: 2,
	StepUpload:     3,
	StepCompleted:  4,
}

// Rank returns the ordering position of the step, or -1 for unknown values.
func (s Step) Rank() int {
	rank, ok := stepOrder[s]
	if !ok {
		return -1
	}
	return rank
}

// Job is a single point cloud conversion request tracked by the store.
type Job struct {
	ID                string
	ProjectID         string
	Status            Status
	CurrentStep       Step
	ProgressMessage   string
	ErrorMessage      string
	FilePath          string
	RemoteStagingPath string
	RetryCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// ProgressUpdate carries a partial mutation for a processing job. Nil fields
// are left untouched so concurrent writers never clobber each other.
type ProgressUpdate struct {
	CurrentStep     *Step
	ProgressMessage *string
	FilePath        *string
	RetryCount      *int
}

// StatusCounts summarizes the queue for operator tooling.
type StatusCounts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Total returns the number of jobs across all states.
func (c StatusCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}
