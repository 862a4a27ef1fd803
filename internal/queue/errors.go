package queue

import "errors"

var (
	// ErrAlreadyExists is returned when enqueueing a job whose id is taken.
	ErrAlreadyExists = errors.New("job already exists")
	// ErrNotFound is returned when a job id does not match any row.
	ErrNotFound = errors.New("job not found")
	// ErrNotProcessing is returned when a mutation targets a job that is not
	// in the processing state.
	ErrNotProcessing = errors.New("job is not processing")
	// ErrStepRegression is returned when an update would move a job to an
	// earlier pipeline step.
	ErrStepRegression = errors.New("pipeline step may not move backwards")
)
