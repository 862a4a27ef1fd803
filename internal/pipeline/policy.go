package pipeline

import "github.com/MaFalana/HWC-POTREE-API/internal/queue"

// failureMode controls what a step error does to the job.
type failureMode int

const (
	// failHard marks the job failed and stops the pipeline.
	failHard failureMode = iota
	// failSoft logs the error and continues with the next step.
	failSoft
)

// stepPolicies encodes which steps may fail without sinking the job. Only
// the thumbnail is cosmetic; everything else is required output.
var stepPolicies = map[queue.Step]failureMode{
	queue.StepMetadata:   failHard,
	queue.StepThumbnail:  failSoft,
	queue.StepConversion: failHard,
	queue.StepUpload:     failHard,
}

func policyFor(step queue.Step) failureMode {
	mode, ok := stepPolicies[step]
	if !ok {
		return failHard
	}
	return mode
}
