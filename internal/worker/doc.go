// Package worker runs the daemon loop: claim a job, process it, and run
// retention sweeps on a schedule.
package worker
