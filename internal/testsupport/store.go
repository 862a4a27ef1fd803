package testsupport

import (
	"context"
	"testing"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
	"github.com/MaFalana/HWC-POTREE-API/internal/projects"
	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
)

// MustOpenStore opens a job store for the config and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenProjects opens a project store for the config and registers cleanup.
func MustOpenProjects(t testing.TB, cfg *config.Config) *projects.Store {
	t.Helper()
	store, err := projects.Open(cfg)
	if err != nil {
		t.Fatalf("open project store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustEnqueue inserts a pending job and fails the test on error.
func MustEnqueue(t testing.TB, store *queue.Store, job *queue.Job) *queue.Job {
	t.Helper()
	created, err := store.Enqueue(context.Background(), job)
	if err != nil {
		t.Fatalf("enqueue job %s: %v", job.ID, err)
	}
	return created
}
