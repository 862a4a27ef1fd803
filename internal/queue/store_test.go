package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "potreed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func enqueue(t *testing.T, store *queue.Store, id, projectID string) *queue.Job {
	t.Helper()
	job, err := store.Enqueue(context.Background(), &queue.Job{
		ID:                id,
		ProjectID:         projectID,
		FilePath:          "/staging/incoming/" + id + ".las",
		RemoteStagingPath: "jobs/" + id + ".las",
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
	return job
}

func TestEnqueueSetsPendingDefaults(t *testing.T) {
	store := openStore(t)
	job := enqueue(t, store, "job-1", "proj-1")

	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.CurrentStep != queue.StepMetadata {
		t.Fatalf("expected metadata step, got %s", job.CurrentStep)
	}
	if job.CompletedAt != nil {
		t.Fatal("new job must not have completed_at")
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be set")
	}
}

func TestEnqueueDuplicateIDFails(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")

	_, err := store.Enqueue(context.Background(), &queue.Job{ID: "job-1", ProjectID: "proj-2"})
	if !errors.Is(err, queue.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestClaimNextIsFIFO(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-a", "proj-1")
	time.Sleep(2 * time.Millisecond)
	enqueue(t, store, "job-b", "proj-1")

	first, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first == nil || first.ID != "job-a" {
		t.Fatalf("expected job-a claimed first, got %+v", first)
	}
	if first.Status != queue.StatusProcessing {
		t.Fatalf("claimed job must be processing, got %s", first.Status)
	}

	second, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if second == nil || second.ID != "job-b" {
		t.Fatalf("expected job-b claimed second, got %+v", second)
	}

	empty, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("claim empty: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil on empty queue, got %+v", empty)
	}
}

func TestClaimNextSingleWinner(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNext(context.Background())
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if job != nil {
				mu.Lock()
				claimed = append(claimed, job.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 1 {
		t.Fatalf("expected exactly one winner, got %d: %v", len(claimed), claimed)
	}
}

func TestUpdateProgressMerges(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")
	job, err := store.ClaimNext(context.Background())
	if err != nil || job == nil {
		t.Fatalf("claim: %v", err)
	}

	step := queue.StepThumbnail
	msg := "Rendering thumbnail"
	updated, err := store.UpdateProgress(context.Background(), job.ID, queue.ProgressUpdate{
		CurrentStep:     &step,
		ProgressMessage: &msg,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CurrentStep != queue.StepThumbnail || updated.ProgressMessage != msg {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.FilePath != job.FilePath {
		t.Fatalf("nil field clobbered file path: %q", updated.FilePath)
	}

	// A second update carrying only a message must preserve the step.
	msg2 := "Still rendering"
	updated, err = store.UpdateProgress(context.Background(), job.ID, queue.ProgressUpdate{ProgressMessage: &msg2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CurrentStep != queue.StepThumbnail {
		t.Fatalf("step clobbered by partial update: %s", updated.CurrentStep)
	}
}

func TestUpdateProgressRejectsStepRegression(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")
	job, _ := store.ClaimNext(context.Background())

	forward := queue.StepConversion
	if _, err := store.UpdateProgress(context.Background(), job.ID, queue.ProgressUpdate{CurrentStep: &forward}); err != nil {
		t.Fatalf("forward update: %v", err)
	}

	backward := queue.StepMetadata
	_, err := store.UpdateProgress(context.Background(), job.ID, queue.ProgressUpdate{CurrentStep: &backward})
	if !errors.Is(err, queue.ErrStepRegression) {
		t.Fatalf("expected ErrStepRegression, got %v", err)
	}
}

func TestUpdateProgressRequiresProcessing(t *testing.T) {
	store := openStore(t)
	job := enqueue(t, store, "job-1", "proj-1")

	msg := "nope"
	_, err := store.UpdateProgress(context.Background(), job.ID, queue.ProgressUpdate{ProgressMessage: &msg})
	if !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing for pending job, got %v", err)
	}
}

func TestMarkTerminalSetsCompletedAt(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")
	job, _ := store.ClaimNext(context.Background())

	done, err := store.MarkTerminal(context.Background(), job.ID, queue.StatusCompleted, "")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed job must record completed_at")
	}
	if done.CurrentStep != queue.StepCompleted {
		t.Fatalf("expected completed step, got %s", done.CurrentStep)
	}
	if done.ErrorMessage != "" {
		t.Fatalf("completed job must not carry an error message: %q", done.ErrorMessage)
	}
}

func TestMarkTerminalFailedKeepsStep(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")
	job, _ := store.ClaimNext(context.Background())

	step := queue.StepConversion
	if _, err := store.UpdateProgress(context.Background(), job.ID, queue.ProgressUpdate{CurrentStep: &step}); err != nil {
		t.Fatalf("update: %v", err)
	}

	failed, err := store.MarkTerminal(context.Background(), job.ID, queue.StatusFailed, "converter exited 1")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.CurrentStep != queue.StepConversion {
		t.Fatalf("failed job must keep the step it stopped at, got %s", failed.CurrentStep)
	}
	if failed.CompletedAt == nil {
		t.Fatal("failed job must record completed_at")
	}
	if failed.ErrorMessage != "converter exited 1" {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}
}

func TestMarkTerminalRejectsNonProcessing(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")

	_, err := store.MarkTerminal(context.Background(), "job-1", queue.StatusCompleted, "")
	if !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}

	if _, err := store.MarkTerminal(context.Background(), "job-1", queue.StatusPending, ""); err == nil {
		t.Fatal("expected rejection of non-terminal status")
	}
}

func TestListByProjectNewestFirst(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-old", "proj-1")
	time.Sleep(2 * time.Millisecond)
	enqueue(t, store, "job-new", "proj-1")
	enqueue(t, store, "job-other", "proj-2")

	jobs, err := store.ListByProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "job-new" || jobs[1].ID != "job-old" {
		t.Fatalf("expected newest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestPurgeRemovesOnlyOldJobs(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-old", "proj-1")
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	enqueue(t, store, "job-new", "proj-1")

	removed, err := store.Purge(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := store.GetByID(context.Background(), "job-old"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected job-old purged, got %v", err)
	}
	if _, err := store.GetByID(context.Background(), "job-new"); err != nil {
		t.Fatalf("job-new should survive purge: %v", err)
	}
}

func TestPurgeIsStatusBlind(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-pending", "proj-1")
	enqueue(t, store, "job-processing", "proj-1")
	if _, err := store.ClaimNext(context.Background()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	removed, err := store.Purge(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("purge must ignore status, expected 2 removed, got %d", removed)
	}
}

func TestStats(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-1", "proj-1")
	enqueue(t, store, "job-2", "proj-1")
	job, _ := store.ClaimNext(context.Background())
	if _, err := store.MarkTerminal(context.Background(), job.ID, queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	counts, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if counts.Pending != 1 || counts.Failed != 1 || counts.Total() != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestActiveFilePathsCoverNonTerminalJobs(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "job-pending", "proj-1")
	enqueue(t, store, "job-processing", "proj-1")
	enqueue(t, store, "job-done", "proj-1")

	// job-pending claimed first (FIFO) and finished; job-processing stays claimed.
	first, _ := store.ClaimNext(context.Background())
	if _, err := store.MarkTerminal(context.Background(), first.ID, queue.StatusCompleted, ""); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if _, err := store.ClaimNext(context.Background()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	paths, err := store.ActiveFilePaths(context.Background())
	if err != nil {
		t.Fatalf("active file paths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 live paths, got %d: %v", len(paths), paths)
	}
	if _, ok := paths["/staging/incoming/job-processing.las"]; !ok {
		t.Error("processing job path missing")
	}
	if _, ok := paths["/staging/incoming/job-done.las"]; !ok {
		t.Error("pending job path missing")
	}
	if _, ok := paths["/staging/incoming/job-pending.las"]; ok {
		t.Error("terminal job path must not be listed")
	}
}
