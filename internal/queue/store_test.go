package queue_test

import (
	"context"
	"testing"
	"time"

	"reelgen/internal/queue"
	"reelgen/internal/testsupport"
)

func newStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewJobAndRoundtrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "ocean facts", "fp-1", `{"script_duration":30}`)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == 0 || job.Status != queue.StatusPending {
		t.Fatalf("job = %+v", job)
	}
	if job.Prompt != "ocean facts" || job.Fingerprint != "fp-1" {
		t.Fatalf("job fields = %+v", job)
	}

	job.Status = queue.StatusScriptReady
	job.ScriptJSON = `{"raw":"text"}`
	job.ReceiptJSON = `{"job_id":1}`
	job.DegradedCaptions = true
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusScriptReady || loaded.ScriptJSON != `{"raw":"text"}` {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.ReceiptJSON != `{"job_id":1}` {
		t.Fatalf("receipt = %q", loaded.ReceiptJSON)
	}
	if !loaded.DegradedCaptions || loaded.DegradedFootage {
		t.Fatalf("degraded flags = %+v", loaded)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	store := newStore(t)
	job, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil, got %+v", job)
	}
}

func TestFindByFingerprintReturnsNewest(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.NewJob(ctx, "a", "fp-dup", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	second, err := store.NewJob(ctx, "b", "fp-dup", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	found, err := store.FindByFingerprint(ctx, "fp-dup")
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if found == nil || found.ID != second.ID {
		t.Fatalf("found = %+v, want id %d (not %d)", found, second.ID, first.ID)
	}
}

func TestNextForStatusesOrdersByCreation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, _ := store.NewJob(ctx, "first", "", "")
	if _, err := store.NewJob(ctx, "second", "", ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("next = %+v, want id %d", next, first.ID)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusRendering)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil, got %+v", none)
	}
}

func TestResetStuckProcessingRollsBackToCheckpoint(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _ := store.NewJob(ctx, "stuck", "", "")
	job.Status = queue.StatusComposing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d", affected)
	}
	loaded, _ := store.GetByID(ctx, job.ID)
	if loaded.Status != queue.StatusAudioReady {
		t.Fatalf("status = %s, want audio_ready", loaded.Status)
	}
}

func TestReclaimStaleUsesHeartbeatCutoff(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	stale, _ := store.NewJob(ctx, "stale", "", "")
	stale.Status = queue.StatusScripting
	old := time.Now().UTC().Add(-time.Hour)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fresh, _ := store.NewJob(ctx, "fresh", "", "")
	fresh.Status = queue.StatusScripting
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update: %v", err)
	}

	affected, err := store.ReclaimStale(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d", affected)
	}
	staleLoaded, _ := store.GetByID(ctx, stale.ID)
	if staleLoaded.Status != queue.StatusPending {
		t.Fatalf("stale status = %s", staleLoaded.Status)
	}
	freshLoaded, _ := store.GetByID(ctx, fresh.ID)
	if freshLoaded.Status != queue.StatusScripting {
		t.Fatalf("fresh status = %s", freshLoaded.Status)
	}
}

func TestRetryFailed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _ := store.NewJob(ctx, "broken", "", "")
	job.SetFailed("provider rejected request")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	affected, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d", affected)
	}
	loaded, _ := store.GetByID(ctx, job.ID)
	if loaded.Status != queue.StatusPending || loaded.ErrorMessage != "" {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestStatsAndHealth(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	pending, _ := store.NewJob(ctx, "one", "", "")
	_ = pending
	done, _ := store.NewJob(ctx, "two", "", "")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("stats = %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Completed != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestClearRemovesTerminalJobs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	active, _ := store.NewJob(ctx, "active", "", "")
	done, _ := store.NewJob(ctx, "done", "", "")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}

	removed, err := store.Clear(ctx, false)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	remaining, _ := store.List(ctx)
	if len(remaining) != 1 || remaining[0].ID != active.ID {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Composing "); !ok || status != queue.StatusComposing {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("nonsense"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestPartialFailure(t *testing.T) {
	job := queue.Job{Status: queue.StatusCompleted, DegradedCaptions: true}
	if !job.PartialFailure() {
		t.Fatal("expected partial failure")
	}
	job = queue.Job{Status: queue.StatusFailed, DegradedCaptions: true}
	if job.PartialFailure() {
		t.Fatal("failed jobs are not partial failures")
	}
}
