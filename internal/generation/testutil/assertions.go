package testutil

import (
	"testing"

	"promogen/internal/generation"
)

// AssertOrderedEvents verifies an event slice is a coherent single-job
// history: every event names the same job, stage statuses never regress,
// skipped stages never change, and at most one terminal event exists,
// placed last.
func AssertOrderedEvents(t *testing.T, events []generation.ProgressEvent) {
	t.Helper()
	if len(events) == 0 {
		return
	}

	jobID := events[0].JobID
	prev := events[0].Progress
	for i, ev := range events {
		if ev.JobID != jobID {
			t.Fatalf("event %d belongs to job %s, want %s", i, ev.JobID, jobID)
		}
		if ev.Status.IsTerminal() && i != len(events)-1 {
			t.Fatalf("terminal event at position %d of %d", i, len(events))
		}
		if i == 0 {
			continue
		}
		for stage, status := range ev.Progress {
			assertStageTransition(t, i, stage, prev[stage], status)
		}
		prev = ev.Progress
	}
}

func assertStageTransition(t *testing.T, index int, stage generation.StageName, from, to generation.StageStatus) {
	t.Helper()
	ok := false
	switch from {
	case generation.StagePending:
		ok = to == generation.StagePending || to == generation.StageProcessing
	case generation.StageProcessing:
		ok = to == generation.StageProcessing || to == generation.StageDone || to == generation.StageFailed
	case generation.StageDone, generation.StageFailed, generation.StageSkipped:
		ok = to == from
	}
	if !ok {
		t.Fatalf("event %d: stage %s moved %s -> %s", index, stage, from, to)
	}
}

// AssertStage fails unless the job's stage has the wanted status.
func AssertStage(t *testing.T, job *generation.Job, stage generation.StageName, want generation.StageStatus) {
	t.Helper()
	got, ok := job.Progress[stage]
	if !ok {
		t.Fatalf("job %s has no %s stage", job.ID, stage)
	}
	if got != want {
		t.Fatalf("job %s stage %s = %s, want %s", job.ID, stage, got, want)
	}
}

// AssertTerminal fails unless the job is terminal with the wanted status and
// carries a completion timestamp equal to its update timestamp.
func AssertTerminal(t *testing.T, job *generation.Job, want generation.JobStatus) {
	t.Helper()
	if job.Status != want {
		t.Fatalf("job %s status = %s, want %s", job.ID, job.Status, want)
	}
	if job.CompletedAt == nil {
		t.Fatalf("job %s is terminal but has no completion timestamp", job.ID)
	}
	if !job.CompletedAt.Equal(job.UpdatedAt) {
		t.Fatalf("job %s completedAt %s != updatedAt %s", job.ID, job.CompletedAt, job.UpdatedAt)
	}
}
