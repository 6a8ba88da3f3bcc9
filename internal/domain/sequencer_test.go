package domain_test

import (
	"testing"
	"time"

	"github.com/PabloGalante/worksession/internal/domain"
)

func TestSequencerWalksStagesInOrder(t *testing.T) {
	seq := domain.NewSequencer()

	want := []domain.Stage{
		domain.StageFraming,
		domain.StageApproach,
		domain.StageBuild,
		domain.StageReview,
	}
	for i, stage := range want {
		if seq.Current() != stage {
			t.Fatalf("step %d: expected %s, got %s", i, stage, seq.Current())
		}
		wantProgress := float64(i+1) / 4
		if seq.Progress() != wantProgress {
			t.Fatalf("step %d: expected progress %v, got %v", i, wantProgress, seq.Progress())
		}
		seq.MarkComplete()
		advanced := seq.Advance()
		if advanced != (i < len(want)-1) {
			t.Fatalf("step %d: unexpected advance result %v", i, advanced)
		}
	}

	if !seq.Terminal() {
		t.Fatalf("expected terminal sequencer after review")
	}
	if got := len(seq.Completed()); got != 4 {
		t.Fatalf("expected 4 completed stages, got %d", got)
	}
}

func TestSequencerDoesNotAdvanceIncompleteStage(t *testing.T) {
	seq := domain.NewSequencer()

	if seq.Advance() {
		t.Fatalf("advance should require the current stage to be complete")
	}
	if seq.Current() != domain.StageFraming {
		t.Fatalf("expected framing, got %s", seq.Current())
	}
}

func TestSequencerAdvanceFromReviewIsNoop(t *testing.T) {
	now := time.Now()
	seq := domain.RestoreSequencer([]domain.StageRecord{
		{Stage: domain.StageFraming, StartedAt: now, CompletedAt: &now},
		{Stage: domain.StageApproach, StartedAt: now, CompletedAt: &now},
		{Stage: domain.StageBuild, StartedAt: now, CompletedAt: &now},
		{Stage: domain.StageReview, StartedAt: now},
	})

	if seq.Current() != domain.StageReview {
		t.Fatalf("expected review, got %s", seq.Current())
	}

	seq.MarkComplete()
	for i := 0; i < 3; i++ {
		if seq.Advance() {
			t.Fatalf("advance from review must be a no-op")
		}
	}
	if seq.Current() != domain.StageReview {
		t.Fatalf("expected to stay in review, got %s", seq.Current())
	}
	if seq.Progress() != 1 {
		t.Fatalf("expected full progress, got %v", seq.Progress())
	}
}

func TestRestoreSequencerIgnoresRecordOrder(t *testing.T) {
	now := time.Now()
	seq := domain.RestoreSequencer([]domain.StageRecord{
		{Stage: domain.StageApproach, StartedAt: now},
		{Stage: domain.StageFraming, StartedAt: now, CompletedAt: &now},
	})

	if seq.Current() != domain.StageApproach {
		t.Fatalf("expected approach, got %s", seq.Current())
	}
	if !seq.IsComplete(domain.StageFraming) || seq.IsComplete(domain.StageApproach) {
		t.Fatalf("unexpected completed set: %v", seq.Completed())
	}
}

func TestParseStage(t *testing.T) {
	if _, err := domain.ParseStage("deploy"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	st, err := domain.ParseStage(" Build ")
	if err != nil || st != domain.StageBuild {
		t.Fatalf("expected build, got %q (%v)", st, err)
	}
	if next, ok := domain.StageReview.Next(); ok {
		t.Fatalf("review should be terminal, got next %s", next)
	}
}
