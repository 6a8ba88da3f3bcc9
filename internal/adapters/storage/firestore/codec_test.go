package firestore

import (
	"reflect"
	"testing"
	"time"

	"github.com/PabloGalante/worksession/internal/domain"
)

func TestSessionDocRoundTrip(t *testing.T) {
	ended := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &domain.WorkSession{
		ID:              "s-1",
		CandidateID:     "cand",
		GitHubURL:       "https://github.com/golang/go",
		RoleTrack:       domain.RoleTrackBackend,
		Level:           domain.LevelSenior,
		DurationMinutes: 60,
		Status:          domain.StatusCompleted,
		StartedAt:       ended.Add(-time.Hour),
		EndedAt:         &ended,
		Repository:      &domain.RepositoryInfo{Owner: "golang", Name: "go", FullName: "golang/go", Stars: 1},
	}

	doc := toSessionDoc(in)
	if doc.CurrentStage != string(domain.FirstStage) {
		t.Fatalf("expected new sessions to start in %s, got %s", domain.FirstStage, doc.CurrentStage)
	}

	out := doc.toDomain(in.ID)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestSummaryCodecNormalizes(t *testing.T) {
	raw, err := encodeSummary(domain.EvidencePackSummary{RoleLevelEstimate: "backend / mid"})
	if err != nil {
		t.Fatalf("encodeSummary failed: %v", err)
	}

	sum, err := decodeSummary(raw)
	if err != nil {
		t.Fatalf("decodeSummary failed: %v", err)
	}
	if sum.Confidence != domain.ConfidenceLow {
		t.Fatalf("expected low confidence default, got %q", sum.Confidence)
	}
	if sum.Strengths == nil || sum.DecisionLog == nil || sum.Highlights == nil {
		t.Fatalf("expected empty lists, got %+v", sum)
	}
}

func TestCloseStageKeepsFirstCompletion(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	reviewed := started.Add(20 * time.Minute)
	later := reviewed.Add(time.Hour)

	open := &stageDoc{Stage: string(domain.StageReview), StartedAt: started}
	updates := closeStageUpdates(open, reviewed)
	if len(updates) != 1 || updates[0].Path != "completed_at" || updates[0].Value != reviewed {
		t.Fatalf("expected completed_at update for open stage, got %+v", updates)
	}

	closed := &stageDoc{Stage: string(domain.StageReview), StartedAt: started, CompletedAt: &reviewed}
	if updates := closeStageUpdates(closed, later); len(updates) != 0 {
		t.Fatalf("closed stage must keep its completion time, got %+v", updates)
	}
	if updates := closeStageUpdates(nil, later); len(updates) != 0 {
		t.Fatalf("missing stage record should not be written, got %+v", updates)
	}
}
