package llm_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/PabloGalante/worksession/internal/adapters/llm"
	"github.com/PabloGalante/worksession/internal/domain"
)

func TestMockNextPromptCompletesFramingOnClarification(t *testing.T) {
	m := llm.NewMockLLM()

	res, err := m.NextPrompt(context.Background(), domain.PromptRequest{
		Stage:             domain.StageFraming,
		CandidateResponse: "I'd clarify constraints first",
	})
	if err != nil {
		t.Fatalf("NextPrompt failed: %v", err)
	}
	if !res.StageComplete {
		t.Fatalf("expected stage complete")
	}
	want := []string{"clarifies_requirements", "identifies_constraints"}
	if !reflect.DeepEqual(res.SignalTags, want) {
		t.Fatalf("expected tags %v, got %v", want, res.SignalTags)
	}
	if !strings.Contains(res.NextPrompt, "approach") {
		t.Fatalf("expected the opening approach prompt, got %q", res.NextPrompt)
	}
}

func TestMockNextPromptWithoutResponseStaysInStage(t *testing.T) {
	m := llm.NewMockLLM()

	history := []*domain.Event{
		{Content: domain.PromptContent{Text: "first", Stage: domain.StageBuild}},
	}
	res, err := m.NextPrompt(context.Background(), domain.PromptRequest{
		Stage:   domain.StageBuild,
		History: history,
	})
	if err != nil {
		t.Fatalf("NextPrompt failed: %v", err)
	}
	if res.StageComplete || len(res.SignalTags) != 0 {
		t.Fatalf("expected no completion without a response, got %+v", res)
	}
	if res.NextPrompt != "How are you verifying that this part works?" {
		t.Fatalf("expected the second build prompt, got %q", res.NextPrompt)
	}
}

func TestMockNextPromptClosesAfterReview(t *testing.T) {
	m := llm.NewMockLLM()

	res, err := m.NextPrompt(context.Background(), domain.PromptRequest{
		Stage:             domain.StageReview,
		CandidateResponse: "The main risk is the missing retry on timeouts.",
	})
	if err != nil {
		t.Fatalf("NextPrompt failed: %v", err)
	}
	if !res.StageComplete || !strings.Contains(res.NextPrompt, "wrap up") {
		t.Fatalf("expected closing prompt, got %+v", res)
	}
}

func TestMockSynthesizeBuildsSummaryFromEvents(t *testing.T) {
	m := llm.NewMockLLM()
	sess := &domain.WorkSession{RoleTrack: domain.RoleTrackBackend, Level: domain.LevelMid}

	events := []*domain.Event{
		{Content: domain.PromptContent{Text: "Restate the problem", Stage: domain.StageFraming, Tags: []string{"custom_tag"}}},
		{Content: domain.ResponseContent{Text: "I'd clarify constraints first. Then scope it.", Stage: domain.StageFraming}},
		{Content: domain.ResponseContent{Text: "Option A has a better trade-off.", Stage: domain.StageApproach}},
		{Content: domain.CodeSnapshotContent{Code: "func f() {}", Language: "Go", Stage: domain.StageBuild}},
		{Content: domain.SystemContent{Message: "timer paused", Subtype: "timer"}},
	}

	sum, err := m.Synthesize(context.Background(), domain.SynthesisRequest{Session: sess, Events: events})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if sum.Confidence != domain.ConfidenceLow {
		t.Fatalf("two responses should be low confidence, got %s", sum.Confidence)
	}
	if len(sum.DecisionLog) != 2 || sum.DecisionLog[0].Decision != "I'd clarify constraints first." {
		t.Fatalf("unexpected decision log: %+v", sum.DecisionLog)
	}
	if len(sum.Risks) != 1 || !strings.Contains(sum.Risks[0], "review") {
		t.Fatalf("expected only the review stage risk, got %v", sum.Risks)
	}
	if sum.Strengths[0] != "custom tag" {
		t.Fatalf("expected prompt tags first, got %v", sum.Strengths)
	}
	if !strings.HasPrefix(sum.RoleLevelEstimate, "backend / ") {
		t.Fatalf("unexpected estimate %q", sum.RoleLevelEstimate)
	}
	if len(sum.Highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %v", sum.Highlights)
	}
}

func TestBuildNextPromptIncludesHistory(t *testing.T) {
	p := llm.BuildNextPrompt(domain.PromptRequest{
		Session: &domain.WorkSession{RoleTrack: domain.RoleTrackFrontend, Level: domain.LevelJunior, GitHubURL: "https://github.com/x"},
		Stage:   domain.StageApproach,
		History: []*domain.Event{
			{Content: domain.ResponseContent{Text: "use a reducer", Stage: domain.StageApproach}},
		},
		CandidateResponse: "compare with context",
	})

	if !strings.Contains(p.System, "Stage: approach") {
		t.Fatalf("system prompt missing stage instructions")
	}
	for _, want := range []string{"[approach] candidate: use a reducer", "compare with context", "Role track: frontend"} {
		if !strings.Contains(p.User, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, p.User)
		}
	}
}
