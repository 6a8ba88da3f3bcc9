package render_test

import (
	"strings"
	"testing"
	"time"

	"github.com/PabloGalante/worksession/internal/domain"
	"github.com/PabloGalante/worksession/internal/render"
)

func samplePack() (*domain.EvidencePack, *domain.WorkSession) {
	pack := &domain.EvidencePack{
		ID:          "pack-1",
		SessionID:   "sess-1",
		ShareID:     "abc123",
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Summary: domain.EvidencePackSummary{
			RoleLevelEstimate: "backend / mid",
			Confidence:        domain.ConfidenceMedium,
			Strengths: []string{
				"Clarifies requirements before committing to a solution and keeps asking until the constraints are explicit",
			},
			Risks: []string{"No code snapshot was captured"},
			DecisionLog: []domain.DecisionLogEntry{
				{Stage: domain.StageApproach, Decision: "Use a queue", Rationale: "decouples writers"},
			},
			Highlights:          []string{"I'd clarify constraints first"},
			RecommendedNextStep: "Advance to the next interview round",
		},
	}
	session := &domain.WorkSession{
		GitHubURL:       "https://github.com/acme/widgets",
		RoleTrack:       domain.RoleTrackBackend,
		Level:           domain.LevelMid,
		DurationMinutes: 30,
		Status:          domain.StatusCompleted,
	}
	return pack, session
}

func TestMarkdownSections(t *testing.T) {
	pack, session := samplePack()
	md := render.Markdown(pack, session, render.DefaultWidth)

	for _, want := range []string{
		"# Evidence pack",
		"`abc123`",
		"- Session: mid backend, 30 minutes, completed",
		"## Strengths",
		"## Risks",
		"**approach**: Use a queue (decouples writers)",
		"> I'd clarify constraints first",
		"## Recommended next step",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Observations") {
		t.Fatalf("empty sections should be omitted:\n%s", md)
	}
}

func TestMarkdownWrapsListItems(t *testing.T) {
	pack, session := samplePack()
	md := render.Markdown(pack, session, 40)

	if !strings.Contains(md, "- **approach**: Use a queue (decouples\n  writers)") {
		t.Fatalf("expected the decision to wrap onto an indented line:\n%s", md)
	}
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "- Clarifies") || strings.HasPrefix(line, "  ") {
			if len(line) > 40 {
				t.Fatalf("list line longer than width: %q", line)
			}
		}
	}
}

func TestTerminalRendersText(t *testing.T) {
	pack, session := samplePack()
	out := render.Terminal(render.Markdown(pack, session, 60), 60)

	if !strings.Contains(out, "Evidence pack") || !strings.Contains(out, "backend / mid") {
		t.Fatalf("rendered output missing content:\n%s", out)
	}
}
