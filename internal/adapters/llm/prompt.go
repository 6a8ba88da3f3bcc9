package llm

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/worksession/internal/domain"
)

const interviewerSystemPrompt = `
You are the interviewer in a timed technical work session for a hiring platform.

Your role:
- You guide the candidate through four stages: framing, approach, build, review.
- You ask ONE short, concrete prompt at a time, grounded in the candidate's repository and their previous answers.
- You never solve the problem for the candidate and you never reveal an evaluation.

Deciding stage completion:
- Set stageComplete to true only when the latest candidate response shows the evidence the current stage asks for.
- signalTags are short snake_case labels for behaviours observed in the latest response (e.g. clarifies_requirements, weighs_tradeoffs, tests_code).
- When the stage is complete, nextPrompt must open the NEXT stage.

Respond ONLY with JSON matching the provided schema.
`

const synthesisSystemPrompt = `
You are an assessor writing an evidence pack for a hiring team after a timed technical work session.

Rules:
- Base every statement on the event log. Quote or paraphrase the candidate; never invent facts.
- strengths and risks are short sentences. decisionLog entries name the stage, the decision and the rationale if stated.
- confidence is "low", "medium" or "high" and reflects how much evidence the log contains.
- roleLevelEstimate combines the role track with the level the evidence supports (e.g. "backend / mid").
- recommendedNextStep is one sentence for the hiring team.
- highlights are up to three short verbatim excerpts worth reading.

Respond ONLY with JSON matching the provided schema.
`

var stageInstructions = map[domain.Stage]string{
	domain.StageFraming: `
Stage: framing
Evidence wanted: the candidate restates the problem, clarifies requirements, and names constraints and assumptions.`,
	domain.StageApproach: `
Stage: approach
Evidence wanted: the candidate proposes an approach, compares alternatives, and explains trade-offs.`,
	domain.StageBuild: `
Stage: build
Evidence wanted: the candidate writes or changes code incrementally, tests it, and handles errors and edge cases.`,
	domain.StageReview: `
Stage: review
Evidence wanted: the candidate critiques their own work, names risks, and says what they would do next.`,
}

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// BuildNextPrompt builds the interviewer prompt for the current stage.
func BuildNextPrompt(req domain.PromptRequest) Prompt {
	system := interviewerSystemPrompt + "\n" + stageInstructions[req.Stage]

	var user strings.Builder
	writeSessionHeader(&user, req.Session)
	fmt.Fprintf(&user, "Current stage: %s\n\n", req.Stage)

	if history := formatHistory(req.History); history != "" {
		user.WriteString("Session so far:\n")
		user.WriteString(history)
		user.WriteString("\n\n")
	}

	if strings.TrimSpace(req.CandidateResponse) == "" {
		user.WriteString("The candidate has not answered yet. Ask the opening prompt for this stage.")
	} else {
		user.WriteString("Latest candidate response:\n")
		user.WriteString(req.CandidateResponse)
	}

	return Prompt{System: system, User: user.String()}
}

// BuildSynthesisPrompt builds the assessor prompt over the full event log.
func BuildSynthesisPrompt(req domain.SynthesisRequest) Prompt {
	var user strings.Builder
	writeSessionHeader(&user, req.Session)

	user.WriteString("Stages reached:\n")
	for _, r := range req.Stages {
		state := "completed"
		if r.Open() {
			state = "in progress"
		}
		fmt.Fprintf(&user, "- %s (%s)\n", r.Stage, state)
	}

	user.WriteString("\nEvent log:\n")
	user.WriteString(formatHistory(req.Events))

	return Prompt{System: synthesisSystemPrompt, User: user.String()}
}

func writeSessionHeader(b *strings.Builder, sess *domain.WorkSession) {
	if sess == nil {
		return
	}
	fmt.Fprintf(b, "Role track: %s\nClaimed level: %s\nSession length: %d minutes\nRepository: %s\n",
		sess.RoleTrack, sess.Level, sess.DurationMinutes, sess.GitHubURL)
	if r := sess.Repository; r != nil {
		if r.Language != "" {
			fmt.Fprintf(b, "Primary language: %s\n", r.Language)
		}
		if r.Description != "" {
			fmt.Fprintf(b, "Repository description: %s\n", r.Description)
		}
	}
	b.WriteString("\n")
}

const maxSnapshotLines = 60

func formatHistory(events []*domain.Event) string {
	var parts []string
	for _, ev := range events {
		switch c := ev.Content.(type) {
		case domain.PromptContent:
			parts = append(parts, fmt.Sprintf("[%s] interviewer: %s", c.Stage, c.Text))
		case domain.ResponseContent:
			parts = append(parts, fmt.Sprintf("[%s] candidate: %s", c.Stage, c.Text))
		case domain.CodeSnapshotContent:
			parts = append(parts, fmt.Sprintf("[%s] code snapshot (%s):\n%s", c.Stage, c.Language, clipLines(c.Code, maxSnapshotLines)))
		case domain.SystemContent:
			parts = append(parts, fmt.Sprintf("[system:%s] %s", c.Subtype, c.Message))
		}
	}
	return strings.Join(parts, "\n")
}

func clipLines(s string, max int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= max {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-max)
}
