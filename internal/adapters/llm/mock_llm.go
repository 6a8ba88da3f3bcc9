package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/worksession/internal/domain"
)

// MockLLM is a deterministic stand-in for the Vertex client. It detects
// signals with keyword rules and never calls the network.
type MockLLM struct{}

var (
	_ domain.PromptGenerator     = (*MockLLM)(nil)
	_ domain.EvidenceSynthesizer = (*MockLLM)(nil)
)

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

type signalRule struct {
	keywords []string
	tag      string
}

var stageSignals = map[domain.Stage][]signalRule{
	domain.StageFraming: {
		{[]string{"clarify", "requirement", "question"}, "clarifies_requirements"},
		{[]string{"constraint", "limit"}, "identifies_constraints"},
		{[]string{"assum"}, "states_assumptions"},
		{[]string{"scope", "out of scope"}, "defines_scope"},
		{[]string{"user", "customer"}, "user_focus"},
	},
	domain.StageApproach: {
		{[]string{"tradeoff", "trade-off", "trade off"}, "weighs_tradeoffs"},
		{[]string{"alternative", "option", "instead"}, "considers_alternatives"},
		{[]string{"complexity", "o(n", "big o"}, "analyzes_complexity"},
		{[]string{"plan", "first", "then"}, "plans_steps"},
		{[]string{"schema", "data model", "interface"}, "models_data"},
	},
	domain.StageBuild: {
		{[]string{"test"}, "tests_code"},
		{[]string{"refactor", "extract", "rename"}, "refactors"},
		{[]string{"error", "fail", "retry"}, "handles_errors"},
		{[]string{"edge case", "empty", "nil", "null"}, "covers_edge_cases"},
		{[]string{"commit", "small step", "incremental"}, "incremental_delivery"},
	},
	domain.StageReview: {
		{[]string{"improve", "would change", "better"}, "self_critique"},
		{[]string{"risk", "concern"}, "identifies_risks"},
		{[]string{"next", "follow up", "follow-up"}, "plans_followup"},
		{[]string{"monitor", "metric", "log"}, "operational_awareness"},
		{[]string{"document", "readme"}, "documents_work"},
	},
}

var stagePrompts = map[domain.Stage][]string{
	domain.StageFraming: {
		"Before touching the code, how would you restate the problem you are solving in this repository?",
		"Which requirements or constraints would you want to confirm before starting?",
		"What assumptions are you making about the users of this change?",
	},
	domain.StageApproach: {
		"Walk me through the approach you would take. What are the main steps?",
		"What alternative approach did you consider, and why did you set it aside?",
		"Where do you expect the hardest part of this change to be?",
	},
	domain.StageBuild: {
		"Start implementing the first step. Share a snapshot when you have something running.",
		"How are you verifying that this part works?",
		"What happens with empty or invalid input here?",
	},
	domain.StageReview: {
		"Looking back at your change, what would you improve with another hour?",
		"What risks would you flag to a reviewer of this change?",
		"What would you do next if this shipped tomorrow?",
	},
}

const closingPrompt = "Thanks, that covers all four stages. You can wrap up the session when you are ready."

// DetectSignals returns the signal tags found in text for a stage, in rule order.
func DetectSignals(stage domain.Stage, text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, rule := range stageSignals[stage] {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

// NextPrompt implements domain.PromptGenerator.
func (m *MockLLM) NextPrompt(ctx context.Context, req domain.PromptRequest) (*domain.PromptResult, error) {
	if !req.Stage.Valid() {
		return nil, fmt.Errorf("mock llm: unknown stage %q", req.Stage)
	}

	var tags []string
	if strings.TrimSpace(req.CandidateResponse) != "" {
		tags = DetectSignals(req.Stage, req.CandidateResponse)
	}
	complete := len(tags) > 0

	next := m.promptFor(req.Stage, req.History)
	if complete {
		if following, ok := req.Stage.Next(); ok {
			next = stagePrompts[following][0]
		} else {
			next = closingPrompt
		}
	}

	return &domain.PromptResult{
		NextPrompt:    next,
		StageComplete: complete,
		SignalTags:    tags,
	}, nil
}

// promptFor rotates through the stage's prompts based on how many were already asked.
func (m *MockLLM) promptFor(stage domain.Stage, history []*domain.Event) string {
	asked := 0
	for _, ev := range history {
		if p, ok := ev.Content.(domain.PromptContent); ok && p.Stage == stage {
			asked++
		}
	}
	prompts := stagePrompts[stage]
	return prompts[asked%len(prompts)]
}
