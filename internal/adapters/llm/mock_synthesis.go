package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PabloGalante/worksession/internal/domain"
)

var signalDescriptions = map[string]string{
	"clarifies_requirements": "Clarifies requirements before committing to a solution",
	"identifies_constraints": "Identifies constraints early",
	"states_assumptions":     "States assumptions explicitly",
	"defines_scope":          "Draws a clear scope boundary",
	"user_focus":             "Keeps the end user in view",
	"weighs_tradeoffs":       "Weighs trade-offs between options",
	"considers_alternatives": "Considers alternative approaches",
	"analyzes_complexity":    "Reasons about complexity",
	"plans_steps":            "Breaks the work into ordered steps",
	"models_data":            "Thinks in terms of data models and interfaces",
	"tests_code":             "Verifies work with tests",
	"refactors":              "Refactors as the design becomes clearer",
	"handles_errors":         "Handles error paths",
	"covers_edge_cases":      "Covers edge cases",
	"incremental_delivery":   "Delivers in small increments",
	"self_critique":          "Critiques own work honestly",
	"identifies_risks":       "Flags risks for reviewers",
	"plans_followup":         "Plans concrete follow-up work",
	"operational_awareness":  "Considers operating the change in production",
	"documents_work":         "Documents the work",
}

const (
	maxDecisionLength  = 160
	maxHighlightLength = 200
	maxHighlights      = 3
)

// Synthesize implements domain.EvidenceSynthesizer with deterministic rules.
func (m *MockLLM) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.EvidencePackSummary, error) {
	var (
		tags        []string
		seenTag     = make(map[string]bool)
		answered    = make(map[domain.Stage]bool)
		responses   []domain.ResponseContent
		snapshots   int
		prompts     int
		languages   = make(map[string]bool)
		decisionLog []domain.DecisionLogEntry
	)

	addTags := func(ts []string) {
		for _, t := range ts {
			if !seenTag[t] {
				seenTag[t] = true
				tags = append(tags, t)
			}
		}
	}

	for _, ev := range req.Events {
		switch c := ev.Content.(type) {
		case domain.PromptContent:
			prompts++
			addTags(c.Tags)
		case domain.ResponseContent:
			responses = append(responses, c)
			answered[c.Stage] = true
			addTags(DetectSignals(c.Stage, c.Text))
			decisionLog = append(decisionLog, domain.DecisionLogEntry{
				Stage:    c.Stage,
				Decision: firstSentence(c.Text, maxDecisionLength),
			})
		case domain.CodeSnapshotContent:
			snapshots++
			answered[c.Stage] = true
			languages[strings.ToLower(c.Language)] = true
		case domain.SystemContent:
		}
	}

	sum := &domain.EvidencePackSummary{
		DecisionLog: decisionLog,
	}

	for _, t := range tags {
		if desc, ok := signalDescriptions[t]; ok {
			sum.Strengths = append(sum.Strengths, desc)
		} else {
			sum.Strengths = append(sum.Strengths, strings.ReplaceAll(t, "_", " "))
		}
	}

	for _, info := range domain.Stages() {
		if !answered[info.Stage] {
			sum.Risks = append(sum.Risks, fmt.Sprintf("No evidence captured for the %s stage", info.Stage))
		}
	}
	if snapshots == 0 {
		sum.Risks = append(sum.Risks, "No code snapshot was captured")
	}

	sum.Observations = append(sum.Observations,
		fmt.Sprintf("%d prompts, %d responses and %d code snapshots recorded", prompts, len(responses), snapshots))
	if len(languages) > 0 {
		langs := make([]string, 0, len(languages))
		for l := range languages {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		sum.Observations = append(sum.Observations, "Languages used: "+strings.Join(langs, ", "))
	}
	if reached := len(req.Stages); reached > 0 {
		sum.Observations = append(sum.Observations,
			fmt.Sprintf("Reached stage %s (%d of %d)", req.Stages[reached-1].Stage, reached, len(domain.Stages())))
	}

	switch {
	case len(responses) >= 6:
		sum.Confidence = domain.ConfidenceHigh
	case len(responses) >= 3:
		sum.Confidence = domain.ConfidenceMedium
	default:
		sum.Confidence = domain.ConfidenceLow
	}

	sum.RoleLevelEstimate = estimateRoleLevel(req.Session, len(sum.Strengths))

	switch {
	case sum.Confidence == domain.ConfidenceLow:
		sum.RecommendedNextStep = "Schedule a follow-up session to gather more evidence"
	case len(sum.Risks) == 0:
		sum.RecommendedNextStep = "Advance to the next interview round"
	default:
		sum.RecommendedNextStep = "Advance with a focused follow-up on the listed risks"
	}

	sorted := make([]domain.ResponseContent, len(responses))
	copy(sorted, responses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Text) > len(sorted[j].Text)
	})
	for i := 0; i < len(sorted) && i < maxHighlights; i++ {
		sum.Highlights = append(sum.Highlights, truncate(strings.TrimSpace(sorted[i].Text), maxHighlightLength))
	}

	sum.Normalize()
	return sum, nil
}

func estimateRoleLevel(sess *domain.WorkSession, strengths int) string {
	track := "unknown track"
	if sess != nil {
		track = string(sess.RoleTrack)
	}

	level := domain.LevelJunior
	switch {
	case strengths >= 8:
		level = domain.LevelSenior
	case strengths >= 4:
		level = domain.LevelMid
	}
	return fmt.Sprintf("%s / %s", track, level)
}

func firstSentence(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?\n"); i >= 0 {
		s = s[:i+1]
	}
	return truncate(strings.TrimSpace(s), max)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
