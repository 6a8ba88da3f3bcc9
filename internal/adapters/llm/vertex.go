package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/worksession/internal/domain"
)

type VertexClient struct {
	client    *genai.Client
	modelName string
}

var (
	_ domain.PromptGenerator     = (*VertexClient)(nil)
	_ domain.EvidenceSynthesizer = (*VertexClient)(nil)
)

// NewGenAIClient creates a Vertex AI backed genai client shared by the
// prompt, synthesis and speech adapters.
func NewGenAIClient(ctx context.Context, projectID, location string) (*genai.Client, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("GCP project and location must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}
	return client, nil
}

// NewVertexClient creates a prompt generator and evidence synthesizer
// backed by Vertex AI (Gemini).
func NewVertexClient(client *genai.Client, modelName string) *VertexClient {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &VertexClient{
		client:    client,
		modelName: modelName,
	}
}

var promptResultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"nextPrompt":    {Type: genai.TypeString},
		"stageComplete": {Type: genai.TypeBoolean},
		"signalTags":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"nextPrompt", "stageComplete", "signalTags"},
}

var stringList = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"roleLevelEstimate": {Type: genai.TypeString},
		"confidence": {
			Type: genai.TypeString,
			Enum: []string{string(domain.ConfidenceLow), string(domain.ConfidenceMedium), string(domain.ConfidenceHigh)},
		},
		"strengths": stringList,
		"risks":     stringList,
		"decisionLog": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"stage":     {Type: genai.TypeString},
					"decision":  {Type: genai.TypeString},
					"rationale": {Type: genai.TypeString},
				},
				Required: []string{"stage", "decision"},
			},
		},
		"observations":        stringList,
		"recommendedNextStep": {Type: genai.TypeString},
		"highlights":          stringList,
	},
	Required: []string{
		"roleLevelEstimate", "confidence", "strengths", "risks",
		"decisionLog", "observations", "recommendedNextStep", "highlights",
	},
}

// generateJSON sends one prompt and decodes the JSON answer into out.
func (v *VertexClient) generateJSON(ctx context.Context, p Prompt, schema *genai.Schema, temp float32, out any) error {
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   8192,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}

	contents := []*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return fmt.Errorf("vertex generate content: %w", err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return fmt.Errorf("vertex returned empty text")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("vertex returned invalid JSON: %w", err)
	}
	return nil
}

// NextPrompt implements domain.PromptGenerator using Vertex AI.
func (v *VertexClient) NextPrompt(ctx context.Context, req domain.PromptRequest) (*domain.PromptResult, error) {
	var out struct {
		NextPrompt    string   `json:"nextPrompt"`
		StageComplete bool     `json:"stageComplete"`
		SignalTags    []string `json:"signalTags"`
	}
	if err := v.generateJSON(ctx, BuildNextPrompt(req), promptResultSchema, 0.7, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.NextPrompt) == "" {
		return nil, fmt.Errorf("vertex returned an empty prompt")
	}

	return &domain.PromptResult{
		NextPrompt:    out.NextPrompt,
		StageComplete: out.StageComplete,
		SignalTags:    out.SignalTags,
	}, nil
}

// Synthesize implements domain.EvidenceSynthesizer using Vertex AI.
func (v *VertexClient) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.EvidencePackSummary, error) {
	var sum domain.EvidencePackSummary
	if err := v.generateJSON(ctx, BuildSynthesisPrompt(req), summarySchema, 0.2, &sum); err != nil {
		return nil, err
	}

	sum.Normalize()
	return &sum, nil
}
