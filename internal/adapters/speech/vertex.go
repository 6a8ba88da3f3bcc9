package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"google.golang.org/genai"

	"github.com/PabloGalante/worksession/internal/domain"
)

// VertexSynthesizer speaks prompts with a Gemini TTS model.
type VertexSynthesizer struct {
	client    *genai.Client
	modelName string
	voice     string
}

var _ domain.SpeechSynthesizer = (*VertexSynthesizer)(nil)

func NewVertexSynthesizer(client *genai.Client, modelName, voice string) *VertexSynthesizer {
	if modelName == "" {
		modelName = "gemini-2.5-flash-preview-tts"
	}
	if voice == "" {
		voice = "Kore"
	}
	return &VertexSynthesizer{
		client:    client,
		modelName: modelName,
		voice:     voice,
	}
}

func (v *VertexSynthesizer) Synthesize(ctx context.Context, text string) (*domain.Audio, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: v.voice},
			},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex tts: %w", err)
	}

	pcm := inlineAudio(res)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("vertex tts returned no audio")
	}

	return &domain.Audio{
		ContentType: ContentTypeWAV,
		Body:        io.NopCloser(bytes.NewReader(encodeWAV(pcm, sampleRate, channels, bitsPerSample))),
	}, nil
}

func inlineAudio(res *genai.GenerateContentResponse) []byte {
	if res == nil {
		return nil
	}
	var pcm []byte
	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				pcm = append(pcm, part.InlineData.Data...)
			}
		}
		if len(pcm) > 0 {
			break
		}
	}
	return pcm
}
