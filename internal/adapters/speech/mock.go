package speech

import (
	"bytes"
	"context"
	"io"

	"github.com/PabloGalante/worksession/internal/domain"
)

// MockSynthesizer returns a short silent clip for any text.
type MockSynthesizer struct{}

var _ domain.SpeechSynthesizer = (*MockSynthesizer)(nil)

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (*domain.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 100ms of silence.
	pcm := make([]byte, sampleRate/10*channels*bitsPerSample/8)
	return &domain.Audio{
		ContentType: ContentTypeWAV,
		Body:        io.NopCloser(bytes.NewReader(encodeWAV(pcm, sampleRate, channels, bitsPerSample))),
	}, nil
}
