// Package speech turns interviewer prompts into audio playback handles.
package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PabloGalante/worksession/internal/domain"
)

// MaxTextLength bounds the text sent to the speech synthesizer.
const MaxTextLength = 2000

// Playback owns a synthesized audio stream until Release is called or the
// context passed to Acquire is done, whichever comes first.
type Playback struct {
	audio    *domain.Audio
	stop     func() bool
	once     sync.Once
	err      error
	released atomic.Bool
}

// Acquire synthesizes text and returns a handle for the resulting audio.
func Acquire(ctx context.Context, synth domain.SpeechSynthesizer, text string) (*Playback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	if len([]rune(text)) > MaxTextLength {
		return nil, fmt.Errorf("%w: text longer than %d characters", domain.ErrValidation, MaxTextLength)
	}

	audio, err := synth.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to synthesize speech: %v", domain.ErrUpstream, err)
	}

	p := &Playback{audio: audio}
	p.stop = context.AfterFunc(ctx, func() {
		_ = p.close()
	})
	return p, nil
}

func (p *Playback) ContentType() string {
	return p.audio.ContentType
}

// Read reads from the audio stream. It fails once the playback is released.
func (p *Playback) Read(b []byte) (int, error) {
	return p.audio.Body.Read(b)
}

// Release closes the audio stream. Calling it more than once is safe.
func (p *Playback) Release() error {
	p.stop()
	return p.close()
}

// Released reports whether the audio stream has been closed.
func (p *Playback) Released() bool {
	return p.released.Load()
}

func (p *Playback) close() error {
	p.once.Do(func() {
		p.err = p.audio.Body.Close()
		p.released.Store(true)
	})
	return p.err
}
