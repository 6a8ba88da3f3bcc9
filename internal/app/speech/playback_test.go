package speech_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PabloGalante/worksession/internal/app/speech"
	"github.com/PabloGalante/worksession/internal/domain"
)

type countingBody struct {
	io.Reader
	closes atomic.Int32
}

func (b *countingBody) Close() error {
	b.closes.Add(1)
	return nil
}

type fakeSynth struct {
	body *countingBody
	err  error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (*domain.Audio, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.body = &countingBody{Reader: strings.NewReader("audio:" + text)}
	return &domain.Audio{ContentType: "audio/wav", Body: f.body}, nil
}

func TestAcquireReadRelease(t *testing.T) {
	synth := &fakeSynth{}

	p, err := speech.Acquire(context.Background(), synth, "  hello  ")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	data, err := io.ReadAll(p)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "audio:hello" {
		t.Fatalf("unexpected audio %q", data)
	}
	if p.ContentType() != "audio/wav" {
		t.Fatalf("unexpected content type %q", p.ContentType())
	}

	if err := p.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
	if got := synth.body.closes.Load(); got != 1 {
		t.Fatalf("expected body closed once, got %d", got)
	}
}

func TestPlaybackReleasedOnContextCancel(t *testing.T) {
	synth := &fakeSynth{}
	ctx, cancel := context.WithCancel(context.Background())

	p, err := speech.Acquire(ctx, synth, "bye")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for !p.Released() {
		if time.Now().After(deadline) {
			t.Fatalf("playback not released after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = p.Release()
	if got := synth.body.closes.Load(); got != 1 {
		t.Fatalf("expected body closed once, got %d", got)
	}
}

func TestAcquireErrors(t *testing.T) {
	if _, err := speech.Acquire(context.Background(), &fakeSynth{}, "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	long := strings.Repeat("a", speech.MaxTextLength+1)
	if _, err := speech.Acquire(context.Background(), &fakeSynth{}, long); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for long text, got %v", err)
	}

	_, err := speech.Acquire(context.Background(), &fakeSynth{err: errors.New("quota")}, "hi")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
