package speech

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"google.golang.org/genai"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := encodeWAV(pcm, 24000, 1, 16)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("unexpected length %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Fatalf("riff size = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Fatalf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Fatalf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d", got)
	}
}

func TestMockSynthesizerReturnsSilentWAV(t *testing.T) {
	audio, err := NewMockSynthesizer().Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	defer audio.Body.Close()

	data, err := io.ReadAll(audio.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if audio.ContentType != ContentTypeWAV || string(data[:4]) != "RIFF" {
		t.Fatalf("unexpected audio %s %q", audio.ContentType, data[:4])
	}
	for _, b := range data[44:] {
		if b != 0 {
			t.Fatalf("expected silence")
		}
	}
}

func TestInlineAudioSkipsEmptyCandidates(t *testing.T) {
	res := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "ignored"},
				{InlineData: &genai.Blob{MIMEType: "audio/L16", Data: []byte{9, 9}}},
			}}},
		},
	}
	if got := inlineAudio(res); len(got) != 2 {
		t.Fatalf("expected 2 bytes of audio, got %v", got)
	}
	if got := inlineAudio(nil); got != nil {
		t.Fatalf("expected nil for nil response")
	}
}
