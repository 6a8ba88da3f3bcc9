package domain_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/PabloGalante/worksession/internal/domain"
)

func TestDecodeContentSelectsShapeByType(t *testing.T) {
	tests := []struct {
		name string
		typ  domain.EventType
		raw  string
		want domain.EventContent
	}{
		{
			name: "prompt",
			typ:  domain.EventPrompt,
			raw:  `{"text":"What would you clarify first?","stage":"framing","tags":["scope"]}`,
			want: domain.PromptContent{Text: "What would you clarify first?", Stage: domain.StageFraming, Tags: []string{"scope"}},
		},
		{
			name: "response",
			typ:  domain.EventResponse,
			raw:  `{"text":"I'd clarify constraints first","stage":"framing"}`,
			want: domain.ResponseContent{Text: "I'd clarify constraints first", Stage: domain.StageFraming},
		},
		{
			name: "code snapshot",
			typ:  domain.EventCodeSnapshot,
			raw:  `{"code":"func main() {}","language":"go","stage":"build"}`,
			want: domain.CodeSnapshotContent{Code: "func main() {}", Language: "go", Stage: domain.StageBuild},
		},
		{
			name: "system",
			typ:  domain.EventSystem,
			raw:  `{"message":"timer paused","subtype":"timer"}`,
			want: domain.SystemContent{Message: "timer paused", Subtype: "timer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.DecodeContent(tt.typ, []byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeContent failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %#v, got %#v", tt.want, got)
			}
			if got.EventType() != tt.typ {
				t.Fatalf("expected type %s, got %s", tt.typ, got.EventType())
			}
		})
	}
}

func TestDecodeContentRejectsMismatchedPayloads(t *testing.T) {
	tests := []struct {
		name string
		typ  domain.EventType
		raw  string
	}{
		{"unknown type", domain.EventType("NOTE"), `{"text":"x"}`},
		{"prompt without stage", domain.EventPrompt, `{"text":"hello"}`},
		{"code without language", domain.EventCodeSnapshot, `{"code":"x","stage":"build"}`},
		{"system without subtype", domain.EventSystem, `{"message":"x"}`},
		{"not an object", domain.EventResponse, `"hello"`},
		{"empty", domain.EventResponse, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.DecodeContent(tt.typ, []byte(tt.raw))
			if !errors.Is(err, domain.ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestEncodeContentRoundTrip(t *testing.T) {
	in := domain.CodeSnapshotContent{Code: "SELECT 1;\n", Language: "sql", Stage: domain.StageBuild}

	raw, err := domain.EncodeContent(in)
	if err != nil {
		t.Fatalf("EncodeContent failed: %v", err)
	}
	out, err := domain.DecodeContent(in.EventType(), raw)
	if err != nil {
		t.Fatalf("DecodeContent failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected %#v, got %#v", in, out)
	}
}

func TestParseEventType(t *testing.T) {
	if typ, err := domain.ParseEventType("code_snapshot"); err != nil || typ != domain.EventCodeSnapshot {
		t.Fatalf("expected CODE_SNAPSHOT, got %q (%v)", typ, err)
	}
	if _, err := domain.ParseEventType("VIDEO"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEventCloneCopiesTags(t *testing.T) {
	ev := &domain.Event{ID: "e-1", Content: domain.PromptContent{Text: "Scope?", Stage: domain.StageFraming, Tags: []string{"scope"}}}

	cp := ev.Clone()
	cp.Content.(domain.PromptContent).Tags[0] = "changed"

	if tag := ev.Content.(domain.PromptContent).Tags[0]; tag != "scope" {
		t.Fatalf("clone shares tags with the original: %q", tag)
	}
}

func TestEmptyTagsDecodeAsNil(t *testing.T) {
	c, err := domain.DecodeContent(domain.EventPrompt, []byte(`{"text":"Scope?","stage":"framing","tags":[]}`))
	if err != nil {
		t.Fatalf("DecodeContent failed: %v", err)
	}
	if tags := c.(domain.PromptContent).Tags; tags != nil {
		t.Fatalf("expected nil tags, got %#v", tags)
	}
	if cloned := domain.CloneContent(domain.PromptContent{Text: "x", Stage: domain.StageFraming, Tags: []string{}}); cloned.(domain.PromptContent).Tags != nil {
		t.Fatalf("expected CloneContent to normalise empty tags")
	}
}

func TestEventStage(t *testing.T) {
	if st, ok := domain.EventStage(domain.CodeSnapshotContent{Code: "x", Language: "go", Stage: domain.StageBuild}); !ok || st != domain.StageBuild {
		t.Fatalf("expected build, got %q %v", st, ok)
	}
	if _, ok := domain.EventStage(domain.SystemContent{Message: "m", Subtype: "s"}); ok {
		t.Fatalf("system events carry no stage")
	}
}
