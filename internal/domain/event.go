package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type EventType string

const (
	EventPrompt       EventType = "PROMPT"
	EventResponse     EventType = "RESPONSE"
	EventCodeSnapshot EventType = "CODE_SNAPSHOT"
	EventSystem       EventType = "SYSTEM"
)

// System event subtypes emitted by the service itself.
const (
	SystemSessionStarted = "session_started"
	SystemStageAdvanced  = "stage_advanced"
)

func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EventPrompt, EventResponse, EventCodeSnapshot, EventSystem:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, s)
	}
}

// Event is an immutable record of something that happened during a session.
type Event struct {
	ID        EventID
	SessionID SessionID
	// Seq is assigned by the store and orders events within a session.
	Seq       int64
	Content   EventContent
	CreatedAt Timestamp
}

func (e *Event) Type() EventType {
	return e.Content.EventType()
}

// EventContent is the payload of an Event. Each event type has exactly one
// implementation: PromptContent, ResponseContent, CodeSnapshotContent or
// SystemContent.
type EventContent interface {
	EventType() EventType
	validate() error
}

type PromptContent struct {
	Text  string   `json:"text"`
	Stage Stage    `json:"stage"`
	Tags  []string `json:"tags,omitempty"`
}

type ResponseContent struct {
	Text  string `json:"text"`
	Stage Stage  `json:"stage"`
}

type CodeSnapshotContent struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stage    Stage  `json:"stage"`
}

type SystemContent struct {
	Message string `json:"message"`
	Subtype string `json:"subtype"`
}

func (PromptContent) EventType() EventType       { return EventPrompt }
func (ResponseContent) EventType() EventType     { return EventResponse }
func (CodeSnapshotContent) EventType() EventType { return EventCodeSnapshot }
func (SystemContent) EventType() EventType       { return EventSystem }

func (c PromptContent) validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return requiredFieldError(ErrInvalidEvent, "prompt text")
	}
	return validateEventStage(c.Stage)
}

func (c ResponseContent) validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return requiredFieldError(ErrInvalidEvent, "response text")
	}
	return validateEventStage(c.Stage)
}

func (c CodeSnapshotContent) validate() error {
	if c.Code == "" {
		return requiredFieldError(ErrInvalidEvent, "code")
	}
	if strings.TrimSpace(c.Language) == "" {
		return requiredFieldError(ErrInvalidEvent, "language")
	}
	return validateEventStage(c.Stage)
}

func (c SystemContent) validate() error {
	if strings.TrimSpace(c.Message) == "" {
		return requiredFieldError(ErrInvalidEvent, "system message")
	}
	if strings.TrimSpace(c.Subtype) == "" {
		return requiredFieldError(ErrInvalidEvent, "system subtype")
	}
	return nil
}

func validateEventStage(s Stage) error {
	if !s.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidEvent, s)
	}
	return nil
}

// ValidateContent checks that c is present and well-formed for its type.
func ValidateContent(c EventContent) error {
	if c == nil {
		return requiredFieldError(ErrInvalidEvent, "content")
	}
	return c.validate()
}

// EncodeContent returns the JSON wire form of c.
func EncodeContent(c EventContent) ([]byte, error) {
	if err := ValidateContent(c); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// DecodeContent parses raw as the payload shape selected by t.
func DecodeContent(t EventType, raw []byte) (EventContent, error) {
	if len(raw) == 0 {
		return nil, requiredFieldError(ErrInvalidEvent, "content")
	}

	var (
		content EventContent
		err     error
	)
	switch t {
	case EventPrompt:
		var c PromptContent
		err = json.Unmarshal(raw, &c)
		content = c
	case EventResponse:
		var c ResponseContent
		err = json.Unmarshal(raw, &c)
		content = c
	case EventCodeSnapshot:
		var c CodeSnapshotContent
		err = json.Unmarshal(raw, &c)
		content = c
	case EventSystem:
		var c SystemContent
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s content: %v", ErrInvalidEvent, t, err)
	}

	if err := content.validate(); err != nil {
		return nil, err
	}
	return CloneContent(content), nil
}

// CloneContent returns a copy of c that shares no memory with it. An empty
// tag list comes back nil, the same way every store reads it back.
func CloneContent(c EventContent) EventContent {
	if p, ok := c.(PromptContent); ok {
		p.Tags = cloneStrings(p.Tags)
		return p
	}
	return c
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Content = CloneContent(e.Content)
	return &out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

// EventStage returns the stage an event was recorded in, if its payload carries one.
func EventStage(c EventContent) (Stage, bool) {
	switch v := c.(type) {
	case PromptContent:
		return v.Stage, true
	case ResponseContent:
		return v.Stage, true
	case CodeSnapshotContent:
		return v.Stage, true
	default:
		return "", false
	}
}
