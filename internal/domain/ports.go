package domain

import (
	"context"
	"io"
	"time"
)

// PromptRequest gives the prompt generator what it needs to pick the next prompt.
type PromptRequest struct {
	Session           *WorkSession
	Stage             Stage
	CandidateResponse string
	History           []*Event
}

type PromptResult struct {
	NextPrompt    string
	StageComplete bool
	SignalTags    []string
}

// PromptGenerator decides the next prompt and whether the current stage is done.
type PromptGenerator interface {
	NextPrompt(ctx context.Context, req PromptRequest) (*PromptResult, error)
}

type SynthesisRequest struct {
	Session *WorkSession
	Stages  []StageRecord
	Events  []*Event
}

// EvidenceSynthesizer derives an evidence pack summary from a session's history.
type EvidenceSynthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*EvidencePackSummary, error)
}

// RepositoryInspector fetches metadata about the repository a session uses.
type RepositoryInspector interface {
	Inspect(ctx context.Context, owner, repo string) (*RepositoryInfo, error)
}

// Audio is a synthesized speech stream. Body must be closed by the receiver.
type Audio struct {
	ContentType string
	Body        io.ReadCloser
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// SessionStore defines session persistence.
type SessionStore interface {
	// CreateSession persists an active session and opens its FirstStage record.
	CreateSession(ctx context.Context, session *WorkSession) error
	GetSession(ctx context.Context, id SessionID) (*WorkSession, error)
	// ListSessionsByCandidate returns sessions newest first.
	ListSessionsByCandidate(ctx context.Context, candidateID CandidateID, limit int) ([]*WorkSession, error)
	// AbandonSession moves an active session to abandoned.
	AbandonSession(ctx context.Context, id SessionID, at time.Time) (*WorkSession, error)
}

// StageStore defines the session-stage table.
type StageStore interface {
	ListStageRecords(ctx context.Context, id SessionID) ([]StageRecord, error)
	// AdvanceStage closes the open record for from and, if to is not empty,
	// opens a record for to. Fails with ErrStageMismatch if from is not the open stage.
	AdvanceStage(ctx context.Context, id SessionID, from, to Stage, at time.Time) error
}

// EventStore defines the append-only event log.
type EventStore interface {
	// AppendEvent assigns event.Seq and stores it, atomically with the check
	// that the session exists and is active.
	AppendEvent(ctx context.Context, event *Event) error
	// ListEvents returns all events of a session in append order.
	ListEvents(ctx context.Context, id SessionID) ([]*Event, error)
}

// EvidenceStore defines evidence pack persistence.
type EvidenceStore interface {
	// CompleteSession stores pack and moves its session to completed in one
	// step. If the session is already completed, the stored pack is returned
	// instead and pack is discarded.
	CompleteSession(ctx context.Context, pack *EvidencePack) (*EvidencePack, error)
	GetEvidencePackByShareID(ctx context.Context, shareID ShareID) (*EvidencePack, error)
	GetEvidencePackBySessionID(ctx context.Context, sessionID SessionID) (*EvidencePack, error)
}

// Store is implemented by every storage backend.
type Store interface {
	SessionStore
	StageStore
	EventStore
	EvidenceStore
	Close() error
}
