// Package worksession runs the lifecycle of a work session: creation, event
// recording, stage progression and abandonment.
package worksession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/worksession/internal/domain"
	"github.com/PabloGalante/worksession/internal/observability"
)

// Store is the subset of domain.Store the service needs.
type Store interface {
	domain.SessionStore
	domain.StageStore
	domain.EventStore
}

type Service struct {
	store     Store
	prompts   domain.PromptGenerator
	inspector domain.RepositoryInspector
	now       func() time.Time
}

// NewService creates the service. inspector may be nil, in which case no
// session has GitHub data.
func NewService(
	store Store,
	prompts domain.PromptGenerator,
	inspector domain.RepositoryInspector,
) *Service {
	return &Service{
		store:     store,
		prompts:   prompts,
		inspector: inspector,
		now:       time.Now,
	}
}

// ─────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────

type CreateSessionInput struct {
	GitHubURL       string
	RoleTrack       string
	Level           string
	DurationMinutes int
	CandidateID     string
}

type CreateSessionOutput struct {
	Session *domain.WorkSession
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionOutput, error) {
	owner, repo, err := domain.ParseGitHubURL(in.GitHubURL)
	if err != nil {
		return nil, err
	}
	track, err := domain.ParseRoleTrack(in.RoleTrack)
	if err != nil {
		return nil, err
	}
	level, err := domain.ParseLevel(in.Level)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateDuration(in.DurationMinutes); err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"role_track", track,
		"level", level,
		"duration_minutes", in.DurationMinutes,
	)
	log.Info("creating work session")

	session := &domain.WorkSession{
		ID:              domain.SessionID(uuid.NewString()),
		CandidateID:     domain.CandidateID(strings.TrimSpace(in.CandidateID)),
		GitHubURL:       strings.TrimSpace(in.GitHubURL),
		RoleTrack:       track,
		Level:           level,
		DurationMinutes: in.DurationMinutes,
		Status:          domain.StatusActive,
		StartedAt:       s.now().UTC(),
		Repository:      s.inspect(ctx, owner, repo),
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	started := domain.SystemContent{
		Subtype: domain.SystemSessionStarted,
		Message: fmt.Sprintf("%s %s session started (%d minutes)", level, track, in.DurationMinutes),
	}
	if _, err := s.RecordEvent(ctx, session.ID, started); err != nil {
		log.Error("failed to record session start", "session_id", session.ID, "error", err)
		return nil, err
	}

	log.Info("work session created", "session_id", session.ID, "has_github_data", session.HasGitHubData())

	return &CreateSessionOutput{Session: session}, nil
}

// inspect is best-effort: any failure leaves the session without GitHub data.
func (s *Service) inspect(ctx context.Context, owner, repo string) *domain.RepositoryInfo {
	if s.inspector == nil || repo == "" {
		return nil
	}
	info, err := s.inspector.Inspect(ctx, owner, repo)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("repository inspection failed",
			"owner", owner,
			"repo", repo,
			"error", err)
		return nil
	}
	return info
}

// ─────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────

// RecordEvent appends an event to an active session. Identical payloads
// recorded twice are stored twice.
func (s *Service) RecordEvent(ctx context.Context, sessionID domain.SessionID, content domain.EventContent) (*domain.Event, error) {
	if err := domain.ValidateContent(content); err != nil {
		return nil, err
	}

	event := &domain.Event{
		ID:        domain.EventID(uuid.NewString()),
		SessionID: sessionID,
		Content:   domain.CloneContent(content),
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.AppendEvent(ctx, event); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Debug("event recorded",
		"session_id", sessionID,
		"event_id", event.ID,
		"type", event.Type(),
		"seq", event.Seq)

	return event, nil
}

// ─────────────────────────────────────────────
// Prompts and stages
// ─────────────────────────────────────────────

type NextPromptInput struct {
	SessionID         domain.SessionID
	CurrentStage      string
	CandidateResponse string
}

type NextPromptOutput struct {
	NextPrompt      string
	StageComplete   bool
	SignalTags      []string
	CurrentStage    domain.Stage
	CompletedStages []domain.Stage
	Progress        float64
}

// NextPrompt asks the prompt generator for the next prompt and advances the
// stage when the generator reports the current one complete. The client
// records the prompt and the response it sends; NextPrompt only records a
// SYSTEM event when the stage changes.
func (s *Service) NextPrompt(ctx context.Context, in NextPromptInput) (*NextPromptOutput, error) {
	stage, err := domain.ParseStage(in.CurrentStage)
	if err != nil {
		return nil, err
	}

	session, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"stage", stage,
	)

	records, err := s.store.ListStageRecords(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	seq := domain.RestoreSequencer(records)
	if seq.Current() != stage {
		return nil, fmt.Errorf("%w: session is in stage %s, not %s", domain.ErrStageMismatch, seq.Current(), stage)
	}

	history, err := s.store.ListEvents(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	res, err := s.prompts.NextPrompt(ctx, domain.PromptRequest{
		Session:           session,
		Stage:             stage,
		CandidateResponse: in.CandidateResponse,
		History:           history,
	})
	if err != nil {
		log.Error("prompt generator failed", "error", err)
		return nil, fmt.Errorf("%w: failed to get next prompt: %v", domain.ErrUpstream, err)
	}

	if res.StageComplete && !seq.IsComplete(stage) {
		seq.MarkComplete()
		var to domain.Stage
		if seq.Advance() {
			to = seq.Current()
		}
		if err := s.store.AdvanceStage(ctx, session.ID, stage, to, s.now().UTC()); err != nil {
			log.Error("failed to advance stage", "error", err)
			return nil, err
		}
		if err := s.recordAdvance(ctx, session.ID, stage, to); err != nil {
			log.Error("failed to record stage advance", "error", err)
			return nil, err
		}
		log.Info("stage completed", "next_stage", to, "signal_tags", res.SignalTags)
	}

	return &NextPromptOutput{
		NextPrompt:      res.NextPrompt,
		StageComplete:   res.StageComplete,
		SignalTags:      nonNil(res.SignalTags),
		CurrentStage:    seq.Current(),
		CompletedStages: seq.Completed(),
		Progress:        seq.Progress(),
	}, nil
}

func (s *Service) recordAdvance(ctx context.Context, id domain.SessionID, from, to domain.Stage) error {
	msg := fmt.Sprintf("stage %s completed, now in %s", from, to)
	if to == "" {
		msg = fmt.Sprintf("stage %s completed, all stages done", from)
	}
	_, err := s.RecordEvent(ctx, id, domain.SystemContent{
		Subtype: domain.SystemStageAdvanced,
		Message: msg,
	})
	return err
}

type StageProgress struct {
	CurrentStage    domain.Stage
	CompletedStages []domain.Stage
	Progress        float64
	Terminal        bool
	Records         []domain.StageRecord
}

func (s *Service) StageProgress(ctx context.Context, sessionID domain.SessionID) (*StageProgress, error) {
	records, err := s.store.ListStageRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	seq := domain.RestoreSequencer(records)
	return &StageProgress{
		CurrentStage:    seq.Current(),
		CompletedStages: seq.Completed(),
		Progress:        seq.Progress(),
		Terminal:        seq.Terminal(),
		Records:         records,
	}, nil
}

// ─────────────────────────────────────────────
// Lifecycle and reads
// ─────────────────────────────────────────────

func (s *Service) AbandonSession(ctx context.Context, sessionID domain.SessionID) (*domain.WorkSession, error) {
	session, err := s.store.AbandonSession(ctx, sessionID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Info("work session abandoned", "session_id", sessionID)
	return session, nil
}

type Timeline struct {
	Session *domain.WorkSession
	Stages  []domain.StageRecord
	Events  []*domain.Event
}

func (s *Service) GetTimeline(ctx context.Context, sessionID domain.SessionID) (*Timeline, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return nil, err
	}

	stages, err := s.store.ListStageRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, sessionID)
	if err != nil {
		log.Error("failed to get events", "error", err)
		return nil, err
	}

	log.Info("fetched session timeline", "event_count", len(events))

	return &Timeline{Session: session, Stages: stages, Events: events}, nil
}

// LatestSession returns the newest session of a candidate, or nil if the
// candidate has none.
func (s *Service) LatestSession(ctx context.Context, candidateID string) (*domain.WorkSession, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, fmt.Errorf("%w: candidate_id is required", domain.ErrValidation)
	}

	sessions, err := s.store.ListSessionsByCandidate(ctx, domain.CandidateID(candidateID), 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0], nil
}

func (s *Service) activeSession(ctx context.Context, id domain.SessionID) (*domain.WorkSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusActive {
		return nil, fmt.Errorf("%w: session is %s", domain.ErrSessionNotActive, session.Status)
	}
	return session, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
