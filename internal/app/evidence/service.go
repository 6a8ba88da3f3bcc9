// Package evidence completes work sessions into evidence packs and reads
// packs back by share id or session id.
package evidence

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/worksession/internal/domain"
	"github.com/PabloGalante/worksession/internal/observability"
)

// Store is the subset of domain.Store the service needs.
type Store interface {
	GetSession(ctx context.Context, id domain.SessionID) (*domain.WorkSession, error)
	ListStageRecords(ctx context.Context, id domain.SessionID) ([]domain.StageRecord, error)
	ListEvents(ctx context.Context, id domain.SessionID) ([]*domain.Event, error)
	domain.EvidenceStore
}

type Service struct {
	store       Store
	synthesizer domain.EvidenceSynthesizer
	now         func() time.Time
	newShareID  func() (domain.ShareID, error)
}

func NewService(store Store, synthesizer domain.EvidenceSynthesizer) *Service {
	return &Service{
		store:       store,
		synthesizer: synthesizer,
		now:         time.Now,
		newShareID:  NewShareID,
	}
}

// NewShareID returns 128 random bits, base64url encoded without padding.
func NewShareID() (domain.ShareID, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating share id: %w", err)
	}
	return domain.ShareID(base64.RawURLEncoding.EncodeToString(b[:])), nil
}

// ─────────────────────────────────────────────
// Complete
// ─────────────────────────────────────────────

type CompleteOutput struct {
	EvidencePackID domain.EvidencePackID
	ShareID        domain.ShareID
}

// Complete builds the evidence pack of an active session and marks the
// session completed. Completing an already completed session returns the
// pack that was issued the first time.
func (s *Service) Complete(ctx context.Context, sessionID domain.SessionID) (*CompleteOutput, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case domain.StatusCompleted:
		pack, err := s.store.GetEvidencePackBySessionID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		log.Info("session already completed", "evidence_pack_id", pack.ID)
		return &CompleteOutput{EvidencePackID: pack.ID, ShareID: pack.ShareID}, nil
	case domain.StatusAbandoned:
		return nil, fmt.Errorf("%w: session is %s", domain.ErrSessionNotActive, session.Status)
	}

	events, err := s.store.ListEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stages, err := s.store.ListStageRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var summary *domain.EvidencePackSummary
	if countEvidence(events) == 0 {
		log.Warn("no candidate evidence recorded, building degraded summary")
		summary = insufficientEvidence(session)
	} else {
		summary, err = s.synthesizer.Synthesize(ctx, domain.SynthesisRequest{
			Session: session,
			Stages:  stages,
			Events:  events,
		})
		if err != nil {
			log.Error("evidence synthesis failed", "error", err)
			return nil, fmt.Errorf("%w: failed to complete session: %v", domain.ErrUpstream, err)
		}
	}
	summary.Normalize()

	shareID, err := s.newShareID()
	if err != nil {
		return nil, err
	}

	pack, err := s.store.CompleteSession(ctx, &domain.EvidencePack{
		ID:          domain.EvidencePackID(uuid.NewString()),
		SessionID:   sessionID,
		ShareID:     shareID,
		Summary:     *summary,
		GeneratedAt: s.now().UTC(),
	})
	if err != nil {
		log.Error("failed to store evidence pack", "error", err)
		return nil, err
	}

	log.Info("session completed",
		"evidence_pack_id", pack.ID,
		"confidence", pack.Summary.Confidence,
		"event_count", len(events))

	return &CompleteOutput{EvidencePackID: pack.ID, ShareID: pack.ShareID}, nil
}

// countEvidence counts events recorded within a stage. SYSTEM events are
// bookkeeping and carry no stage.
func countEvidence(events []*domain.Event) int {
	n := 0
	for _, ev := range events {
		if _, ok := domain.EventStage(ev.Content); ok {
			n++
		}
	}
	return n
}

func insufficientEvidence(session *domain.WorkSession) *domain.EvidencePackSummary {
	return &domain.EvidencePackSummary{
		RoleLevelEstimate:   fmt.Sprintf("%s / undetermined", session.RoleTrack),
		Confidence:          domain.ConfidenceLow,
		Risks:               []string{"insufficient evidence"},
		Observations:        []string{"The session ended before any prompt, response or code snapshot was recorded"},
		RecommendedNextStep: "schedule a new work session",
	}
}

// ─────────────────────────────────────────────
// Read
// ─────────────────────────────────────────────

// Lookup selects a pack by exactly one of its identifiers.
type Lookup struct {
	ShareID   string
	SessionID string
}

type PackView struct {
	Pack    *domain.EvidencePack
	Session *domain.WorkSession
}

// Get returns the pack matching the lookup together with its session.
func (s *Service) Get(ctx context.Context, lookup Lookup) (*PackView, error) {
	shareID := strings.TrimSpace(lookup.ShareID)
	sessionID := strings.TrimSpace(lookup.SessionID)
	if (shareID == "") == (sessionID == "") {
		return nil, domain.ErrInvalidLookup
	}

	var (
		pack *domain.EvidencePack
		err  error
	)
	if shareID != "" {
		pack, err = s.store.GetEvidencePackByShareID(ctx, domain.ShareID(shareID))
	} else {
		pack, err = s.store.GetEvidencePackBySessionID(ctx, domain.SessionID(sessionID))
	}
	if err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, pack.SessionID)
	if err != nil {
		return nil, err
	}

	return &PackView{Pack: pack, Session: session}, nil
}
