package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/worksession/internal/domain"
)

type Store struct {
	client *firestore.Client
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a Firestore store.
// Uses the project passed (WORKSESSION_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) stagesCol(id domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(id).Collection("stages")
}

func (s *Store) eventsCol(id domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(id).Collection("events")
}

func (s *Store) packsCol() *firestore.CollectionRef {
	return s.client.Collection("evidence_packs")
}

// packDoc is keyed by session id, so Create enforces one pack per session.
func (s *Store) packDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.packsCol().Doc(string(id))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	CandidateID     string         `firestore:"candidate_id"`
	GitHubURL       string         `firestore:"github_url"`
	RoleTrack       string         `firestore:"role_track"`
	Level           string         `firestore:"level"`
	DurationMinutes int            `firestore:"duration_minutes"`
	Status          string         `firestore:"status"`
	StartedAt       time.Time      `firestore:"started_at"`
	EndedAt         *time.Time     `firestore:"ended_at"`
	CurrentStage    string         `firestore:"current_stage"`
	EventCount      int64          `firestore:"event_count"`
	Repository      *repositoryDoc `firestore:"repository"`
}

type repositoryDoc struct {
	Owner         string   `firestore:"owner"`
	Name          string   `firestore:"name"`
	FullName      string   `firestore:"full_name"`
	Description   string   `firestore:"description"`
	DefaultBranch string   `firestore:"default_branch"`
	Language      string   `firestore:"language"`
	Topics        []string `firestore:"topics"`
	Stars         int      `firestore:"stars"`
}

type stageDoc struct {
	Stage       string     `firestore:"stage"`
	StartedAt   time.Time  `firestore:"started_at"`
	CompletedAt *time.Time `firestore:"completed_at"`
}

type eventDoc struct {
	Seq       int64     `firestore:"seq"`
	Type      string    `firestore:"type"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`
}

type packDoc struct {
	ID          string    `firestore:"id"`
	SessionID   string    `firestore:"session_id"`
	ShareID     string    `firestore:"share_id"`
	Summary     string    `firestore:"summary"`
	GeneratedAt time.Time `firestore:"generated_at"`
}

func toSessionDoc(sess *domain.WorkSession) sessionDoc {
	doc := sessionDoc{
		CandidateID:     string(sess.CandidateID),
		GitHubURL:       sess.GitHubURL,
		RoleTrack:       string(sess.RoleTrack),
		Level:           string(sess.Level),
		DurationMinutes: sess.DurationMinutes,
		Status:          string(sess.Status),
		StartedAt:       sess.StartedAt,
		EndedAt:         sess.EndedAt,
		CurrentStage:    string(domain.FirstStage),
	}
	if r := sess.Repository; r != nil {
		doc.Repository = &repositoryDoc{
			Owner:         r.Owner,
			Name:          r.Name,
			FullName:      r.FullName,
			Description:   r.Description,
			DefaultBranch: r.DefaultBranch,
			Language:      r.Language,
			Topics:        r.Topics,
			Stars:         r.Stars,
		}
	}
	return doc
}

func (d sessionDoc) toDomain(id domain.SessionID) *domain.WorkSession {
	sess := &domain.WorkSession{
		ID:              id,
		CandidateID:     domain.CandidateID(d.CandidateID),
		GitHubURL:       d.GitHubURL,
		RoleTrack:       domain.RoleTrack(d.RoleTrack),
		Level:           domain.Level(d.Level),
		DurationMinutes: d.DurationMinutes,
		Status:          domain.SessionStatus(d.Status),
		StartedAt:       d.StartedAt,
		EndedAt:         d.EndedAt,
	}
	if r := d.Repository; r != nil {
		sess.Repository = &domain.RepositoryInfo{
			Owner:         r.Owner,
			Name:          r.Name,
			FullName:      r.FullName,
			Description:   r.Description,
			DefaultBranch: r.DefaultBranch,
			Language:      r.Language,
			Topics:        r.Topics,
			Stars:         r.Stars,
		}
	}
	return sess
}

// readSession loads a session inside a transaction.
func (s *Store) readSession(tx *firestore.Transaction, id domain.SessionID) (*sessionDoc, error) {
	snap, err := tx.Get(s.sessionDoc(id))
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore get session: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore decode session: %w", err)
	}
	return &doc, nil
}

func (s *Store) readActiveSession(tx *firestore.Transaction, id domain.SessionID) (*sessionDoc, error) {
	doc, err := s.readSession(tx, id)
	if err != nil {
		return nil, err
	}
	if domain.SessionStatus(doc.Status) != domain.StatusActive {
		return nil, domain.ErrSessionNotActive
	}
	return doc, nil
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.WorkSession) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.sessionDoc(session.ID), toSessionDoc(session)); err != nil {
			return err
		}
		return tx.Create(s.stagesCol(session.ID).Doc(string(domain.FirstStage)), stageDoc{
			Stage:     string(domain.FirstStage),
			StartedAt: session.StartedAt,
		})
	})
	if err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.WorkSession, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}

	return doc.toDomain(id), nil
}

func (s *Store) ListSessionsByCandidate(
	ctx context.Context,
	candidateID domain.CandidateID,
	limit int,
) ([]*domain.WorkSession, error) {
	q := s.sessionsCol().Where("candidate_id", "==", string(candidateID)).OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.WorkSession
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListSessionsByCandidate: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.SessionID(snap.Ref.ID)))
	}
	return out, nil
}

func (s *Store) AbandonSession(ctx context.Context, id domain.SessionID, at time.Time) (*domain.WorkSession, error) {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := s.readActiveSession(tx, id)
		if err != nil {
			return err
		}
		current, err := s.readStage(tx, id, domain.Stage(doc.CurrentStage))
		if err != nil {
			return err
		}

		if err := tx.Update(s.sessionDoc(id), []firestore.Update{
			{Path: "status", Value: string(domain.StatusAbandoned)},
			{Path: "ended_at", Value: at},
		}); err != nil {
			return err
		}
		return s.closeStage(tx, id, current, at)
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

// ─────────────────────────────────────────
// StageStore implementation
// ─────────────────────────────────────────

func (s *Store) ListStageRecords(ctx context.Context, id domain.SessionID) ([]domain.StageRecord, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	iter := s.stagesCol(id).OrderBy("started_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []domain.StageRecord
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListStageRecords: %w", err)
		}

		var doc stageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode stageDoc: %w", err)
		}
		out = append(out, domain.StageRecord{
			SessionID:   id,
			Stage:       domain.Stage(doc.Stage),
			StartedAt:   doc.StartedAt,
			CompletedAt: doc.CompletedAt,
		})
	}
	return out, nil
}

func (s *Store) AdvanceStage(ctx context.Context, id domain.SessionID, from, to domain.Stage, at time.Time) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := s.readActiveSession(tx, id)
		if err != nil {
			return err
		}
		if domain.Stage(doc.CurrentStage) != from {
			return domain.ErrStageMismatch
		}
		current, err := s.readStage(tx, id, from)
		if err != nil {
			return err
		}
		if current == nil || current.CompletedAt != nil {
			return domain.ErrStageMismatch
		}

		if err := s.closeStage(tx, id, current, at); err != nil {
			return err
		}
		if to == "" {
			return nil
		}
		if err := tx.Create(s.stagesCol(id).Doc(string(to)), stageDoc{
			Stage:     string(to),
			StartedAt: at,
		}); err != nil {
			return err
		}
		return tx.Update(s.sessionDoc(id), []firestore.Update{
			{Path: "current_stage", Value: string(to)},
		})
	})
}

// readStage loads a stage record inside a transaction. Firestore requires
// every transactional read to happen before the first write.
func (s *Store) readStage(tx *firestore.Transaction, id domain.SessionID, stage domain.Stage) (*stageDoc, error) {
	snap, err := tx.Get(s.stagesCol(id).Doc(string(stage)))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore get stage: %w", err)
	}
	var doc stageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode stageDoc: %w", err)
	}
	return &doc, nil
}

// closeStage stamps completed_at on a stage that is still open. A closed
// stage keeps its original completion time.
func (s *Store) closeStage(tx *firestore.Transaction, id domain.SessionID, doc *stageDoc, at time.Time) error {
	updates := closeStageUpdates(doc, at)
	if len(updates) == 0 {
		return nil
	}
	return tx.Update(s.stagesCol(id).Doc(doc.Stage), updates)
}

func closeStageUpdates(doc *stageDoc, at time.Time) []firestore.Update {
	if doc == nil || doc.CompletedAt != nil {
		return nil
	}
	return []firestore.Update{{Path: "completed_at", Value: at}}
}

// ─────────────────────────────────────────
// EventStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendEvent(ctx context.Context, event *domain.Event) error {
	content, err := domain.EncodeContent(event.Content)
	if err != nil {
		return err
	}

	var seq int64
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := s.readActiveSession(tx, event.SessionID)
		if err != nil {
			return err
		}

		seq = doc.EventCount + 1
		if err := tx.Create(s.eventsCol(event.SessionID).Doc(string(event.ID)), eventDoc{
			Seq:       seq,
			Type:      string(event.Type()),
			Content:   string(content),
			CreatedAt: event.CreatedAt,
		}); err != nil {
			return err
		}
		return tx.Update(s.sessionDoc(event.SessionID), []firestore.Update{
			{Path: "event_count", Value: seq},
		})
	})
	if err != nil {
		return err
	}

	event.Seq = seq
	return nil
}

func (s *Store) ListEvents(ctx context.Context, id domain.SessionID) ([]*domain.Event, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	iter := s.eventsCol(id).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Event
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListEvents: %w", err)
		}

		var doc eventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode eventDoc: %w", err)
		}
		content, err := domain.DecodeContent(domain.EventType(doc.Type), []byte(doc.Content))
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", snap.Ref.ID, err)
		}

		out = append(out, &domain.Event{
			ID:        domain.EventID(snap.Ref.ID),
			SessionID: id,
			Seq:       doc.Seq,
			Content:   content,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// EvidenceStore implementation
// ─────────────────────────────────────────

func (s *Store) CompleteSession(ctx context.Context, pack *domain.EvidencePack) (*domain.EvidencePack, error) {
	summary, err := encodeSummary(pack.Summary)
	if err != nil {
		return nil, err
	}

	var existing *domain.EvidencePack
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing = nil

		doc, err := s.readSession(tx, pack.SessionID)
		if err != nil {
			return err
		}

		switch domain.SessionStatus(doc.Status) {
		case domain.StatusCompleted:
			snap, err := tx.Get(s.packDoc(pack.SessionID))
			if err != nil {
				if isNotFound(err) {
					return domain.ErrSessionNotActive
				}
				return fmt.Errorf("firestore get evidence pack: %w", err)
			}
			existing, err = decodePack(snap)
			return err
		case domain.StatusAbandoned:
			return domain.ErrSessionNotActive
		}
		current, err := s.readStage(tx, pack.SessionID, domain.Stage(doc.CurrentStage))
		if err != nil {
			return err
		}

		if err := tx.Create(s.packDoc(pack.SessionID), packDoc{
			ID:          string(pack.ID),
			SessionID:   string(pack.SessionID),
			ShareID:     string(pack.ShareID),
			Summary:     summary,
			GeneratedAt: pack.GeneratedAt,
		}); err != nil {
			return err
		}
		if err := tx.Update(s.sessionDoc(pack.SessionID), []firestore.Update{
			{Path: "status", Value: string(domain.StatusCompleted)},
			{Path: "ended_at", Value: pack.GeneratedAt},
		}); err != nil {
			return err
		}
		return s.closeStage(tx, pack.SessionID, current, pack.GeneratedAt)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	out := *pack
	out.Summary.Normalize()
	return &out, nil
}

func (s *Store) GetEvidencePackByShareID(ctx context.Context, shareID domain.ShareID) (*domain.EvidencePack, error) {
	iter := s.packsCol().Where("share_id", "==", string(shareID)).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, domain.ErrEvidencePackNotFound
		}
		return nil, fmt.Errorf("firestore GetEvidencePackByShareID: %w", err)
	}
	return decodePack(snap)
}

func (s *Store) GetEvidencePackBySessionID(ctx context.Context, sessionID domain.SessionID) (*domain.EvidencePack, error) {
	snap, err := s.packDoc(sessionID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrEvidencePackNotFound
		}
		return nil, fmt.Errorf("firestore GetEvidencePackBySessionID: %w", err)
	}
	return decodePack(snap)
}

func decodePack(snap *firestore.DocumentSnapshot) (*domain.EvidencePack, error) {
	var doc packDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode packDoc: %w", err)
	}

	summary, err := decodeSummary(doc.Summary)
	if err != nil {
		return nil, err
	}
	return &domain.EvidencePack{
		ID:          domain.EvidencePackID(doc.ID),
		SessionID:   domain.SessionID(doc.SessionID),
		ShareID:     domain.ShareID(doc.ShareID),
		Summary:     summary,
		GeneratedAt: doc.GeneratedAt,
	}, nil
}
