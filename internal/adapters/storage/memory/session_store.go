package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/PabloGalante/worksession/internal/domain"
)

func (s *Store) CreateSession(ctx context.Context, session *domain.WorkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}

	s.sessions[session.ID] = session.Clone()
	s.stages[session.ID] = []domain.StageRecord{{
		SessionID: session.ID,
		Stage:     domain.FirstStage,
		StartedAt: session.StartedAt,
	}}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

func (s *Store) ListSessionsByCandidate(
	ctx context.Context,
	candidateID domain.CandidateID,
	limit int,
) ([]*domain.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WorkSession
	for _, sess := range s.sessions {
		if sess.CandidateID == candidateID {
			result = append(result, sess.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (s *Store) AbandonSession(ctx context.Context, id domain.SessionID, at time.Time) (*domain.WorkSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.activeSession(id)
	if err != nil {
		return nil, err
	}

	sess.Status = domain.StatusAbandoned
	sess.EndedAt = &at
	s.closeOpenStage(id, at)

	return sess.Clone(), nil
}

func (s *Store) ListStageRecords(ctx context.Context, id domain.SessionID) ([]domain.StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, domain.ErrSessionNotFound
	}

	records := s.stages[id]
	out := make([]domain.StageRecord, len(records))
	copy(out, records)
	return out, nil
}

func (s *Store) AdvanceStage(ctx context.Context, id domain.SessionID, from, to domain.Stage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.activeSession(id); err != nil {
		return err
	}

	records := s.stages[id]
	if len(records) == 0 || records[len(records)-1].Stage != from || !records[len(records)-1].Open() {
		return domain.ErrStageMismatch
	}

	completedAt := at
	records[len(records)-1].CompletedAt = &completedAt
	if to != "" {
		records = append(records, domain.StageRecord{
			SessionID: id,
			Stage:     to,
			StartedAt: at,
		})
	}
	s.stages[id] = records
	return nil
}

// closeOpenStage must be called with s.mu held.
func (s *Store) closeOpenStage(id domain.SessionID, at time.Time) {
	records := s.stages[id]
	if len(records) == 0 || !records[len(records)-1].Open() {
		return
	}
	completedAt := at
	records[len(records)-1].CompletedAt = &completedAt
}
