package memory

import (
	"context"
	"errors"

	"github.com/PabloGalante/worksession/internal/domain"
)

func (s *Store) CompleteSession(ctx context.Context, pack *domain.EvidencePack) (*domain.EvidencePack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[pack.SessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	switch sess.Status {
	case domain.StatusCompleted:
		if id, ok := s.packBySess[pack.SessionID]; ok {
			return clonePack(s.packs[id]), nil
		}
		return nil, domain.ErrSessionNotActive
	case domain.StatusAbandoned:
		return nil, domain.ErrSessionNotActive
	}

	if _, taken := s.packByShare[pack.ShareID]; taken {
		return nil, errors.New("share id already issued")
	}

	stored := clonePack(pack)
	s.packs[stored.ID] = stored
	s.packByShare[stored.ShareID] = stored.ID
	s.packBySess[stored.SessionID] = stored.ID

	endedAt := pack.GeneratedAt
	sess.Status = domain.StatusCompleted
	sess.EndedAt = &endedAt
	s.closeOpenStage(sess.ID, endedAt)

	return clonePack(stored), nil
}

func (s *Store) GetEvidencePackByShareID(ctx context.Context, shareID domain.ShareID) (*domain.EvidencePack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.packByShare[shareID]
	if !ok {
		return nil, domain.ErrEvidencePackNotFound
	}
	return clonePack(s.packs[id]), nil
}

func (s *Store) GetEvidencePackBySessionID(ctx context.Context, sessionID domain.SessionID) (*domain.EvidencePack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.packBySess[sessionID]
	if !ok {
		return nil, domain.ErrEvidencePackNotFound
	}
	return clonePack(s.packs[id]), nil
}

func clonePack(p *domain.EvidencePack) *domain.EvidencePack {
	out := *p
	sum := p.Summary
	sum.Strengths = append([]string(nil), sum.Strengths...)
	sum.Risks = append([]string(nil), sum.Risks...)
	sum.DecisionLog = append([]domain.DecisionLogEntry(nil), sum.DecisionLog...)
	sum.Observations = append([]string(nil), sum.Observations...)
	sum.Highlights = append([]string(nil), sum.Highlights...)
	sum.Normalize()
	out.Summary = sum
	return &out
}
