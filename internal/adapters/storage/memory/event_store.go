package memory

import (
	"context"

	"github.com/PabloGalante/worksession/internal/domain"
)

func (s *Store) AppendEvent(ctx context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.activeSession(event.SessionID); err != nil {
		return err
	}

	stored := event.Clone()
	stored.Seq = int64(len(s.events[event.SessionID]) + 1)
	s.events[event.SessionID] = append(s.events[event.SessionID], stored)

	event.Seq = stored.Seq
	return nil
}

func (s *Store) ListEvents(ctx context.Context, id domain.SessionID) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, domain.ErrSessionNotFound
	}

	events := s.events[id]
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		out = append(out, e.Clone())
	}
	return out, nil
}
