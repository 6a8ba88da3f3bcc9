package memory

import (
	"sync"

	"github.com/PabloGalante/worksession/internal/domain"
)

// Store is an in-memory implementation of domain.Store.
// It is NOT persistent and is only suitable for development / local mode.
//
// All tables share one lock so status checks and the writes they guard
// happen atomically.
type Store struct {
	mu sync.RWMutex

	sessions    map[domain.SessionID]*domain.WorkSession
	stages      map[domain.SessionID][]domain.StageRecord
	events      map[domain.SessionID][]*domain.Event
	packs       map[domain.EvidencePackID]*domain.EvidencePack
	packByShare map[domain.ShareID]domain.EvidencePackID
	packBySess  map[domain.SessionID]domain.EvidencePackID
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		sessions:    make(map[domain.SessionID]*domain.WorkSession),
		stages:      make(map[domain.SessionID][]domain.StageRecord),
		events:      make(map[domain.SessionID][]*domain.Event),
		packs:       make(map[domain.EvidencePackID]*domain.EvidencePack),
		packByShare: make(map[domain.ShareID]domain.EvidencePackID),
		packBySess:  make(map[domain.SessionID]domain.EvidencePackID),
	}
}

func (s *Store) Close() error {
	return nil
}

// activeSession must be called with s.mu held.
func (s *Store) activeSession(id domain.SessionID) (*domain.WorkSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if sess.Status != domain.StatusActive {
		return nil, domain.ErrSessionNotActive
	}
	return sess, nil
}
