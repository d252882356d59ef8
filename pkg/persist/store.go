package persist

import (
	"context"
	"sync"
	"time"

	"github.com/voxhire/voxhire/pkg/session"
)

// Snapshot is one point-in-time capture of a session, written after each
// completed turn and on session end.
type Snapshot struct {
	SessionID  string
	Status     session.Status
	Role       string
	Seniority  string
	History    []session.Message
	Evaluation *session.Evaluation
	TakenAt    time.Time
}

// Take builds a snapshot of the session's current state.
func Take(s *session.Session, now func() time.Time) Snapshot {
	if now == nil {
		now = time.Now
	}
	params := s.Params()
	return Snapshot{
		SessionID:  s.ID(),
		Status:     s.Status(),
		Role:       params.Role,
		Seniority:  params.Seniority,
		History:    s.History(),
		Evaluation: s.Evaluation(),
		TakenAt:    now(),
	}
}

// Store saves and loads session snapshots. Save overwrites any previous
// snapshot for the same session.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Close() error
}

// MemoryStore keeps snapshots in a map; used in tests and as a fallback when
// no database is configured.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	m.snaps[snap.SessionID] = snap
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[sessionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *MemoryStore) Close() error { return nil }
