package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/plan"
)

// MemoryStore is a thread-safe in-memory Store, suitable for tests and
// ephemeral sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string][]ai.Message
	plans    map[string]plan.Snapshot
	costs    map[string]Cost
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		messages: make(map[string][]ai.Message),
		plans:    make(map[string]plan.Snapshot),
		costs:    make(map[string]Cost),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, title string) (Session, error) {
	sess := Session{
		ID:        "ses-" + uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *MemoryStore) Sessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	delete(s.plans, id)
	delete(s.costs, id)
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...ai.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.messages[sessionID] = append(s.messages[sessionID], msgs...)
	return nil
}

func (s *MemoryStore) Conversation(_ context.Context, sessionID string) ([]ai.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	msgs := make([]ai.Message, len(s.messages[sessionID]))
	copy(msgs, s.messages[sessionID])
	return msgs, nil
}

func (s *MemoryStore) SavePlan(_ context.Context, sessionID string, snap plan.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.plans[sessionID] = snap
	sess.ActivePlanID = snap.ID
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemoryStore) LoadPlan(_ context.Context, sessionID string) (plan.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return plan.Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	snap, ok := s.plans[sessionID]
	if !ok {
		return plan.Snapshot{}, ErrNoPlan
	}
	return snap, nil
}

func (s *MemoryStore) AddCost(_ context.Context, sessionID string, usage ai.Usage, usd float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	cost := s.costs[sessionID]
	cost.Usage.Add(usage)
	cost.USD += usd
	s.costs[sessionID] = cost
	return nil
}

func (s *MemoryStore) Cost(_ context.Context, sessionID string) (Cost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return Cost{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s.costs[sessionID], nil
}
