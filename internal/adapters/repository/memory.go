package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/internal/domain/types"
)

const backendMemory = "memory"

// MemoryStore is an in-process Store. All operations are serialized under
// one lock and every value crosses the boundary as a deep copy.
type MemoryStore struct {
	opts options

	mu           sync.RWMutex
	sessions     map[string]model.Session
	sessionOrder []string
	athletes     map[string]model.Athlete
	athleteOrder []string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:     o,
		sessions: make(map[string]model.Session),
		athletes: make(map[string]model.Athlete),
	}
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(ctx context.Context, sess model.Session) (id string, err error) {
	defer func(start time.Time) { observe(backendMemory, "create_session", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := sess.Validate(); err != nil {
		return "", err
	}
	sess = sess.Clone()
	if sess.ID == "" {
		sess.ID = s.opts.newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return "", fmt.Errorf("session %q: %w", sess.ID, ErrAlreadyExists)
	}
	s.sessions[sess.ID] = sess
	s.sessionOrder = append(s.sessionOrder, sess.ID)
	return sess.ID, nil
}

// GetSession implements Store.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer func(start time.Time) { observe(backendMemory, "get_session", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return model.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return stored.Clone(), nil
}

// ListSessions implements Store.
func (s *MemoryStore) ListSessions(ctx context.Context) (out []model.Session, err error) {
	defer func(start time.Time) { observe(backendMemory, "list_sessions", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out = make([]model.Session, 0, len(s.sessionOrder))
	for _, id := range s.sessionOrder {
		out = append(out, s.sessions[id].Clone())
	}
	return out, nil
}

// UpdateRoster implements Store.
func (s *MemoryStore) UpdateRoster(ctx context.Context, sessionID string, athleteIDs []string) (added []string, err error) {
	defer func(start time.Time) { observe(backendMemory, "update_roster", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	added = sess.AddAthletes(athleteIDs)
	s.sessions[sessionID] = sess
	return added, nil
}

// UpdateAthleteRecord implements Store.
func (s *MemoryStore) UpdateAthleteRecord(ctx context.Context, sessionID, athleteID string, p schema.Patch) (rec schema.Record, err error) {
	defer func(start time.Time) { observe(backendMemory, "update_record", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return schema.Record{}, err
	}
	if err := p.Validate(); err != nil {
		return schema.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return schema.Record{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	current, ok := sess.Tests[athleteID]
	if !ok || !sess.HasAthlete(athleteID) {
		return schema.Record{}, fmt.Errorf("athlete %q in session %q: %w", athleteID, sessionID, ErrAthleteNotInSession)
	}
	merged, err := current.Merge(p)
	if err != nil {
		return schema.Record{}, err
	}
	sess.Tests[athleteID] = merged
	return merged.Clone(), nil
}

// CreateAthlete implements Store.
func (s *MemoryStore) CreateAthlete(ctx context.Context, a model.Athlete) (id string, err error) {
	defer func(start time.Time) { observe(backendMemory, "create_athlete", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = s.opts.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.opts.now()
	}
	a.JerseyNumber = copyInt(a.JerseyNumber)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.athletes[a.ID]; ok {
		return "", fmt.Errorf("athlete %q: %w", a.ID, ErrAlreadyExists)
	}
	s.athletes[a.ID] = a
	s.athleteOrder = append(s.athleteOrder, a.ID)
	return a.ID, nil
}

// GetAthlete implements Store.
func (s *MemoryStore) GetAthlete(ctx context.Context, id string) (a model.Athlete, err error) {
	defer func(start time.Time) { observe(backendMemory, "get_athlete", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return model.Athlete{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.athletes[id]
	if !ok {
		return model.Athlete{}, fmt.Errorf("athlete %q: %w", id, ErrNotFound)
	}
	a.JerseyNumber = copyInt(a.JerseyNumber)
	return a, nil
}

// ListAthletes implements Store.
func (s *MemoryStore) ListAthletes(ctx context.Context) (out []model.Athlete, err error) {
	defer func(start time.Time) { observe(backendMemory, "list_athletes", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out = make([]model.Athlete, 0, len(s.athleteOrder))
	for _, id := range s.athleteOrder {
		a := s.athletes[id]
		a.JerseyNumber = copyInt(a.JerseyNumber)
		out = append(out, a)
	}
	return out, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (types.Stats, error) {
	if err := ctx.Err(); err != nil {
		return types.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := types.Stats{Sessions: len(s.sessions), Athletes: len(s.athletes)}
	for _, sess := range s.sessions {
		st.RosterEntries += len(sess.Athletes)
		for _, rec := range sess.Tests {
			st.MeasuredFields += rec.Measured()
		}
	}
	return st, nil
}

// Close implements Store. The memory store holds no resources.
func (s *MemoryStore) Close() error { return nil }

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
