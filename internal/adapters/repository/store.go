// Package repository persists athletes and testing sessions.
package repository

import (
	"context"
	"time"

	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/internal/domain/types"
	"github.com/wintality/athlete-testing/pkg/metrics"
)

// Store provides read/write access to athletes and testing sessions.
// Implementations return copies; callers may mutate what they receive.
type Store interface {
	// CreateSession persists s, assigning a new id when s.ID is empty.
	// Returns ErrAlreadyExists when the id is taken.
	CreateSession(ctx context.Context, s model.Session) (string, error)
	// GetSession returns ErrNotFound for an unknown id.
	GetSession(ctx context.Context, id string) (model.Session, error)
	// ListSessions returns sessions in creation order.
	ListSessions(ctx context.Context) ([]model.Session, error)
	// UpdateRoster appends athletes not yet on the roster, each with an
	// empty record, and returns those added.
	UpdateRoster(ctx context.Context, sessionID string, athleteIDs []string) ([]string, error)
	// UpdateAthleteRecord merges p into one athlete's record and returns
	// the result. Returns ErrNotFound or ErrAthleteNotInSession.
	UpdateAthleteRecord(ctx context.Context, sessionID, athleteID string, p schema.Patch) (schema.Record, error)

	// CreateAthlete persists a, assigning a new id when a.ID is empty.
	CreateAthlete(ctx context.Context, a model.Athlete) (string, error)
	// GetAthlete returns ErrNotFound for an unknown id.
	GetAthlete(ctx context.Context, id string) (model.Athlete, error)
	// ListAthletes returns athletes in sign-up order.
	ListAthletes(ctx context.Context) ([]model.Athlete, error)

	// Stats reports store contents.
	Stats(ctx context.Context) (types.Stats, error)
	Close() error
}

// observe records latency and failures of one store operation.
func observe(backend, op string, start time.Time, err error) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(backend, op)
	}
}
