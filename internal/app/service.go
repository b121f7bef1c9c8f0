// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the operator CLI.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	repository "github.com/wintality/athlete-testing/internal/adapters/repository"
	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/internal/domain/errs"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/pkg/logger"
	"github.com/wintality/athlete-testing/pkg/metrics"
)

// Service implements session creation, result recording and aggregation
// on top of a Store.
type Service struct {
	mu      sync.RWMutex
	started bool

	store       repository.Store
	storeDriver string
	engine      *aggregation.Engine
	rankingSize int

	now   func() time.Time
	newID func() string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store and the driver name reported in stats.
func WithStore(store repository.Store, driver string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeDriver = driver
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to timestamp new sessions and athletes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the generator for session and athlete ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithRankingSize sets how many athletes each dashboard ranking lists.
func WithRankingSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rankingSize = n
		}
	}
}

// New constructs a Service. Without WithStore it uses an in-memory store.
func New(opts ...Option) *Service {
	s := &Service{
		rankingSize: aggregation.DefaultRankingSize,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.storeDriver = repository.DriverMemory
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.engine = aggregation.NewEngine(aggregation.WithRankingSize(s.rankingSize))
	return s
}

// Start publishes the initial store gauges and marks the service running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	st, err := s.store.Stats(ctx)
	if err != nil {
		return errs.WrapKind("service.start", errs.ErrInternal, err)
	}
	metrics.UpdateTotalSessions(st.Sessions)
	metrics.UpdateTotalAthletes(st.Athletes)
	s.started = true
	s.logger.Info(ctx, "athlete testing service started",
		logger.String("store", s.storeDriver),
		logger.Int("sessions", st.Sessions),
		logger.Int("athletes", st.Athletes),
		logger.Int("rankingSize", s.rankingSize),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "failed to close store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "athlete testing service stopped")
}

// Catalog returns the test definitions every record is built from.
func (s *Service) Catalog() []schema.Definition {
	return schema.Catalog()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     started,
		"store":       s.storeDriver,
		"rankingSize": s.rankingSize,
		"fields":      schema.FieldCount(),
	}
	st, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to read store stats", logger.Error(err))
		return stats
	}
	stats["sessions"] = st.Sessions
	stats["athletes"] = st.Athletes
	stats["rosterEntries"] = st.RosterEntries
	stats["measuredFields"] = st.MeasuredFields

	metrics.UpdateTotalSessions(st.Sessions)
	metrics.UpdateTotalAthletes(st.Athletes)
	return stats
}

// fail classifies err, logs it and returns it tagged with op.
func (s *Service) fail(ctx context.Context, op string, err error, fields ...logger.Field) error {
	kind := classify(err)
	fields = append(fields, logger.String("op", op), logger.Error(err))
	if kind == errs.ErrInternal {
		s.logger.Error(ctx, "operation failed", fields...)
	} else {
		s.logger.Warn(ctx, "operation rejected", fields...)
	}
	metrics.RecordErrorByComponent("service", kind.Code())
	return errs.WrapKind(op, kind, err)
}

func classify(err error) *errs.Kind {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrAthleteNotInSession),
		errors.Is(err, aggregation.ErrNoRecord):
		return errs.ErrNotFound
	case errors.Is(err, repository.ErrAlreadyExists),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, schema.ErrUnknownTest),
		errors.Is(err, schema.ErrInvalidValue),
		errors.Is(err, schema.ErrEmptyPatch),
		errors.Is(err, model.ErrFirstNameRequired),
		errors.Is(err, model.ErrLastNameRequired),
		errors.Is(err, model.ErrInvalidEmail),
		errors.Is(err, model.ErrInvalidBirthdate),
		errors.Is(err, ErrSessionNameRequired),
		errors.Is(err, ErrAthletesRequired),
		errors.Is(err, ErrBlankAthleteID),
		errors.Is(err, ErrAthleteIDRequired),
		errors.Is(err, ErrTestRequired):
		return errs.ErrInvalidArgument
	default:
		return errs.KindOf(err)
	}
}
