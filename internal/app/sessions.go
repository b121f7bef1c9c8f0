package service

import (
	"context"
	"strings"

	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/pkg/logger"
	"github.com/wintality/athlete-testing/pkg/metrics"
)

// CreateSession validates the request, builds a session with an empty
// record per athlete and persists it. Nothing is stored when validation
// fails.
func (s *Service) CreateSession(ctx context.Context, sessionName string, athleteIDs []string) (string, error) {
	return s.createSession(ctx, "service.create_session", s.newID(), sessionName, athleteIDs)
}

// SeedSession creates a session under a fixed id through the same path as
// CreateSession.
func (s *Service) SeedSession(ctx context.Context, id, sessionName string, athleteIDs []string) (string, error) {
	return s.createSession(ctx, "service.seed_session", id, sessionName, athleteIDs)
}

func (s *Service) createSession(ctx context.Context, op, id, sessionName string, athleteIDs []string) (string, error) {
	name := strings.TrimSpace(sessionName)
	if name == "" {
		return "", s.fail(ctx, op, ErrSessionNameRequired)
	}
	if err := validateAthleteIDs(athleteIDs); err != nil {
		return "", s.fail(ctx, op, err)
	}

	sess := model.NewSession(id, name, athleteIDs, s.now())
	id, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		return "", s.fail(ctx, op, err, logger.String("session_name", name))
	}
	metrics.RecordSessionCreated()
	s.logger.Info(ctx, "session created",
		logger.String("session_id", id),
		logger.String("session_name", name),
		logger.Int("athletes", len(athleteIDs)),
	)
	return id, nil
}

// AddAthletes grows a session's roster and returns the athletes actually
// added. Athletes already on the roster keep their records.
func (s *Service) AddAthletes(ctx context.Context, sessionID string, athleteIDs []string) ([]string, error) {
	const op = "service.add_athletes"
	if err := validateAthleteIDs(athleteIDs); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	added, err := s.store.UpdateRoster(ctx, sessionID, athleteIDs)
	if err != nil {
		return nil, s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}
	if added == nil {
		added = []string{}
	}
	metrics.RecordRosterAdditions(len(added))
	s.logger.Info(ctx, "roster updated",
		logger.String("session_id", sessionID),
		logger.Strings("added", added),
	)
	return added, nil
}

// RecordResults merges a sparse set of measurements into one athlete's
// record and returns the updated record.
func (s *Service) RecordResults(ctx context.Context, sessionID, athleteID string, patch schema.Patch) (schema.Record, error) {
	const op = "service.record_results"
	if strings.TrimSpace(athleteID) == "" {
		return schema.Record{}, s.fail(ctx, op, ErrAthleteIDRequired)
	}
	if err := patch.Validate(); err != nil {
		return schema.Record{}, s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}
	rec, err := s.store.UpdateAthleteRecord(ctx, sessionID, athleteID, patch)
	if err != nil {
		return schema.Record{}, s.fail(ctx, op, err,
			logger.String("session_id", sessionID),
			logger.String("athlete_id", athleteID),
		)
	}
	metrics.RecordRecordUpdate(len(patch))
	s.logger.Debug(ctx, "results recorded",
		logger.String("session_id", sessionID),
		logger.String("athlete_id", athleteID),
		logger.Strings("fields", patch.Fields()),
	)
	return rec, nil
}

// Session returns one session.
func (s *Service) Session(ctx context.Context, id string) (model.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, s.fail(ctx, "service.session", err, logger.String("session_id", id))
	}
	return sess, nil
}

// Sessions returns every session in creation order.
func (s *Service) Sessions(ctx context.Context) ([]model.Session, error) {
	list, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, s.fail(ctx, "service.sessions", err)
	}
	return list, nil
}

func validateAthleteIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrAthletesRequired
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return ErrBlankAthleteID
		}
	}
	return nil
}
