package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wintality/athlete-testing/internal/adapters/export"
	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/pkg/logger"
	"github.com/wintality/athlete-testing/pkg/metrics"
)

// Dashboard computes the averages and rankings of a session.
func (s *Service) Dashboard(ctx context.Context, sessionID string) (aggregation.Dashboard, error) {
	const op = "service.dashboard"
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return aggregation.Dashboard{}, s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}
	athletes, err := s.resolveAthletes(ctx, sess)
	if err != nil {
		return aggregation.Dashboard{}, s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}

	start := time.Now()
	d := s.engine.Aggregate(sess, athletes)
	metrics.RecordAggregationLatency(float64(time.Since(start).Microseconds()) / 1000)
	return d, nil
}

// Feedback returns one athlete's attempts at one test of a session.
func (s *Service) Feedback(ctx context.Context, sessionID, athleteID, test string) (aggregation.Feedback, error) {
	const op = "service.feedback"
	fields := []logger.Field{
		logger.String("session_id", sessionID),
		logger.String("athlete_id", athleteID),
		logger.String("test", test),
	}
	if strings.TrimSpace(athleteID) == "" {
		return aggregation.Feedback{}, s.fail(ctx, op, ErrAthleteIDRequired, fields...)
	}
	if strings.TrimSpace(test) == "" {
		return aggregation.Feedback{}, s.fail(ctx, op, ErrTestRequired, fields...)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return aggregation.Feedback{}, s.fail(ctx, op, err, fields...)
	}
	if !sess.HasAthlete(athleteID) {
		return aggregation.Feedback{}, s.fail(ctx, op, fmt.Errorf("%w: %s", aggregation.ErrNoRecord, athleteID), fields...)
	}
	athletes, err := s.resolveAthletes(ctx, sess)
	if err != nil {
		return aggregation.Feedback{}, s.fail(ctx, op, err, fields...)
	}
	a, ok := athletes[athleteID]
	if !ok {
		a.ID = athleteID
	}
	fb, err := s.engine.Feedback(sess, a, test)
	if err != nil {
		return aggregation.Feedback{}, s.fail(ctx, op, err, fields...)
	}
	return fb, nil
}

// ExportSession writes a session and its dashboard to w as an XLSX workbook.
func (s *Service) ExportSession(ctx context.Context, sessionID string, w io.Writer) error {
	const op = "service.export_session"
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}
	athletes, err := s.resolveAthletes(ctx, sess)
	if err != nil {
		return s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}
	d := s.engine.Aggregate(sess, athletes)
	if err := export.WriteSession(w, sess, athletes, d); err != nil {
		return s.fail(ctx, op, err, logger.String("session_id", sessionID))
	}
	metrics.RecordExport()
	s.logger.Info(ctx, "session exported", logger.String("session_id", sessionID))
	return nil
}
