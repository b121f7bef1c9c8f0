package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	repository "github.com/wintality/athlete-testing/internal/adapters/repository"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/pkg/logger"
	"github.com/wintality/athlete-testing/pkg/metrics"
)

// AthleteInput is a sign-up form. JerseyNumber is free text; anything that
// is not a non-zero integer is stored as no number.
type AthleteInput struct {
	FirstName    string
	LastName     string
	Birthdate    string
	Email        string
	Instagram    string
	Sport        string
	Team         string
	Position     string
	JerseyNumber string
	Club         string
	League       string
}

// SignUp registers a new athlete.
func (s *Service) SignUp(ctx context.Context, in AthleteInput) (model.Athlete, error) {
	const op = "service.sign_up"
	a := model.Athlete{
		ID:           s.newID(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Birthdate:    strings.TrimSpace(in.Birthdate),
		Email:        strings.TrimSpace(in.Email),
		Instagram:    strings.TrimSpace(in.Instagram),
		Sport:        strings.TrimSpace(in.Sport),
		Team:         strings.TrimSpace(in.Team),
		Position:     strings.TrimSpace(in.Position),
		JerseyNumber: parseJersey(in.JerseyNumber),
		Club:         strings.TrimSpace(in.Club),
		League:       strings.TrimSpace(in.League),
		CreatedAt:    s.now(),
	}
	if err := a.Validate(); err != nil {
		return model.Athlete{}, s.fail(ctx, op, err)
	}
	id, err := s.store.CreateAthlete(ctx, a)
	if err != nil {
		return model.Athlete{}, s.fail(ctx, op, err)
	}
	a.ID = id
	metrics.RecordAthleteSignUp()
	s.logger.Info(ctx, "athlete signed up",
		logger.String("athlete_id", id),
		logger.String("team", a.Team),
	)
	return a, nil
}

// Athlete returns one athlete.
func (s *Service) Athlete(ctx context.Context, id string) (model.Athlete, error) {
	a, err := s.store.GetAthlete(ctx, id)
	if err != nil {
		return model.Athlete{}, s.fail(ctx, "service.athlete", err, logger.String("athlete_id", id))
	}
	return a, nil
}

// Athletes returns every athlete in sign-up order.
func (s *Service) Athletes(ctx context.Context) ([]model.Athlete, error) {
	list, err := s.store.ListAthletes(ctx)
	if err != nil {
		return nil, s.fail(ctx, "service.athletes", err)
	}
	return list, nil
}

// resolveAthletes loads the roster's athletes. Roster ids with no athlete
// on file are left out; the engine displays them by id.
func (s *Service) resolveAthletes(ctx context.Context, sess model.Session) (map[string]model.Athlete, error) {
	out := make(map[string]model.Athlete, len(sess.Athletes))
	for _, id := range sess.DistinctRoster() {
		a, err := s.store.GetAthlete(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func parseJersey(v string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n == 0 {
		return nil
	}
	return &n
}
