// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// BirthdateLayout is the accepted birthdate format.
const BirthdateLayout = "2006-01-02"

// Athlete validation errors.
var (
	ErrFirstNameRequired = errors.New("first name is required")
	ErrLastNameRequired  = errors.New("last name is required")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidBirthdate  = errors.New("birthdate must be YYYY-MM-DD")
)

// Athlete is a person who signed up for testing. Athletes are immutable
// once created.
type Athlete struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Birthdate    string    `json:"birthdate,omitempty"`
	Email        string    `json:"email,omitempty"`
	Instagram    string    `json:"instagram,omitempty"`
	Sport        string    `json:"sport,omitempty"`
	Team         string    `json:"team,omitempty"`
	Position     string    `json:"position,omitempty"`
	JerseyNumber *int      `json:"jerseyNumber"`
	Club         string    `json:"club,omitempty"`
	League       string    `json:"league,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName is "First Last", or the id when both names are blank.
func (a Athlete) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
	if name == "" {
		return a.ID
	}
	return name
}

// Validate checks required names and the format of optional fields.
func (a Athlete) Validate() error {
	if strings.TrimSpace(a.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if strings.TrimSpace(a.LastName) == "" {
		return ErrLastNameRequired
	}
	if a.Email != "" {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	if a.Birthdate != "" {
		if _, err := time.Parse(BirthdateLayout, a.Birthdate); err != nil {
			return ErrInvalidBirthdate
		}
	}
	return nil
}
