// Package training manages the quiz training history: an append-only,
// capped log of completed sessions, plus the in-flight quiz state
// machine and progress statistics derived from the log.
package training

import (
	"errors"
	"time"
)

// SessionType identifies the question pool a session was drawn from
type SessionType string

const (
	TypeAdult  SessionType = "adult"
	TypeChild  SessionType = "child"
	TypeInfant SessionType = "infant"
	TypeMixed  SessionType = "mixed"
)

// ErrInvalidSession is returned when a session fails validation
var ErrInvalidSession = errors.New("invalid training session")

// Session is a completed quiz session. Sessions are immutable once
// created and identified by a collision-resistant ID.
type Session struct {
	ID             string      `json:"id"`
	Type           SessionType `json:"type"`
	StartedAt      time.Time   `json:"startedAt"`
	FinishedAt     time.Time   `json:"finishedAt"`
	Score          int         `json:"score"`
	Total          int         `json:"total"`
	QuestionIDs    []string    `json:"questionIds"`
	Answers        []int       `json:"answers"`
	CorrectAnswers []int       `json:"correctAnswers"`
}

// Validate checks the fields required before a session may be persisted
func (s *Session) Validate() error {
	if s.ID == "" {
		return ErrInvalidSession
	}
	if s.Score < 0 {
		return ErrInvalidSession
	}
	return nil
}

// MergeKey returns the identity used to collapse local and remote copies
// of the same session, falling back to the finish time for records that
// predate session IDs.
func (s *Session) MergeKey() string {
	if s.ID != "" {
		return s.ID
	}
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// History is the persisted training history document
type History struct {
	Sessions    []Session  `json:"sessions"`
	LastUpdated *time.Time `json:"lastUpdated"`
}
