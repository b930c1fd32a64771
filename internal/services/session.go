// Package services implements the ledger use cases: view-state session
// handling, expense-intent materialization and conversational action routing.
package services

import (
	"context"

	"bolso/internal/core"
	"bolso/internal/ledger"
)

// Session is the explicit view state passed through the resolver and
// dispatcher: the month the user is looking at and the latest month any
// write has ever touched. The current month is a ceiling for navigation and
// the anchor for "this month" in relative requests.
//
// Invariants: Current never moves backward, and Viewed never exceeds Current.
type Session struct {
	viewed  core.MonthKey
	current core.MonthKey
}

func NewSession(month core.MonthKey) *Session {
	return &Session{viewed: month, current: month}
}

// SeedSession builds a session anchored at the wall-clock month, advanced to
// the latest month already present in the store so restarts don't lose the
// current-month ceiling.
func SeedSession(ctx context.Context, store ledger.Store, now core.MonthKey) (*Session, error) {
	sess := NewSession(now)
	expenses, err := store.ListAllExpenses(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range expenses {
		sess.Advance(e.Month)
	}
	return sess, nil
}

func (s *Session) Viewed() core.MonthKey { return s.viewed }

func (s *Session) Current() core.MonthKey { return s.current }

// Advance moves the current-month ceiling forward to month. Earlier months
// are ignored; the ceiling never decreases.
func (s *Session) Advance(month core.MonthKey) bool {
	if !month.After(s.current) {
		return false
	}
	s.current = month
	return true
}

// SetViewed moves the viewed month, clamped so it never passes the ceiling.
func (s *Session) SetViewed(month core.MonthKey) core.MonthKey {
	if month.After(s.current) {
		month = s.current
	}
	s.viewed = month
	return s.viewed
}

// StepViewed shifts the viewed month by delta months, clamped at the ceiling.
func (s *Session) StepViewed(delta int) core.MonthKey {
	return s.SetViewed(s.viewed.Shift(delta))
}

// Reset rewinds the whole session to month. Only used when all data is
// cleared.
func (s *Session) Reset(month core.MonthKey) {
	s.viewed = month
	s.current = month
}
