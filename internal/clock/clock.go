// Package clock provides the single source of "now" for the scheduler
// core: the scheduler, executor and usecase packages read the current
// instant only through a Clock, so that tests can substitute a
// programmable instant. Code outside them does not: the HTTP metrics
// middleware and the binaries under cmd/ call time.Now() directly, and
// the Postgres store stamps updated_at, and completed_at on recovery,
// with the database's NOW().
package clock

import "time"

// Clock returns the current instant in the module's configured zone.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the OS clock, normalized to loc.
type Real struct {
	loc *time.Location
}

// New loads the named zone (e.g. "Asia/Kolkata") and returns a Clock
// that reports time.Now() converted into it.
func New(zone string) (*Real, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &Real{loc: loc}, nil
}

func (r *Real) Now() time.Time {
	return time.Now().In(r.loc)
}

// Location returns the zone this clock reports in — used by callers
// that need to parse/construct times in the same zone (e.g. StartAt
// defaulting).
func (r *Real) Location() *time.Location {
	return r.loc
}

// Fixed is a test double that returns a programmable instant.
type Fixed struct {
	now time.Time
}

// NewFixed returns a Fixed clock starting at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	return f.now
}

// Set moves the fixed clock to t.
func (f *Fixed) Set(t time.Time) {
	f.now = t
}

// Advance moves the fixed clock forward by d and returns the new instant.
func (f *Fixed) Advance(d time.Duration) time.Time {
	f.now = f.now.Add(d)
	return f.now
}
