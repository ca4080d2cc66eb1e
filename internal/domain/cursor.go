package domain

import "errors"

// ErrInvalidCursor is returned when a pagination cursor fails to
// decode — shared across Target, Schedule, and Run listings, which
// all paginate the same opaque-cursor way.
var ErrInvalidCursor = errors.New("invalid pagination cursor")
