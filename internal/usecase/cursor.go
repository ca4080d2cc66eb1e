package usecase

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// cursor is the opaque pagination token shape shared by Target,
// Schedule, and Run listings: the (time, id) pair of the last row
// returned.
type cursor struct {
	T time.Time `json:"t"`
	I string    `json:"i"`
}

func decodeCursor(s string) (*time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &c.T, c.I, nil
}

func encodeCursor(t time.Time, id string) string {
	b, _ := json.Marshal(cursor{T: t, I: id})
	return base64.RawURLEncoding.EncodeToString(b)
}
