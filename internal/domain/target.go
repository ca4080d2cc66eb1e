package domain

import (
	"errors"
	"time"
)

var (
	ErrTargetNotFound     = errors.New("target not found")
	ErrTargetNameConflict = errors.New("target with this name already exists")
	ErrInvalidTarget      = errors.New("invalid target")
)

// Target is an addressable HTTP endpoint that Schedules fire against.
type Target struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	BodyTemplate   *string           `json:"bodyTemplate,omitempty"`
	TimeoutSeconds int               `json:"timeoutSeconds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
