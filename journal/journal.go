// Package journal keeps a durable record of the requests handed to the
// worker pool and how far each one got.
package journal

import (
	"context"
	"errors"
	"time"
)

const (
	// Rfc3339Milli is like time.RFC3339Nano, but with millisecond precision
	Rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	ErrEntryNotFound     = errors.New("journal entry not found")
	ErrInvalidTransition = errors.New("journal entry cannot move back to an earlier status")
)

type Journal interface {
	// Record stores a new entry
	Record(context.Context, *Entry) error

	// Attach stores the request line and encoded request of an entry
	Attach(context.Context, string, string, []byte) error

	// UpdateStatus moves an entry forward to the given status
	UpdateStatus(context.Context, string, Status) (Entry, error)

	// Get fetches a single entry by id
	Get(context.Context, string) (Entry, error)

	// List returns up to limit entries with the given status, oldest first.
	// An empty status matches every entry and a limit <= 0 means no limit.
	List(context.Context, Status, int) ([]Entry, error)

	Close() error
}

type Status string

const (
	StatusAccepted Status = "accepted"
	StatusServing  Status = "serving"
	StatusServed   Status = "served"
	StatusFailed   Status = "failed"
)

// Level orders statuses so that an entry only ever moves forward.
func (s Status) Level() int {
	switch s {
	case StatusAccepted:
		return 1
	case StatusServing:
		return 2
	case StatusServed, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s.Level() == 3
}

// CanMoveTo reports whether an entry in status s may be updated to next.
func (s Status) CanMoveTo(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() || next.Level() == 0 {
		return false
	}
	return next.Level() > s.Level()
}

type Entry struct {
	Id          string `json:"id" db:"id"`
	Status      string `json:"status" db:"status"`
	RemoteAddr  string `json:"remote_addr" db:"remote_addr"`
	RequestLine string `json:"request_line" db:"request_line"`
	Request     []byte `json:"request" db:"request"`
	CreatedAt   string `json:"created_at" db:"created_at"`
	UpdatedAt   string `json:"updated_at" db:"updated_at"`
}

func (e *Entry) CreatedTime() time.Time {
	t, err := time.Parse(Rfc3339Milli, e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (e *Entry) UpdatedTime() time.Time {
	t, err := time.Parse(Rfc3339Milli, e.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
