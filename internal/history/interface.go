package history

import (
	"context"
	"time"
)

// Recorder stores reconciliation attempts.
type Recorder interface {
	Record(ctx context.Context, attempt *Attempt) error
	Close() error
}

// Reader lists stored attempts, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Attempt, error)
}

// Repository defines the interface for attempt storage
type Repository interface {
	Reader
	Record(attempt *Attempt) error
	Close() error
}

// Attempt is one finished reconciliation.
type Attempt struct {
	ID         string
	Timestamp  time.Time
	Trigger    string
	PowerState string
	Connector  string
	TargetHz   int
	ModeID     string
	Serial     uint32
	Outcome    string
	ErrorCode  string
	Duration   time.Duration
	Guessed    bool
}
