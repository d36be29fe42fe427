// Package store persists sessions, conversation history and progression.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
)

// ErrNotFound is returned when a session or record does not exist.
var ErrNotFound = errors.New("store: not found")

// Repository is the persistence boundary used by the services.
type Repository interface {
	// CreateSession stores a new session together with its starting progression.
	CreateSession(ctx context.Context, session chat.Session) error

	// GetSession retrieves a session by identifier.
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)

	// AppendMessage appends a message to the session history.
	AppendMessage(ctx context.Context, msg chat.Message) error

	// LoadHistory returns the session history in insertion order.
	LoadHistory(ctx context.Context, sessionID string) ([]chat.Message, error)

	// GetProgress returns the progression record of a session.
	GetProgress(ctx context.Context, sessionID string) (progress.Progression, error)

	// SaveProgress overwrites the progression record of a session.
	SaveProgress(ctx context.Context, p progress.Progression) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Open creates a repository for driver. path is the data directory for
// badger and the database file for sqlite.
func Open(driver, path string) (Repository, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverBadger:
		return NewBadger(BadgerOptions{Dir: path})
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
