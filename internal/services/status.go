package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SyncState is the persistence indicator shown next to the board.
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateLoading SyncState = "loading"
	StateSaving  SyncState = "saving"
	StateSaved   SyncState = "saved"
	StateError   SyncState = "error"
)

// AllStates lists every SyncState, for gauges.
var AllStates = []string{
	string(StateIdle), string(StateLoading), string(StateSaving), string(StateSaved), string(StateError),
}

// Status is the current persistence state. Local is set when persistence is
// disabled by missing configuration and changes only live in memory.
type Status struct {
	State     SyncState `json:"state"`
	Message   string    `json:"message,omitempty"`
	Local     bool      `json:"local"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrArchiveInProgress    = errors.New("an archive is in progress")
	ErrArchiveNotStarted    = errors.New("no archive has been started")
	ErrArchiveNotConfirmed  = errors.New("archive summary has not been confirmed")
	ErrPersistenceDisabled  = errors.New("persistence is disabled by missing configuration")
	ErrUnknownDeletionToken = errors.New("unknown or expired deletion token")
	ErrInvalidAmount        = errors.New("amount must not be negative")
	ErrNotLoaded            = errors.New("board has not been loaded from the store")
	ErrUnsavedChanges       = errors.New("local changes could not be saved")
)

// MissingConfigMessage is the status message shown when credentials are
// missing.
func MissingConfigMessage(vars []string) string {
	return fmt.Sprintf("Configuration missing: set %s. Changes are kept in memory only.", strings.Join(vars, " and "))
}
