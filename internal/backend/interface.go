package backend

import (
	"context"

	"choreboard/internal/store"
)

// Backend is the persistence gateway selected at startup.
type Backend interface {
	store.Gateway
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// JSONBin specific
	JSONBinBinID   string
	JSONBinAPIKey  string
	JSONBinBaseURL string

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	JSONBinBackend BackendType = "jsonbin"
	SQLiteBackend  BackendType = "sqlite"
	MemoryBackend  BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONBinBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
