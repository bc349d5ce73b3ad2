// Package store persists build artifacts under a session namespace and
// serves them back to the local file server.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/subinject/subinject/internal/config"
)

// Store is the artifact persistence contract. Filenames are unique within a
// session; writes with distinct filenames must be safe under concurrent use.
type Store interface {
	// Write persists data under {session}/{filename}, creating intermediate
	// namespaces as needed.
	Write(ctx context.Context, session, filename string, data []byte) error

	// Read returns the bytes stored under {session}/{filename} or ErrNotFound.
	Read(ctx context.Context, session, filename string) ([]byte, error)

	// Exists reports whether {session}/{filename} holds an artifact.
	Exists(ctx context.Context, session, filename string) (bool, error)
}

// ErrNotFound is returned when no artifact exists at the requested path
var ErrNotFound = errors.New("store: artifact not found")

// ErrInvalidPath is returned when a session or filename would resolve
// outside the store root.
var ErrInvalidPath = errors.New("store: path escapes store root")

// New creates a store for the configured backend
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFSStore(cfg.RootDir)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
