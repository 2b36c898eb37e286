// Package storage persists transcript snapshots.
package storage

import (
	"context"
	"errors"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("storage: no snapshot")

// Store saves and loads the latest snapshot.
type Store interface {
	Load(ctx context.Context) (models.State, error)
	Save(ctx context.Context, state models.State) error
	Close() error
}

// Nop is a Store that keeps nothing.
type Nop struct{}

// Load always reports ErrNotFound.
func (Nop) Load(context.Context) (models.State, error) { return models.State{}, ErrNotFound }

// Save discards the snapshot.
func (Nop) Save(context.Context, models.State) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
