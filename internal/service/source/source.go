// Package source defines where caption fragments come from.
package source

import (
	"context"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

// Sink receives fragments. The engine implements it.
type Sink interface {
	Ingest(f models.Fragment)
}

// Source feeds fragments to a sink (Kafka topic, scripted mock, ...).
type Source interface {
	// Run delivers fragments until ctx is cancelled or the source is
	// exhausted. A cancelled context is not an error.
	Run(ctx context.Context, sink Sink) error

	// Close releases resources.
	Close() error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f models.Fragment)

// Ingest calls f(fr).
func (f SinkFunc) Ingest(fr models.Fragment) { f(fr) }

// Nop is a Source that delivers nothing and waits for cancellation.
type Nop struct{}

// Run blocks until ctx is done.
func (Nop) Run(ctx context.Context, _ Sink) error {
	<-ctx.Done()
	return nil
}

// Close does nothing.
func (Nop) Close() error { return nil }
