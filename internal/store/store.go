// Package store defines the sink records are written to.
package store

import (
	"context"
	"errors"
	"fmt"

	"tweetharvest/internal/model"
)

// ErrWrite matches every failed sink write.
var ErrWrite = errors.New("sink write failed")

// Sink is an append-only destination for records.
type Sink interface {
	Insert(ctx context.Context, rec model.Record) error
	Close(ctx context.Context) error
}

// WriteError wraps a backend failure for one record.
type WriteError struct {
	Backend string
	Err     error
}

func (e *WriteError) Error() string { return fmt.Sprintf("%s write: %v", e.Backend, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Wrap turns a backend error into a WriteError. Context errors are returned
// unchanged so cancellation is never mistaken for a dropped write.
func Wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &WriteError{Backend: backend, Err: err}
}
