package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound means the file does not exist. Load recovers from it by
	// initializing a fresh store; it only escapes from lower level helpers.
	ErrNotFound           = errors.New("store file not found")
	ErrCorrupt            = errors.New("store is corrupt")
	ErrUnsupportedVersion = errors.New("unsupported store version")
	ErrLocked             = errors.New("store is locked by another process")
	ErrIOFailure          = errors.New("store i/o failure")
	ErrInvalidStore       = errors.New("store violates invariants")
)

// CorruptError lists why a file could not be accepted.
type CorruptError struct {
	Path    string
	Reasons []string
}

func (e *CorruptError) Error() string {
	var b strings.Builder
	b.WriteString(ErrCorrupt.Error())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if len(e.Reasons) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Reasons, "; "))
	}
	return b.String()
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// VersionError is returned for a schema version newer than SchemaVersion.
type VersionError struct {
	Path    string
	Version int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: %s has version %d, this build understands version 1", ErrUnsupportedVersion, e.Path, e.Version)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

// LockedError is returned when the lock was not acquired within the timeout.
type LockedError struct {
	Path    string
	Timeout time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: %s (waited %s, try again in a moment)", ErrLocked, e.Path, e.Timeout)
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// IOError wraps a filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrIOFailure, e.Op, e.Path, e.Err)
}

func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// InvalidError is returned by Save when the in-memory store breaks an invariant.
type InvalidError struct {
	Reasons []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidStore, strings.Join(e.Reasons, "; "))
}

func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalidStore
}

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

func corrupt(reasons ...string) *CorruptError {
	return &CorruptError{Reasons: reasons}
}

func withPath(err error, path string) error {
	var ce *CorruptError
	if errors.As(err, &ce) {
		ce.Path = path
		return ce
	}
	var ve *VersionError
	if errors.As(err, &ve) {
		ve.Path = path
		return ve
	}
	return err
}
