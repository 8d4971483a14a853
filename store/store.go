// Package store persists the task database: a versioned JSON file replaced
// atomically under an exclusive lock, with rotating backups of every
// previous version.
package store

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"todo-cli/model"
	"todo-cli/paths"
)

// Options configures a Store.
type Options struct {
	LockTimeout time.Duration
	Logger      *log.Logger
	Now         func() time.Time

	// AllowDuplicateIDs relaxes the unique id invariant (used for the archive).
	AllowDuplicateIDs bool
	// NoBackups disables backup rotation before writes.
	NoBackups bool
}

// Store reads and writes one database file.
type Store struct {
	path string
	opts Options
}

// New returns a Store for path. Zero Options fields get defaults.
func New(path string, opts Options) *Store {
	if opts.LockTimeout == 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{path: path, opts: opts}
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the lock file guarding the database.
func (s *Store) LockPath() string {
	return paths.LockPath(s.path)
}

// Load returns the current store. A missing file is created empty; a file
// that needed repairs is rewritten. Both happen under the lock. A clean file
// is read without locking.
func (s *Store) Load(ctx context.Context) (model.Store, error) {
	dec, err := s.read()
	if err == nil && len(dec.Fixes) == 0 {
		return dec.Store, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return model.Store{}, err
	}

	var out model.Store
	err = s.Exclusive(ctx, func(tx *Tx) error {
		st, dirty, err := tx.settle()
		if err != nil {
			return err
		}
		if dirty {
			if err := tx.Write(st); err != nil {
				return err
			}
		}
		out = st
		return nil
	})
	return out, err
}

// Read decodes the file without locking or writing. A missing file yields an
// empty store. Repairs are applied in memory only.
func (s *Store) Read() (model.Store, error) {
	dec, err := s.read()
	if errors.Is(err, ErrNotFound) {
		return model.NewStore(), nil
	}
	return dec.Store, err
}

// Save replaces the file with st.
func (s *Store) Save(ctx context.Context, st model.Store) error {
	return s.Exclusive(ctx, func(tx *Tx) error {
		return tx.Write(st)
	})
}

// Mutate re-reads the file under the lock, applies fn and writes the result
// once. If fn returns an error nothing is written and the error is returned
// unchanged.
func (s *Store) Mutate(ctx context.Context, fn func(*model.Store) error) (model.Store, error) {
	var out model.Store
	err := s.Exclusive(ctx, func(tx *Tx) error {
		st, _, err := tx.settle()
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		if err := tx.Write(st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// Exclusive runs fn while holding the database lock.
func (s *Store) Exclusive(ctx context.Context, fn func(*Tx) error) error {
	return WithLock(ctx, s.LockPath(), s.opts.LockTimeout, func() error {
		return fn(&Tx{s: s})
	})
}

// Tx exposes raw file access to code running inside Exclusive. It must not
// be retained after fn returns.
type Tx struct {
	s *Store
}

// ReadRaw returns the file bytes, or ErrNotFound.
func (tx *Tx) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(tx.s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioErr("read", tx.s.path, err)
	}
	return data, nil
}

// Decode reads and decodes the file.
func (tx *Tx) Decode() (Decoded, error) {
	return tx.s.read()
}

// Write validates st, rotates backups and atomically replaces the file.
func (tx *Tx) Write(st model.Store) error {
	s := tx.s
	if reasons := Validate(st, s.opts.AllowDuplicateIDs); len(reasons) > 0 {
		return &InvalidError{Reasons: reasons}
	}
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if !s.opts.NoBackups {
		if err := rotateBackups(s.path); err != nil {
			s.opts.Logger.Warn("backup rotation failed", "path", s.path, "err", err)
		}
	}
	if err := WriteFileAtomic(s.path, data, 0o644); err != nil {
		return err
	}
	s.opts.Logger.Debug("store written", "path", s.path, "tasks", len(st.Tasks), "next_id", st.NextID)
	return nil
}

// WriteRaw atomically replaces the file with data without rotating backups.
func (tx *Tx) WriteRaw(data []byte) error {
	return WriteFileAtomic(tx.s.path, data, 0o644)
}

// settle returns the store as it should be on disk: fresh when missing,
// repaired when healable. dirty reports whether that differs from the file.
func (tx *Tx) settle() (model.Store, bool, error) {
	s := tx.s
	dec, err := s.read()
	switch {
	case errors.Is(err, ErrNotFound):
		s.opts.Logger.Info("initializing store", "path", s.path)
		return model.NewStore(), true, nil
	case err != nil:
		return model.Store{}, false, err
	}
	for _, fix := range dec.Fixes {
		s.opts.Logger.Warn("store repaired", "path", s.path, "fix", fix)
	}
	return dec.Store, len(dec.Fixes) > 0, nil
}

func (s *Store) read() (Decoded, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Decoded{}, ErrNotFound
		}
		return Decoded{}, ioErr("read", s.path, err)
	}
	dec, err := Decode(data, DecodeOptions{AllowDuplicateIDs: s.opts.AllowDuplicateIDs, Now: s.opts.Now})
	if err != nil {
		return Decoded{}, withPath(err, s.path)
	}
	return dec, nil
}
