// Package doctor checks a database file against the store invariants and
// repairs it: in place when the problems are healable, from the newest valid
// backup when asked to.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"todo-cli/model"
	"todo-cli/store"
)

// ErrUnrecoverable means Repair could not produce a valid file. The file on
// disk is left as it was.
var ErrUnrecoverable = errors.New("store cannot be repaired")

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityFixable Severity = "fixable"
	SeverityWarning Severity = "warning"
)

type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}

// BackupStatus describes one backup generation.
type BackupStatus struct {
	Path  string `json:"path" yaml:"path"`
	Valid bool   `json:"valid" yaml:"valid"`
	Tasks int    `json:"tasks" yaml:"tasks"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the outcome of Check or Repair. Issues always describe the file
// as it was found; Repaired lists what Repair changed.
type Report struct {
	Path         string         `json:"path" yaml:"path"`
	Exists       bool           `json:"exists" yaml:"exists"`
	Valid        bool           `json:"valid" yaml:"valid"`
	Tasks        int            `json:"tasks" yaml:"tasks"`
	Issues       []Issue        `json:"issues" yaml:"issues"`
	Repaired     []string       `json:"repaired,omitempty" yaml:"repaired,omitempty"`
	RestoredFrom string         `json:"restored_from,omitempty" yaml:"restored_from,omitempty"`
	PreservedAs  string         `json:"preserved_as,omitempty" yaml:"preserved_as,omitempty"`
	Backups      []BackupStatus `json:"backups" yaml:"backups"`
}

// Count returns the number of issues with severity s.
func (r Report) Count(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

func (r *Report) add(s Severity, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Severity: s, Message: fmt.Sprintf(format, args...)})
}

// Doctor inspects one database file.
type Doctor struct {
	st     *store.Store
	path   string
	logger *log.Logger
	now    func() time.Time
}

// New returns a Doctor for the database at path.
func New(path string, opts store.Options) *Doctor {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Doctor{
		st:     store.New(path, opts),
		path:   path,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// Check reports on the file without locking or changing anything.
func (d *Doctor) Check() (r Report) {
	r = Report{Path: d.path, Issues: []Issue{}}
	defer d.finish(&r)

	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.Valid = true
			r.add(SeverityWarning, "file does not exist yet; it will be created on first use")
			return r
		}
		r.add(SeverityError, "cannot read file: %v", err)
		return r
	}
	r.Exists = true
	d.inspect(&r, data)
	return r
}

// Repair fixes what can be fixed under the store lock. Healable problems are
// persisted in place; nothing is written when the file is already clean.
// Unhealable problems need allowRestore, which copies the newest valid
// backup over the file after preserving the corrupt copy next to it.
func (d *Doctor) Repair(ctx context.Context, allowRestore bool) (Report, error) {
	r := Report{Path: d.path, Issues: []Issue{}}
	err := d.st.Exclusive(ctx, func(tx *store.Tx) error {
		data, err := tx.ReadRaw()
		if errors.Is(err, store.ErrNotFound) {
			if err := tx.Write(model.NewStore()); err != nil {
				return err
			}
			r.Exists, r.Valid = true, true
			r.Repaired = append(r.Repaired, "initialized empty store")
			return nil
		}
		if err != nil {
			return err
		}
		r.Exists = true

		dec, derr := d.inspect(&r, data)
		switch {
		case derr == nil:
			if len(dec.Fixes) > 0 {
				if err := tx.Write(dec.Store); err != nil {
					return err
				}
				r.Repaired = append(r.Repaired, dec.Fixes...)
			}
		case errors.Is(derr, store.ErrUnsupportedVersion):
			return derr
		case !allowRestore:
			return fmt.Errorf("%w: %v (a backup can be restored with --restore)", ErrUnrecoverable, derr)
		default:
			if err := d.restore(tx, &r, data); err != nil {
				return err
			}
		}

		d.removeTemps(&r)
		return nil
	})
	if err == nil {
		r.Valid = true
	}
	d.finish(&r)
	return r, err
}

func (d *Doctor) restore(tx *store.Tx, r *Report, corruptData []byte) error {
	backup, data, ok := d.latestValidBackup()
	if !ok {
		return fmt.Errorf("%w: no valid backup of %s", ErrUnrecoverable, d.path)
	}

	preserved := corruptPath(d.path, d.now())
	if err := store.WriteFileAtomic(preserved, corruptData, 0o644); err != nil {
		return err
	}
	if err := tx.WriteRaw(data); err != nil {
		return err
	}

	d.logger.Warn("restored store from backup", "path", d.path, "backup", backup, "preserved", preserved)
	r.RestoredFrom = backup
	r.PreservedAs = preserved
	r.Repaired = append(r.Repaired, fmt.Sprintf("restored %s from %s", filepath.Base(d.path), filepath.Base(backup)))
	return nil
}

// inspect decodes data and records every finding on r.
func (d *Doctor) inspect(r *Report, data []byte) (store.Decoded, error) {
	dec, err := store.Decode(data, store.DecodeOptions{Now: d.now})
	if err != nil {
		var ce *store.CorruptError
		if errors.As(err, &ce) {
			for _, reason := range ce.Reasons {
				r.add(SeverityError, "%s", reason)
			}
		} else {
			r.add(SeverityError, "%v", err)
		}
		return dec, err
	}

	r.Valid = true
	r.Tasks = len(dec.Store.Tasks)
	for _, fix := range dec.Fixes {
		r.add(SeverityFixable, "%s", fix)
	}
	for _, t := range dec.Store.Tasks {
		if strings.TrimSpace(t.Text) == "" {
			r.add(SeverityWarning, "task %d has empty text", t.ID)
		}
		if t.CreatedAt != "" {
			if _, err := model.ParseTimestamp(t.CreatedAt); err != nil {
				r.add(SeverityWarning, "task %d has unparsable created_at %q", t.ID, t.CreatedAt)
			}
		}
		if t.DoneAt != "" {
			if _, err := model.ParseTimestamp(t.DoneAt); err != nil {
				r.add(SeverityWarning, "task %d has unparsable done_at %q", t.ID, t.DoneAt)
			}
		}
	}
	return dec, nil
}

// finish adds leftover temp files and backup generations to the report.
func (d *Doctor) finish(r *Report) {
	temps, _ := filepath.Glob(store.TempPattern(d.path))
	for _, tmp := range temps {
		r.add(SeverityWarning, "leftover temp file from an interrupted save: %s", filepath.Base(tmp))
	}

	r.Backups = []BackupStatus{}
	for _, backup := range store.Backups(d.path) {
		status := BackupStatus{Path: backup}
		data, err := os.ReadFile(backup)
		if err == nil {
			var dec store.Decoded
			dec, err = store.Decode(data, store.DecodeOptions{Now: d.now})
			status.Tasks = len(dec.Store.Tasks)
		}
		if err != nil {
			status.Error = err.Error()
			r.add(SeverityWarning, "backup %s is not usable: %v", filepath.Base(backup), err)
		} else {
			status.Valid = true
		}
		r.Backups = append(r.Backups, status)
	}
}

func (d *Doctor) removeTemps(r *Report) {
	temps, _ := filepath.Glob(store.TempPattern(d.path))
	for _, tmp := range temps {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("cannot remove temp file", "path", tmp, "err", err)
			continue
		}
		r.Repaired = append(r.Repaired, "removed leftover temp file "+filepath.Base(tmp))
	}
}

// latestValidBackup returns the newest backup generation that decodes.
func (d *Doctor) latestValidBackup() (string, []byte, bool) {
	for _, candidate := range store.Backups(d.path) {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if _, err := store.Decode(data, store.DecodeOptions{Now: d.now}); err != nil {
			d.logger.Debug("skipping invalid backup", "path", candidate, "err", err)
			continue
		}
		return candidate, data, true
	}
	return "", nil, false
}

// corruptPath names the preserved copy todos.corrupt-<timestamp>.json.
func corruptPath(path string, now time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	timestamp := now.UTC().Format("20060102-150405")
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.corrupt-%s%s", name, timestamp, ext))
}
