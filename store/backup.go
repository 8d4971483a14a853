package store

import (
	"errors"
	"fmt"
	"os"
)

// BackupGenerations is how many previous versions of the database are kept.
const BackupGenerations = 5

// BackupPath returns the path of backup generation gen; 1 is the newest.
func BackupPath(path string, gen int) string {
	return fmt.Sprintf("%s.bak.%d", path, gen)
}

// Backups lists existing backups of path, newest first.
func Backups(path string) []string {
	var out []string
	for gen := 1; gen <= BackupGenerations; gen++ {
		p := BackupPath(path, gen)
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// rotateBackups shifts .bak.N to .bak.N+1, dropping the oldest, and copies
// the current file to .bak.1. A missing file is not an error.
func rotateBackups(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return ioErr("read", path, err)
	}

	oldest := BackupPath(path, BackupGenerations)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioErr("remove", oldest, err)
	}
	for gen := BackupGenerations - 1; gen >= 1; gen-- {
		from := BackupPath(path, gen)
		if err := os.Rename(from, BackupPath(path, gen+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ioErr("rename", from, err)
		}
	}

	return WriteFileAtomic(BackupPath(path, 1), data, 0o644)
}
