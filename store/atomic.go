package store

import (
	"os"
	"path/filepath"
	"runtime"
)

// beforeRename runs after the temp file is durable and before it replaces
// the target. Tests swap it to simulate a crash at that point.
var beforeRename = func(tmpPath string) error { return nil }

// TempPattern is the glob matching temp files WriteFileAtomic may leave
// behind after a crash, for path and its backups.
func TempPattern(path string) string {
	return path + "*.tmp-*"
}

// WriteFileAtomic writes data to a temp file in path's directory, fsyncs it
// and renames it over path. Readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioErr("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return ioErr("create temp", path, err)
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return ioErr("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return ioErr("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return ioErr("close", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return ioErr("chmod", tmpName, err)
	}

	if err := beforeRename(tmpName); err != nil {
		return ioErr("rename", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return ioErr("rename", path, err)
	}
	renamed = true

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
