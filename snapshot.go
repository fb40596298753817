package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SnapshotController resets backend storage to the state captured right after
// graph load by copying whole directory trees. Both operations close the live
// backend handle around the copy and reopen it afterwards, so file-backed
// stores see a consistent on-disk image.
type SnapshotController struct {
	exec Executor
}

func NewSnapshotController(exec Executor) *SnapshotController {
	return &SnapshotController{exec: exec}
}

// Snapshot and Restore leave the backend handle open on failure: the source
// directory is checked before the handle is closed, and every error after the
// close attempts a reopen. Only a failed reopen itself leaves the handle
// closed, so a failed operation degrades isolation without poisoning the rest
// of the run.
func (s *SnapshotController) Snapshot() error {
	dbPath, snapshotPath := s.exec.DatabasePath(), s.exec.SnapshotPath()
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database directory does not exist at %v: %w", dbPath, err)
	}
	if err := s.exec.CloseDatabase(); err != nil {
		return fmt.Errorf("failed to close database before snapshot: %w", err)
	}
	if err := os.RemoveAll(snapshotPath); err != nil {
		return s.reopen(fmt.Errorf("failed to delete old snapshot %v: %w", snapshotPath, err))
	}
	if err := copyDirectory(dbPath, snapshotPath); err != nil {
		return s.reopen(fmt.Errorf("failed to copy database to snapshot: %w", err))
	}
	if err := s.exec.OpenDatabase(); err != nil {
		return fmt.Errorf("failed to reopen database after snapshot: %w", err)
	}
	Logger.Infof("snapshot created at %v", snapshotPath)
	return nil
}

func (s *SnapshotController) Restore() error {
	dbPath, snapshotPath := s.exec.DatabasePath(), s.exec.SnapshotPath()
	if _, err := os.Stat(snapshotPath); err != nil {
		return fmt.Errorf("snapshot does not exist at %v: %w", snapshotPath, err)
	}
	if err := s.exec.CloseDatabase(); err != nil {
		return fmt.Errorf("failed to close database before restore: %w", err)
	}
	if err := os.RemoveAll(dbPath); err != nil {
		return s.reopen(fmt.Errorf("failed to delete database directory %v: %w", dbPath, err))
	}
	if err := copyDirectory(snapshotPath, dbPath); err != nil {
		return s.reopen(fmt.Errorf("failed to copy snapshot to database: %w", err))
	}
	if err := s.exec.OpenDatabase(); err != nil {
		return fmt.Errorf("failed to reopen database after restore: %w", err)
	}
	Logger.Debugf("database restored from %v", snapshotPath)
	return nil
}

// reopen reports the original failure after putting the handle back into a
// usable state; a reopen failure is appended rather than swallowed.
func (s *SnapshotController) reopen(cause error) error {
	if err := s.exec.OpenDatabase(); err != nil {
		return fmt.Errorf("%w (database also failed to reopen: %v)", cause, err)
	}
	return cause
}

func copyDirectory(source string, destination string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source %v is not a directory", source)
	}
	return filepath.WalkDir(source, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, relative)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(source string, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
