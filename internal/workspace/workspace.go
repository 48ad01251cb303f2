// Package workspace lays out the on-disk artifacts of generation tasks: one
// isolated working directory and one archive file per task, both keyed by the
// task identifier so that concurrent tasks never share a path.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/archive"
)

const (
	workspacesDirName = "workspaces"
	archivesDirName   = "archives"

	// ArchiveExt is the file extension of task archives.
	ArchiveExt = ".zip"
)

// Manager resolves and manages per-task paths under a data directory.
type Manager struct {
	root string
}

// NewManager creates the workspace and archive roots under dataDir.
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, errors.New("data directory cannot be empty")
	}
	root, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	for _, dir := range []string{
		filepath.Join(root, workspacesDirName),
		filepath.Join(root, archivesDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Manager{root: root}, nil
}

// Root returns the absolute data directory.
func (m *Manager) Root() string {
	return m.root
}

// WorkspaceDir returns the working directory of a task. It may not exist.
func (m *Manager) WorkspaceDir(id uuid.UUID) string {
	return filepath.Join(m.root, workspacesDirName, id.String())
}

// ArchivePath returns the archive file of a task. It may not exist.
func (m *Manager) ArchivePath(id uuid.UUID) string {
	return filepath.Join(m.root, archivesDirName, ArchiveFileName(id))
}

// ArchiveFileName is the attachment name used for a task's archive.
func ArchiveFileName(id uuid.UUID) string {
	return id.String() + ArchiveExt
}

// Create makes a fresh, empty workspace for the task.
// It fails if the workspace already exists.
func (m *Manager) Create(id uuid.UUID) (string, error) {
	dir := m.WorkspaceDir(id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// Remove deletes the workspace directory, the archive file and any partial
// archive left by an interrupted run. Missing paths are not an error; every
// removal is attempted.
func (m *Manager) Remove(id uuid.UUID) error {
	var errs []error
	if err := os.RemoveAll(m.WorkspaceDir(id)); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove workspace: %w", err))
	}
	if err := os.Remove(m.ArchivePath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove archive: %w", err))
	}

	archivePath := m.ArchivePath(id)
	partials, err := filepath.Glob(filepath.Join(filepath.Dir(archivePath), archive.PartialPattern(archivePath)))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list partial archives: %w", err))
	}
	for _, p := range partials {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove partial archive: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Exists reports whether the workspace or the archive of a task is on disk.
func (m *Manager) Exists(id uuid.UUID) (workspace bool, archive bool) {
	_, err := os.Stat(m.WorkspaceDir(id))
	workspace = err == nil
	_, err = os.Stat(m.ArchivePath(id))
	archive = err == nil
	return workspace, archive
}
