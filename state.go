package ddns

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// StateStore persists the last successfully applied address per family.
//
// Load reports false when nothing usable is stored.
// Save is best-effort: a lost write only costs a redundant update on the next tick.
type StateStore interface {
	Load(Family) (Addr, bool)
	Save(Family, Addr)
}

// DefaultStateDir returns the per-user directory used when no state directory is configured.
func DefaultStateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "ddnsclient"), nil
}

// NewFileStore returns a StateStore keeping one file per family in dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}
}

// FileStore is the on-disk StateStore.
// It assumes a single process owns dir for its lifetime.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

func (s *FileStore) path(f Family) string {
	return filepath.Join(s.dir, "last_"+f.String())
}

func (s *FileStore) Load(f Family) (Addr, bool) {
	a, err := s.load(f)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Ignoring stored address",
				zap.String("path", s.path(f)),
				zap.Error(err))
		}
		return Addr{}, false
	}
	return a, true
}

func (s *FileStore) load(f Family) (Addr, error) {
	b, err := os.ReadFile(s.path(f))
	if err != nil {
		return Addr{}, err
	}
	a, err := ParseAddr(f, strings.TrimSpace(string(b)))
	if err != nil {
		return Addr{}, fmt.Errorf("%w: %w", ErrStateCorrupt, err)
	}
	return a, nil
}

func (s *FileStore) Save(f Family, a Addr) {
	if err := s.save(f, a); err != nil {
		s.logger.Warn("Failed to save state",
			zap.String("path", s.path(f)),
			zap.Error(err))
	}
}

// save writes to a temporary file first and renames it into place,
// so a concurrent Load sees either the old or the new address.
func (s *FileStore) save(f Family, a Addr) error {
	if !a.IsValid() || a.Family() != f {
		return fmt.Errorf("refusing to store %q as %s", a, f)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".last_"+f.String()+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(a.String() + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(f)); err != nil {
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}
