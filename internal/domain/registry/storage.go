package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/modhost/internal/domain/module"
	"github.com/GriffinCanCode/modhost/internal/shared/utils"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
)

const (
	// CatalogFile is the catalog document name under the storage root
	CatalogFile = "modules.json"
	// ScriptsDir holds cached script bodies under the storage root
	ScriptsDir = "scripts"

	scriptPattern = "*.js"
)

// Storage is the filesystem-backed home of the catalog and script cache
type Storage struct {
	root string
}

// NewStorage creates storage rooted at dir. Nothing is touched on disk
// until EnsureCatalog.
func NewStorage(dir string) *Storage {
	return &Storage{root: dir}
}

// Root returns the storage root directory
func (s *Storage) Root() string {
	return s.root
}

// CatalogPath returns the catalog document path
func (s *Storage) CatalogPath() string {
	return filepath.Join(s.root, CatalogFile)
}

// ScriptPath returns the absolute path of a cached script filename
func (s *Storage) ScriptPath(name string) string {
	return filepath.Join(s.root, ScriptsDir, name)
}

// EnsureCatalog creates the directory layout and an empty catalog if absent.
// It reports whether a new catalog was created.
func (s *Storage) EnsureCatalog() (bool, error) {
	if err := os.MkdirAll(filepath.Join(s.root, ScriptsDir), 0o755); err != nil {
		return false, fmt.Errorf("failed to create storage directory: %w", err)
	}

	if _, err := os.Stat(s.CatalogPath()); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat catalog: %w", err)
	}

	if err := s.WriteCatalog(nil); err != nil {
		return false, err
	}
	return true, nil
}

// ReadCatalog loads every record from the catalog document
func (s *Storage) ReadCatalog() ([]module.Record, error) {
	data, err := os.ReadFile(s.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var records []module.Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", module.ErrDecode, CatalogFile, err)
	}
	return records, nil
}

// WriteCatalog replaces the catalog document with records
func (s *Storage) WriteCatalog(records []module.Record) error {
	if records == nil {
		records = []module.Record{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := atomicWrite(s.CatalogPath(), data); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// QuarantineCatalog moves an undecodable catalog aside and returns its new path
func (s *Storage) QuarantineCatalog() (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%d", s.CatalogPath(), time.Now().UnixNano())
	if err := os.Rename(s.CatalogPath(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// WriteScript stores a script body under name
func (s *Storage) WriteScript(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	return atomicWrite(s.ScriptPath(name), data)
}

// ReadScript returns a cached script body
func (s *Storage) ReadScript(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(s.ScriptPath(name))
}

// ScriptValid reports whether the cached script exists, is non-empty text,
// and matches checksum when one is recorded
func (s *Storage) ScriptValid(name, checksum string) bool {
	if name == "" {
		return false
	}
	data, err := s.ReadScript(name)
	if err != nil || len(data) == 0 {
		return false
	}
	return utils.Verify(checksum, data)
}

// DeleteScript removes a cached script; a missing file is not an error
func (s *Storage) DeleteScript(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(s.ScriptPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListScripts returns every cached script filename
func (s *Storage) ListScripts() ([]string, error) {
	dir := filepath.Join(s.root, ScriptsDir)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return doublestar.Glob(os.DirFS(dir), scriptPattern)
}

// checkName keeps cache filenames inside the scripts directory
func checkName(name string) error {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", module.ErrMissingScriptPath, name)
	}
	return nil
}

// atomicWrite writes data to a temp file beside path, syncs it and renames
// it over path
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
