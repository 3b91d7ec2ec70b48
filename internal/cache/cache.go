package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/joseph-ayodele/gvb-ingest/constants"
)

// ErrOutsideCache is returned for names that would resolve outside the
// cache directory.
var ErrOutsideCache = errors.New("path outside cache directory")

// Dir is the local directory downloaded source files are kept in. Files are
// stored flat, by base name.
type Dir struct {
	root string
}

func New(path string) (*Dir, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache directory is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve cache directory: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Path returns the absolute cache directory.
func (d *Dir) Path() string { return d.root }

// Check verifies the directory exists and is writable by creating and
// removing a probe file.
func (d *Dir) Check() error {
	info, err := os.Stat(d.root)
	if err != nil {
		return fmt.Errorf("cache directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache directory %s is not a directory", d.root)
	}
	probe, err := os.CreateTemp(d.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("cache directory %s is not writable: %w", d.root, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// ListFiles returns the sorted names of ingestible files: regular,
// non-hidden, with an allowed extension.
func (d *Dir) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || IsHidden(name) {
			continue
		}
		if !constants.IsAllowedExt(filepath.Ext(name)) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Target resolves name to a path inside the directory.
func (d *Dir) Target(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrOutsideCache, name)
	}
	p := filepath.Join(d.root, name)
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel != name {
		return "", fmt.Errorf("%w: %q", ErrOutsideCache, name)
	}
	return p, nil
}

func (d *Dir) Has(name string) (bool, error) {
	p, err := d.Target(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (d *Dir) Open(name string) (io.ReadCloser, error) {
	p, err := d.Target(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Fingerprint returns the xxhash64 of the file content as 16 hex digits.
func (d *Dir) Fingerprint(name string) (string, error) {
	f, err := d.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", name, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Store writes r to name through a hidden temporary file, so a partial
// download never shows up in ListFiles.
func (d *Dir) Store(name string, r io.Reader) (int64, error) {
	p, err := d.Target(name)
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(d.root, ".partial-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, p)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("store %s: %w", name, err)
	}
	return n, nil
}

// IsHidden checks if a file name starts with '.'.
func IsHidden(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".")
}
