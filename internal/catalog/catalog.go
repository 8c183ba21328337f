// Package catalog resolves sound identifiers to files in the sounds directory.
package catalog

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extensions are the file extensions tried by Find, in order.
var Extensions = []string{".oga", ".ogg", ".wav", ".mp3"}

// Catalog resolves sound identifiers relative to a fixed directory.
// Existence is checked on every call; nothing is cached, so files may be
// added or removed between requests.
type Catalog struct {
	dir string
}

// New creates a Catalog rooted at dir.
func New(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir returns the sounds directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// Path returns the location a sound identifier maps to, without checking
// that it exists. Returns false for identifiers that would leave the
// sounds directory.
func (c *Catalog) Path(soundID string) (string, bool) {
	if soundID == "" || filepath.IsAbs(soundID) {
		return "", false
	}

	path := filepath.Join(c.dir, soundID)
	rel, err := filepath.Rel(c.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// Resolve returns the path of soundID if a regular file exists there.
// A missing file is a normal outcome, not an error.
func (c *Catalog) Resolve(soundID string) (string, bool) {
	path, ok := c.Path(soundID)
	if !ok {
		return "", false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}

// Find resolves a sound name that may omit its extension, as freedesktop
// sound names do. The name itself is tried first, then each of Extensions.
// Returns the matching identifier.
func (c *Catalog) Find(name string) (string, bool) {
	if _, ok := c.Resolve(name); ok {
		return name, true
	}
	if filepath.Ext(name) != "" && slices.Contains(Extensions, strings.ToLower(filepath.Ext(name))) {
		return "", false
	}
	for _, ext := range Extensions {
		if _, ok := c.Resolve(name + ext); ok {
			return name + ext, true
		}
	}
	return "", false
}

// List returns the identifiers of the files currently in the sounds directory.
func (c *Catalog) List() ([]string, error) {
	var ids []string
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
