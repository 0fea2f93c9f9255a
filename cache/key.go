package cache

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
)

var ErrInvalidKey = errors.New("minimaps: invalid cache key")

// Key addresses a cached blob: the build it was fetched for and its
// identifier within that build (a decimal file data ID or a file path).
// Identifiers are compared verbatim; names must be clean relative paths so
// that distinct keys never share a file.
type Key struct {
	Build string
	Name  string
}

func IDKey(build string, id uint32) Key {
	return Key{Build: build, Name: strconv.FormatUint(uint64(id), 10)}
}

func NameKey(build, name string) Key {
	return Key{Build: build, Name: name}
}

func (k Key) String() string {
	return k.Build + "/" + k.Name
}

func validateKey(key Key) error {
	if key.Build == "" || key.Name == "" {
		return fmt.Errorf("%w: empty build or name (%q)", ErrInvalidKey, key)
	}
	if !filepath.IsLocal(key.Build) || filepath.Base(key.Build) != key.Build {
		return fmt.Errorf("%w: build %q", ErrInvalidKey, key.Build)
	}
	if !filepath.IsLocal(filepath.FromSlash(key.Name)) || path.Clean(key.Name) != key.Name {
		return fmt.Errorf("%w: name %q", ErrInvalidKey, key.Name)
	}
	return nil
}

func formatPath(root string, key Key) string {
	return filepath.Join(root, key.Build, filepath.FromSlash(key.Name))
}
