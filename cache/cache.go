// Package cache provides a persistent, write-once store of fetched content,
// laid out as "<root>/<build>/<identifier>" with one file per blob.
package cache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const tempPrefix = ".tmp-"

// Store implements the content cache on top of a directory tree.
// It is safe for concurrent use by multiple goroutines and processes
// sharing the same root.
type Store struct {
	root   string
	logger *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store rooted at root. Directories are created lazily
// on the first Store call.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:   root,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file path of the entry for key.
func (s *Store) Path(key Key) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return formatPath(s.root, key), nil
}

// Lookup returns the cached bytes for key. A missing entry is reported as
// (nil, false, nil). Lookup never touches the network.
func (s *Store) Lookup(key Key) ([]byte, bool, error) {
	filePath, err := s.Path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Store saves data under key unless an entry already exists. It returns
// true if this call created the entry and false if it was already present;
// existing entries are never rewritten or verified.
//
// The blob is written to a temporary file and published with a hard link,
// which fails if the entry exists. Of several racing writers exactly one
// wins, and no reader observes a partially written entry.
func (s *Store) Store(key Key, data []byte) (bool, error) {
	filePath, err := s.Path(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filePath); err == nil {
		return false, nil
	}

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return false, err
	}

	tempFile, err := os.CreateTemp(dirPath, tempPrefix+"*")
	if err != nil {
		return false, err
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return false, err
	}
	if err := tempFile.Chmod(0644); err != nil {
		tempFile.Close()
		return false, err
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return false, err
	}
	if err := tempFile.Close(); err != nil {
		return false, err
	}

	if err := os.Link(tempPath, filePath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}

	s.logger.Debug("minimaps: cached", "key", key.String(), "size", len(data))
	return true, nil
}

// VisitEntries calls visitor for every entry cached for build, with the
// entry size in bytes. Order is lexical by path.
func (s *Store) VisitEntries(build string, visitor func(Key, int64) error) error {
	if err := validateKey(Key{Build: build, Name: "_"}); err != nil {
		return err
	}
	buildDir := filepath.Join(s.root, build)
	err := filepath.WalkDir(buildDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(buildDir, filePath)
		if err != nil {
			return err
		}

		return visitor(NameKey(build, filepath.ToSlash(relPath)), info.Size())
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
