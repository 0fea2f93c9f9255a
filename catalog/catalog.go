// Package catalog reads the list of maps to compile.
//
// Catalogs are either SQLite databases with a Map table or CSV exports of
// that table. Both carry at least the ID, MapName_lang and WdtFileDataID
// columns.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before reading or writing
// SQLite catalogs.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	columnID       = "ID"
	columnName     = "MapName_lang"
	columnLayoutID = "WdtFileDataID"
)

// Map is a single catalog record. LayoutID is the file data ID of the
// map's WDT file; zero means the map has no layout.
type Map struct {
	ID       uint32
	Name     string
	LayoutID uint32
}

// DeduceFormat returns "csv" or "sqlite" based on the file extension when
// format is empty.
func DeduceFormat(format, filePath string) string {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return "csv"
	case ".db", ".db3", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return ""
}

// Load reads all maps from the catalog at filePath.
func Load(filePath, format string, logger *slog.Logger) ([]Map, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch DeduceFormat(format, filePath) {
	case "csv":
		file, err := os.Open(filePath)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return ReadCSV(file, logger)
	case "sqlite":
		reader, err := NewReader(filePath, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return reader.ReadMaps()
	default:
		return nil, fmt.Errorf("minimaps: unknown catalog format %q for %v", format, filePath)
	}
}
