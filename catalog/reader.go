package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Reader reads maps from a SQLite catalog.
type Reader struct {
	db     *sql.DB
	logger *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(c *options) { c.Logger = logger }
}

// NewReader opens the SQLite catalog at filePath read-only.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string, opts ...Option) (*Reader, error) {
	config := options{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Reader{db: db, logger: config.Logger}, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// ReadMaps returns all maps ordered by ID. Records without an ID or layout
// ID are skipped.
func (r *Reader) ReadMaps() ([]Map, error) {
	rows, err := r.db.Query("SELECT ID, MapName_lang, WdtFileDataID FROM Map ORDER BY ID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	maps := make([]Map, 0)
	for rows.Next() {
		var id, layoutID sql.NullInt64
		var name sql.NullString
		if err := rows.Scan(&id, &name, &layoutID); err != nil {
			return nil, err
		}
		if err := validateRecord(id, layoutID); err != nil {
			r.logger.Warn("minimaps: skipping catalog record", "id", id.Int64, "error", err)
			continue
		}
		maps = append(maps, Map{ID: uint32(id.Int64), Name: name.String, LayoutID: uint32(layoutID.Int64)})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return maps, nil
}

var errInvalidRecord = errors.New("invalid record")

func validateRecord(id, layoutID sql.NullInt64) error {
	switch {
	case !id.Valid:
		return fmt.Errorf("%w: missing %v", errInvalidRecord, columnID)
	case !layoutID.Valid:
		return fmt.Errorf("%w: missing %v", errInvalidRecord, columnLayoutID)
	case id.Int64 < 0 || id.Int64 > 1<<32-1:
		return fmt.Errorf("%w: %v %d out of range", errInvalidRecord, columnID, id.Int64)
	case layoutID.Int64 < 0 || layoutID.Int64 > 1<<32-1:
		return fmt.Errorf("%w: %v %d out of range", errInvalidRecord, columnLayoutID, layoutID.Int64)
	}
	return nil
}
