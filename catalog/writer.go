package catalog

import (
	"database/sql"
	"errors"
	"log/slog"
)

// Writer creates a SQLite catalog.
type Writer struct {
	db     *sql.DB
	tx     *sql.Tx
	stmt   *sql.Stmt
	logger *slog.Logger
}

// NewWriter creates a new SQLite catalog at filePath. The file must not
// contain a Map table yet.
func NewWriter(filePath string, opts ...Option) (*Writer, error) {
	config := options{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE Map (
			ID INTEGER PRIMARY KEY,
			MapName_lang TEXT,
			WdtFileDataID INTEGER
		);
	`)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare("INSERT INTO Map (ID, MapName_lang, WdtFileDataID) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	return &Writer{db: db, tx: tx, stmt: stmt, logger: config.Logger}, nil
}

func (w *Writer) WriteMap(m Map) error {
	_, err := w.stmt.Exec(m.ID, m.Name, m.LayoutID)
	return err
}

// Finalize commits all written maps. It must be called before closing
// the Writer.
func (w *Writer) Finalize() error {
	if w.tx == nil {
		panic("minimaps: finalize called twice")
	}
	w.logger.Debug("minimaps: commit catalog")
	err := errors.Join(w.stmt.Close(), w.tx.Commit())
	w.tx = nil
	return err
}

// Close releases database resources; maps not finalized are discarded.
func (w *Writer) Close() error {
	if w.tx != nil {
		w.stmt.Close()
		w.tx.Rollback()
		w.tx = nil
	}
	return w.db.Close()
}
