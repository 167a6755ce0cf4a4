/*
Package store keeps named dictionary and phrasebook documents in a SQLite
database, so that several grammars can live side by side and be selected by
name from the settings (e.g. "db:english").

Documents are validated with the phrasemaker decoders before they are
written, so anything read back from the store is known to decode.
*/
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/Phrasemaker/pkg/phrasemaker"
)

// Kind is the type of a stored document.
type Kind string

const (
	KindDictionary Kind = "dictionary"
	KindPhrasebook Kind = "phrasebook"
)

// ErrNotFound is returned when a document doesn't exist.
var ErrNotFound = errors.New("document not found")

// DocumentInfo describes a stored document without its body.
type DocumentInfo struct {
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetupSchema creates the documents table. It is idempotent and safe to
// call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaDocuments = `
CREATE TABLE IF NOT EXISTS phrasemaker_documents (
    doc_kind   TEXT    NOT NULL,
    doc_name   TEXT    NOT NULL,
    doc_body   TEXT    NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (doc_kind, doc_name)
);
`
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaDocuments); err != nil {
		return fmt.Errorf("could not create documents schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store reads and writes documents using prepared statements.
type Store struct {
	db         *sql.DB
	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtList   *sql.Stmt
	stmtRemove *sql.Stmt
	logger     *slog.Logger
}

// New prepares the store's statements. SetupSchema must have been called on db.
func New(db *sql.DB) (*Store, error) {
	stmtGet, err := db.Prepare(`SELECT doc_body FROM phrasemaker_documents WHERE doc_kind = ? AND doc_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(`INSERT INTO phrasemaker_documents (doc_kind, doc_name, doc_body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(doc_kind, doc_name) DO UPDATE SET doc_body = excluded.doc_body, updated_at = excluded.updated_at;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT doc_name, length(doc_body), updated_at FROM phrasemaker_documents WHERE doc_kind = ? ORDER BY doc_name;`)
	if err != nil {
		return nil, err
	}

	stmtRemove, err := db.Prepare(`DELETE FROM phrasemaker_documents WHERE doc_kind = ? AND doc_name = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtGet:    stmtGet,
		stmtPut:    stmtPut,
		stmtList:   stmtList,
		stmtRemove: stmtRemove,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases the prepared statements. The database itself is left open.
func (s *Store) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtPut.Close()
	_ = s.stmtList.Close()
	_ = s.stmtRemove.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Put validates the document read from r and inserts or replaces it.
func (s *Store) Put(ctx context.Context, kind Kind, name string, r io.Reader) error {
	if name == "" {
		return fmt.Errorf("document name must not be empty")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s %q: %w", kind, name, err)
	}

	switch kind {
	case KindDictionary:
		_, err = phrasemaker.ParseDictionary(body)
	case KindPhrasebook:
		_, err = phrasemaker.ParsePhrasebook(body)
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("rejected %s %q: %w", kind, name, err)
	}

	if _, err = s.stmtPut.ExecContext(ctx, string(kind), name, string(body), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store %s %q: %w", kind, name, err)
	}

	s.logger.InfoContext(ctx, "Document stored",
		slog.String("kind", string(kind)),
		slog.String("name", name),
		slog.Int("size", len(body)),
	)
	return nil
}

func (s *Store) get(ctx context.Context, kind Kind, name string) ([]byte, error) {
	var body string
	err := s.stmtGet.QueryRowContext(ctx, string(kind), name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %q: %w", kind, name, err)
	}
	return []byte(body), nil
}

// Dictionary loads and decodes a stored dictionary.
func (s *Store) Dictionary(ctx context.Context, name string) (*phrasemaker.Dictionary, error) {
	body, err := s.get(ctx, KindDictionary, name)
	if err != nil {
		return nil, err
	}
	return phrasemaker.ParseDictionary(body)
}

// Phrasebook loads and decodes a stored phrasebook.
func (s *Store) Phrasebook(ctx context.Context, name string) (phrasemaker.Phrasebook, error) {
	body, err := s.get(ctx, KindPhrasebook, name)
	if err != nil {
		return nil, err
	}
	return phrasemaker.ParsePhrasebook(body)
}

// Export writes the raw JSON body of a stored document to w.
func (s *Store) Export(ctx context.Context, kind Kind, name string, w io.Writer) error {
	body, err := s.get(ctx, kind, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(body))
	return err
}

// List returns the stored documents of one kind, sorted by name.
func (s *Store) List(ctx context.Context, kind Kind) ([]DocumentInfo, error) {
	rows, err := s.stmtList.QueryContext(ctx, string(kind))
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var docs []DocumentInfo
	for rows.Next() {
		info := DocumentInfo{Kind: kind}
		var updated int64
		if err = rows.Scan(&info.Name, &info.Size, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(updated, 0)
		docs = append(docs, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Remove deletes a stored document.
func (s *Store) Remove(ctx context.Context, kind Kind, name string) error {
	res, err := s.stmtRemove.ExecContext(ctx, string(kind), name)
	if err != nil {
		return fmt.Errorf("failed to remove %s %q: %w", kind, name, err)
	}
	if err = confirmRemoved(res, kind, name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Document removed",
		slog.String("kind", string(kind)),
		slog.String("name", name),
	)
	return nil
}

// confirmRemoved checks that a delete actually removed a row.
func confirmRemoved(res sql.Result, kind Kind, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm removal of %s %q: %w", kind, name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	return nil
}
