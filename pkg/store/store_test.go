package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/Phrasemaker/pkg/phrasemaker"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDictionary = `{"#vowel sounds": ["^[aeiou]"], "#verb conjugations": {"pastTense": "<verb-e>ed"}}`
	testPhrasebook = `{"root": [{"type": "word", "choices": ["owl"], "article": "indefinite"}]}`
)

// setupTestStore creates a file-backed SQLite database and a Store for testing.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, SetupSchema(db))

	s, err := New(db)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return db, s
}

func TestSetupSchemaIsIdempotent(t *testing.T) {
	db, _ := setupTestStore(t)
	assert.NoError(t, SetupSchema(db))
}

func TestPutAndLoad(t *testing.T) {
	ctx := context.Background()
	_, s := setupTestStore(t)

	require.NoError(t, s.Put(ctx, KindDictionary, "english", strings.NewReader(testDictionary)))
	require.NoError(t, s.Put(ctx, KindPhrasebook, "owls", strings.NewReader(testPhrasebook)))

	dict, err := s.Dictionary(ctx, "english")
	require.NoError(t, err)
	book, err := s.Phrasebook(ctx, "owls")
	require.NoError(t, err)

	e, err := phrasemaker.New(dict, book, "root", false)
	require.NoError(t, err)
	got, err := e.Expand("root", false)
	require.NoError(t, err)
	assert.Equal(t, "an owl", got)

	// Same name, different kinds do not collide.
	_, err = s.Phrasebook(ctx, "english")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	_, s := setupTestStore(t)

	require.NoError(t, s.Put(ctx, KindPhrasebook, "owls", strings.NewReader(testPhrasebook)))
	replacement := `{"root": [{"type": "word", "choices": ["bird"]}]}`
	require.NoError(t, s.Put(ctx, KindPhrasebook, "owls", strings.NewReader(replacement)))

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, KindPhrasebook, "owls", &buf))
	assert.Equal(t, replacement, buf.String())

	docs, err := s.List(ctx, KindPhrasebook)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestPutRejectsInvalidDocuments(t *testing.T) {
	ctx := context.Background()
	_, s := setupTestStore(t)

	tests := []struct {
		name string
		kind Kind
		doc  string
		err  error
	}{
		{name: "bad regex", kind: KindDictionary, doc: `{"#vowel sounds": ["("]}`, err: phrasemaker.ErrInvalidDictionary},
		{name: "not json", kind: KindDictionary, doc: `vowels`, err: phrasemaker.ErrInvalidDictionary},
		{name: "missing choices", kind: KindPhrasebook, doc: `{"root": [{"type": "phrase"}]}`, err: phrasemaker.ErrInvalidPhrasebook},
		{name: "unknown kind", kind: Kind("settings"), doc: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Put(ctx, tt.kind, "doc", strings.NewReader(tt.doc))
			require.Error(t, err)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
			}
		})
	}

	for _, kind := range []Kind{KindDictionary, KindPhrasebook} {
		docs, err := s.List(ctx, kind)
		require.NoError(t, err)
		assert.Empty(t, docs, "rejected documents must not be stored")
	}

	assert.Error(t, s.Put(ctx, KindPhrasebook, "", strings.NewReader(testPhrasebook)))
}

func TestListAndRemove(t *testing.T) {
	ctx := context.Background()
	_, s := setupTestStore(t)

	for _, name := range []string{"zebra", "alpha", "mid"} {
		require.NoError(t, s.Put(ctx, KindPhrasebook, name, strings.NewReader(testPhrasebook)))
	}
	require.NoError(t, s.Put(ctx, KindDictionary, "english", strings.NewReader(testDictionary)))

	docs, err := s.List(ctx, KindPhrasebook)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"alpha", "mid", "zebra"}, []string{docs[0].Name, docs[1].Name, docs[2].Name})
	assert.Equal(t, KindPhrasebook, docs[0].Kind)
	assert.Equal(t, len(testPhrasebook), docs[0].Size)
	assert.False(t, docs[0].UpdatedAt.IsZero())

	require.NoError(t, s.Remove(ctx, KindPhrasebook, "mid"))
	err = s.Remove(ctx, KindPhrasebook, "mid")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Phrasebook(ctx, "mid")
	assert.True(t, errors.Is(err, ErrNotFound))

	docs, err = s.List(ctx, KindPhrasebook)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.List(ctx, KindDictionary)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestExportMissing(t *testing.T) {
	_, s := setupTestStore(t)
	var buf bytes.Buffer
	err := s.Export(context.Background(), KindDictionary, "nope", &buf)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, buf.Len())
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestConfirmRemoved(t *testing.T) {
	errDriver := errors.New("rows affected not supported")

	assert.NoError(t, confirmRemoved(stubResult{rows: 1}, KindPhrasebook, "owls"))

	err := confirmRemoved(stubResult{rows: 0}, KindPhrasebook, "owls")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = confirmRemoved(stubResult{err: errDriver}, KindPhrasebook, "owls")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDriver))
	assert.False(t, errors.Is(err, ErrNotFound))
}
