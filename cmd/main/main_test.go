package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/Phrasemaker/pkg/phrasemaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from dir with no PHRASEMAKER_* variables set, so
// neither a ./settings.json nor the caller's environment leaks in.
func isolate(t *testing.T, dir string) {
	t.Helper()
	t.Chdir(dir)
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "PHRASEMAKER_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

// runCmd runs the command in dir with a private defaults file and returns stdout.
func runCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	isolate(t, dir)
	var stdout, stderr bytes.Buffer
	args = append([]string{"-defaults", filepath.Join(dir, "defaults.json")}, args...)
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestRun_Generate(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "-n", "4", "-seed", "7")
	require.NoError(t, err)
	phrases := lines(out)
	require.Len(t, phrases, 4)
	for _, p := range phrases {
		assert.NotEmpty(t, p)
		assert.NotContains(t, p, phrasemaker.MissingPhrase)
	}

	again, err := runCmd(t, dir, "-n", "4", "-seed", "7")
	require.NoError(t, err)
	assert.Equal(t, out, again, "same seed must give the same phrases")

	_, err = os.Stat(filepath.Join(dir, "defaults.json"))
	assert.NoError(t, err, "defaults file should be created on first run")
}

func TestRun_EntrypointOverride(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "-entrypoint", "doesNotExist", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{phrasemaker.MissingPhrase, phrasemaker.MissingPhrase}, lines(out))

	out, err = runCmd(t, dir, "-entrypoint", "exclamation", "-offensive")
	require.NoError(t, err)
	assert.Contains(t, out, " is ")
}

func TestRun_List(t *testing.T) {
	out, err := runCmd(t, t.TempDir(), "-list")
	require.NoError(t, err)
	assert.Equal(t, []string{"adjective", "exclamation", "object", "predicate", "sentence", "subject"}, lines(out))
}

func TestRun_PrintDefaultAndVersion(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "-print-default", "phrasebook")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	_, err = runCmd(t, dir, "-print-default", "grammar")
	assert.Error(t, err)

	out, err = runCmd(t, dir, "-version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRun_StoredDocuments(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "tiny.json")
	require.NoError(t, os.WriteFile(bookPath, []byte(`{"root": [{"type": "word", "choices": ["eat"], "tense": "pastTense"}]}`), 0644))

	userPath := filepath.Join(dir, "user.json")
	writeUser := func(content string) {
		require.NoError(t, os.WriteFile(userPath, []byte(content), 0644))
	}
	dbPath := filepath.Join(dir, "docs.db")

	writeUser(`{"database": "` + dbPath + `"}`)
	_, err := runCmd(t, dir, "-settings", userPath, "-import-phrasebook", "tiny="+bookPath)
	require.NoError(t, err)

	out, err := runCmd(t, dir, "-settings", userPath, "-documents")
	require.NoError(t, err)
	assert.Contains(t, out, "phrasebook\tdb:tiny\t")

	writeUser(`{"database": "` + dbPath + `", "phrasebook": "db:tiny", "entrypoint": "root"}`)
	out, err = runCmd(t, dir, "-settings", userPath, "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"ate", "ate"}, lines(out))

	_, err = runCmd(t, dir, "-settings", userPath, "-remove", "phrasebook:tiny")
	require.NoError(t, err)
	_, err = runCmd(t, dir, "-settings", userPath)
	assert.Error(t, err)
}

func TestRun_WorkingDirectorySettings(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "-list")
	require.NoError(t, err)
	assert.Contains(t, lines(out), "sentence")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{"entrypoint": "nowhere"}`), 0644))
	out, err = runCmd(t, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{phrasemaker.MissingPhrase}, lines(out), "./settings.json is used when -settings is absent")

	isolate(t, dir)
	t.Setenv("PHRASEMAKER_ENTRYPOINT", "adjective")
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-defaults", filepath.Join(dir, "defaults.json")}, &stdout, &stderr))
	adjectives := []string{"old", "tiny", "enormous", "elegant", "suspicious", "hungry"}
	assert.Contains(t, adjectives, strings.TrimSpace(stdout.String()), "environment overrides ./settings.json")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := runCmd(t, dir, "-import-dictionary", "english="+filepath.Join(dir, "dict.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database configured")

	_, err = runCmd(t, dir, "-import-phrasebook", "missing-equals-sign")
	assert.Error(t, err)

	_, err = runCmd(t, dir, "-settings", filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}
