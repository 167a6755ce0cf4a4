package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Phrasemaker/pkg/phrasemaker"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/natefinch/atomic"
)

// StorePrefix marks a document reference that is read from a DocumentSource
// by name instead of from disk, e.g. "db:english".
const StorePrefix = "db:"

// Settings holds everything needed to build a phrasemaker.Engine.
// Empty Dictionary and Phrasebook references select the embedded defaults.
type Settings struct {
	Dictionary       string `json:"dictionary" env:"PHRASEMAKER_DICTIONARY" env-description:"dictionary file, db:<name>, or empty for the built-in one"`
	Phrasebook       string `json:"phrasebook" env:"PHRASEMAKER_PHRASEBOOK" env-description:"phrasebook file, db:<name>, or empty for the built-in one"`
	Entrypoint       string `json:"entrypoint" env:"PHRASEMAKER_ENTRYPOINT" env-description:"phrasebook entry to expand"`
	IncludeOffensive bool   `json:"includeOffensive" env:"PHRASEMAKER_INCLUDE_OFFENSIVE" env-description:"include offensive word variants"`
	Database         string `json:"database" env:"PHRASEMAKER_DATABASE" env-description:"SQLite data source for stored documents"`
	LogLevel         string `json:"logLevel" env:"PHRASEMAKER_LOG_LEVEL" env-description:"debug, info, warn or error"`
}

// DocumentSource provides stored documents by name.
type DocumentSource interface {
	Dictionary(ctx context.Context, name string) (*phrasemaker.Dictionary, error)
	Phrasebook(ctx context.Context, name string) (phrasemaker.Phrasebook, error)
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Dictionary:       "",
		Phrasebook:       "",
		Entrypoint:       "sentence",
		IncludeOffensive: false,
		Database:         "",
		LogLevel:         "info",
	}
}

// Load builds the effective settings. It starts from Default, overlays the
// defaults file at defaultsPath and then the user file at userPath, and
// finally applies PHRASEMAKER_* environment variables. Keys missing from a
// file keep their previous value.
//
// If the defaults file doesn't exist, it is created with the current
// defaults. An empty userPath skips the user file; a userPath that doesn't
// exist is an error.
func Load(defaultsPath, userPath string) (*Settings, error) {
	s := Default()

	if defaultsPath != "" {
		if err := s.overlayDefaults(defaultsPath); err != nil {
			return nil, err
		}
	}

	if userPath != "" {
		if err := s.overlayUser(userPath); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(s); err != nil {
		return nil, fmt.Errorf("settings: read env: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings: validate: %w", err)
	}
	return s, nil
}

func (s *Settings) overlayDefaults(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("settings: read %s: %w", path, err)
		}
		// File doesn't exist, create it with the current defaults.
		if data, err = json.MarshalIndent(s, "", "  "); err != nil {
			return fmt.Errorf("settings: marshal defaults: %w", err)
		}
		if err = os.MkdirAll(filepath.Dir(path), 0755); err == nil {
			err = atomic.WriteFile(path, bytes.NewReader(data))
		}
		if err != nil {
			return fmt.Errorf("settings: write %s: %w", path, err)
		}
		return nil
	}

	if err = json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return nil
}

// overlayUser reads the user file and the environment. Files with an
// extension cleanenv knows are parsed by cleanenv; anything else is JSON.
func (s *Settings) overlayUser(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".toml", ".edn", ".env":
		if err := cleanenv.ReadConfig(path, s); err != nil {
			return fmt.Errorf("settings: read %s: %w", path, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err = json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if err = cleanenv.ReadEnv(s); err != nil {
		return fmt.Errorf("settings: read env: %w", err)
	}
	return nil
}

// Validate checks the settings for values the engine cannot work with.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Entrypoint) == "" {
		return fmt.Errorf("entrypoint must not be empty")
	}
	switch strings.ToLower(s.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.LogLevel)
	}
	return nil
}

// UsesStore reports whether any document is read from a DocumentSource.
func (s *Settings) UsesStore() bool {
	return strings.HasPrefix(s.Dictionary, StorePrefix) || strings.HasPrefix(s.Phrasebook, StorePrefix)
}

// Documents resolves the dictionary and phrasebook references. src may be
// nil if neither reference uses StorePrefix.
func (s *Settings) Documents(ctx context.Context, src DocumentSource) (*phrasemaker.Dictionary, phrasemaker.Phrasebook, error) {
	dict, err := s.dictionary(ctx, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	book, err := s.phrasebook(ctx, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load phrasebook: %w", err)
	}
	return dict, book, nil
}

func (s *Settings) dictionary(ctx context.Context, src DocumentSource) (*phrasemaker.Dictionary, error) {
	switch ref := s.Dictionary; {
	case ref == "":
		return DefaultDictionary()
	case strings.HasPrefix(ref, StorePrefix):
		if src == nil {
			return nil, fmt.Errorf("%q requires a database", ref)
		}
		return src.Dictionary(ctx, strings.TrimPrefix(ref, StorePrefix))
	default:
		f, err := os.Open(ref)
		if err != nil {
			return nil, err
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		return phrasemaker.DecodeDictionary(f)
	}
}

func (s *Settings) phrasebook(ctx context.Context, src DocumentSource) (phrasemaker.Phrasebook, error) {
	switch ref := s.Phrasebook; {
	case ref == "":
		return DefaultPhrasebook()
	case strings.HasPrefix(ref, StorePrefix):
		if src == nil {
			return nil, fmt.Errorf("%q requires a database", ref)
		}
		return src.Phrasebook(ctx, strings.TrimPrefix(ref, StorePrefix))
	default:
		f, err := os.Open(ref)
		if err != nil {
			return nil, err
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		return phrasemaker.DecodePhrasebook(f)
	}
}

// NewEngine resolves the documents and builds an engine from the settings.
func (s *Settings) NewEngine(ctx context.Context, src DocumentSource, opts ...phrasemaker.Option) (*phrasemaker.Engine, error) {
	dict, book, err := s.Documents(ctx, src)
	if err != nil {
		return nil, err
	}
	return phrasemaker.New(dict, book, s.Entrypoint, s.IncludeOffensive, opts...)
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
