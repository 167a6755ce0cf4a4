package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/CTAG07/Phrasemaker/pkg/phrasemaker"
	"github.com/CTAG07/Phrasemaker/pkg/settings"
	"github.com/CTAG07/Phrasemaker/pkg/store"
	"github.com/ilyakaznacheev/cleanenv"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const (
	defaultsSettingsPath = "./data/settings.json"
	userSettingsPath     = "./settings.json"
)

// importFlags collects repeated name=path arguments.
type importFlags []string

func (f *importFlags) String() string { return strings.Join(*f, ",") }

func (f *importFlags) Set(value string) error {
	name, path, ok := strings.Cut(value, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", value)
	}
	*f = append(*f, value)
	return nil
}

type cmdOptions struct {
	settingsPath   string
	defaultsPath   string
	count          int
	entrypoint     string
	offensive      bool
	offensiveSet   bool
	list           bool
	seed           uint64
	printDefault   string
	showVersion    bool
	dictImports    importFlags
	bookImports    importFlags
	listDocuments  bool
	removeDocument string
}

func parseFlags(args []string, stderr io.Writer) (*cmdOptions, error) {
	opts := &cmdOptions{}
	fs := flag.NewFlagSet("phrasemaker", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.settingsPath, "settings", "", "user settings file, JSON unless the extension says otherwise (default "+userSettingsPath+" when present)")
	fs.StringVar(&opts.defaultsPath, "defaults", defaultsSettingsPath, "default settings file, created when missing")
	fs.IntVar(&opts.count, "n", 1, "number of phrases to generate")
	fs.StringVar(&opts.entrypoint, "entrypoint", "", "phrasebook entry to expand instead of the configured one")
	fs.BoolVar(&opts.offensive, "offensive", false, "include offensive word variants")
	fs.BoolVar(&opts.list, "list", false, "list the phrasebook entrypoints and exit")
	fs.Uint64Var(&opts.seed, "seed", 0, "seed for reproducible output (0 draws a random sequence)")
	fs.StringVar(&opts.printDefault, "print-default", "", "print the built-in \"dictionary\" or \"phrasebook\" and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	fs.Var(&opts.dictImports, "import-dictionary", "store a dictionary file in the database, as name=path (repeatable)")
	fs.Var(&opts.bookImports, "import-phrasebook", "store a phrasebook file in the database, as name=path (repeatable)")
	fs.BoolVar(&opts.listDocuments, "documents", false, "list the documents stored in the database and exit")
	fs.StringVar(&opts.removeDocument, "remove", "", "remove a stored document, as kind:name")

	header := "Environment variables override settings files:"
	fs.Usage = cleanenv.FUsage(stderr, &settings.Settings{}, &header, func() {
		_, _ = fmt.Fprintln(stderr, "Usage of phrasemaker:")
		fs.PrintDefaults()
	})

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "offensive" {
			opts.offensiveSet = true
		}
	})
	return opts, nil
}

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		baseLogger.Error("Phrasemaker failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

// run parses the arguments, loads the settings and performs the requested
// action. Phrases and listings go to stdout, logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.showVersion {
		_, err = fmt.Fprintf(stdout, "phrasemaker %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return err
	}
	if opts.printDefault != "" {
		doc := settings.DefaultDocument(opts.printDefault)
		if doc == nil {
			return fmt.Errorf("no built-in document named %q", opts.printDefault)
		}
		_, err = stdout.Write(doc)
		return err
	}

	if opts.settingsPath == "" {
		if _, err = os.Stat(userSettingsPath); err == nil {
			opts.settingsPath = userSettingsPath
		}
	}
	config, err := settings.Load(opts.defaultsPath, opts.settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if opts.entrypoint != "" {
		config.Entrypoint = opts.entrypoint
	}
	if opts.offensiveSet {
		config.IncludeOffensive = opts.offensive
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: settings.ParseLogLevel(config.LogLevel)}))

	storeAction := len(opts.dictImports) > 0 || len(opts.bookImports) > 0 || opts.listDocuments || opts.removeDocument != ""

	var src settings.DocumentSource
	if config.Database != "" {
		st, closeStore, err := openStore(config.Database, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		src = st

		if storeAction {
			return runStoreAction(ctx, st, opts, stdout)
		}
	} else if storeAction || config.UsesStore() {
		return fmt.Errorf("no database configured, set \"database\" in the settings or PHRASEMAKER_DATABASE")
	}

	var engineOpts []phrasemaker.Option
	if opts.seed != 0 {
		engineOpts = append(engineOpts, phrasemaker.WithRand(rand.New(rand.NewPCG(opts.seed, opts.seed))))
	}
	engine, err := config.NewEngine(ctx, src, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	engine.SetLogger(logger)

	if opts.list {
		for _, name := range engine.Entrypoints() {
			if _, err = fmt.Fprintln(stdout, name); err != nil {
				return err
			}
		}
		return nil
	}

	logger.Debug("Generating phrases", "entrypoint", engine.Entrypoint(), "count", opts.count, "offensive", engine.IncludeOffensive())
	phrases, err := engine.Generate(opts.count)
	if err != nil {
		return fmt.Errorf("failed to generate phrases: %w", err)
	}
	for _, phrase := range phrases {
		if _, err = fmt.Fprintln(stdout, phrase); err != nil {
			return err
		}
	}
	return nil
}

func openStore(dataSource string, logger *slog.Logger) (*store.Store, func(), error) {
	db, err := initDB(dataSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup document schema: %w", err)
	}
	st, err := store.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create document store: %w", err)
	}
	st.SetLogger(logger)

	return st, func() {
		st.Close()
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}, nil
}

func runStoreAction(ctx context.Context, st *store.Store, opts *cmdOptions, stdout io.Writer) error {
	for _, arg := range opts.dictImports {
		if err := importDocument(ctx, st, store.KindDictionary, arg); err != nil {
			return err
		}
	}
	for _, arg := range opts.bookImports {
		if err := importDocument(ctx, st, store.KindPhrasebook, arg); err != nil {
			return err
		}
	}

	if opts.removeDocument != "" {
		kind, name, ok := strings.Cut(opts.removeDocument, ":")
		if !ok {
			return fmt.Errorf("expected kind:name, got %q", opts.removeDocument)
		}
		if err := st.Remove(ctx, store.Kind(kind), name); err != nil {
			return err
		}
	}

	if opts.listDocuments {
		for _, kind := range []store.Kind{store.KindDictionary, store.KindPhrasebook} {
			docs, err := st.List(ctx, kind)
			if err != nil {
				return fmt.Errorf("failed to list %s documents: %w", kind, err)
			}
			for _, doc := range docs {
				_, err = fmt.Fprintf(stdout, "%s\t%s%s\t%d\t%s\n", doc.Kind, settings.StorePrefix, doc.Name, doc.Size, doc.UpdatedAt.Format(time.RFC3339))
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func importDocument(ctx context.Context, st *store.Store, kind store.Kind, arg string) error {
	name, path, _ := strings.Cut(arg, "=")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return st.Put(ctx, kind, name, f)
}
