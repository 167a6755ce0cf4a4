package phrasemaker

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// DefaultMaxDepth is the default limit on nested expansions.
const DefaultMaxDepth = 64

// placeholderPattern matches one {name} reference. It is non-greedy so that
// several placeholders in one selection are expanded separately.
var placeholderPattern = regexp.MustCompile(`\{(.+?)\}`)

// Engine expands phrasebook entrypoints into text. It holds no mutable state
// besides an optional seeded random source, which is guarded by a mutex, so
// a single Engine can be shared between goroutines.
type Engine struct {
	dict             *Dictionary
	book             Phrasebook
	entrypoint       string
	includeOffensive bool
	maxDepth         int
	rng              *rand.Rand
	rngMu            sync.Mutex
	logger           *slog.Logger
}

// Option is a function that configures an Engine.
type Option func(*Engine)

// WithRand makes the engine draw from r instead of the global source.
// Useful for reproducible output.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithMaxDepth sets how deep expansions may nest before ErrCycleDetected is
// returned. Values below 1 keep DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New creates an Engine for the given documents. The entrypoint and
// includeOffensive values are the ones Generate uses. The phrasebook's shape
// is validated here, so an Engine is never built on a malformed document.
func New(dict *Dictionary, book Phrasebook, entrypoint string, includeOffensive bool, opts ...Option) (*Engine, error) {
	if dict == nil {
		return nil, fmt.Errorf("%w: dictionary is nil", ErrInvalidDictionary)
	}
	if book == nil {
		return nil, fmt.Errorf("%w: phrasebook is nil", ErrInvalidPhrasebook)
	}
	if entrypoint == "" {
		return nil, fmt.Errorf("%w: entrypoint is empty", ErrInvalidPhrasebook)
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		dict:             dict,
		book:             book,
		entrypoint:       entrypoint,
		includeOffensive: includeOffensive,
		maxDepth:         DefaultMaxDepth,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetLogger sets the logger for the Engine. By default, all logs are discarded.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Entrypoint returns the entrypoint Generate expands.
func (e *Engine) Entrypoint() string { return e.entrypoint }

// IncludeOffensive reports whether Generate includes offensive variants.
func (e *Engine) IncludeOffensive() bool { return e.includeOffensive }

// Entrypoints returns the sorted names of all phrasebook entries.
func (e *Engine) Entrypoints() []string { return e.book.Entrypoints() }

// Dictionary returns the dictionary the engine was built with.
func (e *Engine) Dictionary() *Dictionary { return e.dict }

// Generate returns count independently drawn phrases for the engine's
// entrypoint. A count of zero or less returns an empty slice. The first
// structural error stops generation and is returned.
func (e *Engine) Generate(count int) ([]string, error) {
	phrases := make([]string, 0, max(count, 0))
	for range count {
		phrase, err := e.Expand(e.entrypoint, e.includeOffensive)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, phrase)
	}
	e.logger.Debug("Generated phrases", "entrypoint", e.entrypoint, "count", len(phrases))
	return phrases, nil
}

// Expand builds one phrase from the named entrypoint. It bypasses the
// engine's configured entrypoint and offensiveness, for callers that need
// finer control. An unknown entrypoint yields MissingPhrase and a nil error.
func (e *Engine) Expand(entrypoint string, includeOffensive bool) (string, error) {
	return e.expand(entrypoint, includeOffensive, nil)
}

// Conjugate conjugates a verb with the engine's dictionary.
func (e *Engine) Conjugate(verb, tense string) (string, error) {
	return e.dict.Conjugate(verb, tense)
}

// BeginsWithVowelSound checks a word against the engine's dictionary.
func (e *Engine) BeginsWithVowelSound(word string) bool {
	return e.dict.BeginsWithVowelSound(word)
}

// expand is the recursive step. path holds the entrypoints currently being
// expanded, outermost first.
func (e *Engine) expand(name string, includeOffensive bool, path []string) (string, error) {
	nodes, ok := e.book[name]
	if !ok {
		e.logger.Debug("Phrase does not exist", "entrypoint", name)
		return MissingPhrase, nil
	}
	if len(path) >= e.maxDepth {
		return "", fmt.Errorf("%w: depth %d exceeded at %s", ErrCycleDetected, e.maxDepth, describePath(append(path, name)))
	}
	path = append(path, name)

	var phrase strings.Builder
	for i, node := range nodes {
		var selection string
		var err error

		switch node.Kind {
		case KindSpace:
			phrase.WriteByte(' ')
			continue
		case KindWord:
			pool := node.Choices
			if includeOffensive && node.Offensive != nil {
				pool = append(slices.Clip(node.Choices), node.Offensive...)
			}
			if selection, err = e.pick(pool); err != nil {
				return "", fmt.Errorf("entry %q node %d: %w", name, i, err)
			}
		case KindPhrase:
			var child string
			if child, err = e.pick(node.Choices); err != nil {
				return "", fmt.Errorf("entry %q node %d: %w", name, i, err)
			}
			if selection, err = e.expand(child, includeOffensive, path); err != nil {
				return "", err
			}
		default:
			e.logger.Warn("Unsupported node type", "type", string(node.Kind), "entrypoint", name, "node", i)
		}

		if selection, err = e.substitute(selection, includeOffensive, path); err != nil {
			return "", err
		}

		words := strings.Split(selection, " ")

		if node.Tense != "" && node.Tense != TenseInfinitive && words[0] != "" && !strings.HasPrefix(words[0], "{") {
			if words[0], err = e.dict.Conjugate(strings.ToLower(words[0]), node.Tense); err != nil {
				return "", fmt.Errorf("entry %q node %d: %w", name, i, err)
			}
		}

		switch node.Article {
		case ArticleDefinite:
			words = slices.Insert(words, 0, "the")
		case ArticleIndefinite:
			article := "a"
			if e.dict.BeginsWithVowelSound(strings.ToLower(words[0])) {
				article = "an"
			}
			words = slices.Insert(words, 0, article)
		}

		phrase.WriteString(strings.TrimSpace(strings.Join(words, " ")))
		phrase.WriteByte(' ')
	}

	return strings.Join(strings.Fields(phrase.String()), " "), nil
}

// substitute replaces every {name} placeholder in selection, left to right,
// with an independent expansion of that entrypoint.
func (e *Engine) substitute(selection string, includeOffensive bool, path []string) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(selection, -1)
	if matches == nil {
		return selection, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(selection[last:m[0]])
		expansion, err := e.expand(selection[m[2]:m[3]], includeOffensive, path)
		if err != nil {
			return "", err
		}
		b.WriteString(expansion)
		last = m[1]
	}
	b.WriteString(selection[last:])
	return b.String(), nil
}

// pick returns a uniformly random element of choices.
func (e *Engine) pick(choices []string) (string, error) {
	if len(choices) == 0 {
		return "", ErrEmptyChoices
	}
	if e.rng == nil {
		return choices[rand.IntN(len(choices))], nil
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return choices[e.rng.IntN(len(choices))], nil
}

// describePath renders the tail of an expansion path for error messages.
func describePath(path []string) string {
	const shown = 8
	if len(path) > shown {
		return "... -> " + strings.Join(path[len(path)-shown:], " -> ")
	}
	return strings.Join(path, " -> ")
}
