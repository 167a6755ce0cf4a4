package phrasemaker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Kind is the type of a phrasebook node.
type Kind string

const (
	// KindSpace appends a single space.
	KindSpace Kind = "space"
	// KindWord picks one of the node's choices.
	KindWord Kind = "word"
	// KindPhrase picks one of the node's choices and expands it as an entrypoint.
	KindPhrase Kind = "phrase"
)

// Article is the article a node prepends to its first word.
type Article string

const (
	ArticleNone       Article = "none"
	ArticleDefinite   Article = "definite"
	ArticleIndefinite Article = "indefinite"
)

// TenseInfinitive leaves the first word of a node unconjugated.
const TenseInfinitive = "infinitive"

// Node is a single production step of a phrasebook entry.
type Node struct {
	Kind      Kind     `json:"type"`
	Choices   []string `json:"choices,omitempty"`
	Offensive []string `json:"offensive,omitempty"`
	Tense     string   `json:"tense,omitempty"`
	Article   Article  `json:"article,omitempty"`
}

// Phrasebook maps entrypoint names to their ordered nodes.
type Phrasebook map[string][]Node

// DecodePhrasebook reads a JSON phrasebook document from r and validates its shape.
func DecodePhrasebook(r io.Reader) (Phrasebook, error) {
	var book Phrasebook
	if err := json.NewDecoder(r).Decode(&book); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrasebook, err)
	}
	if book == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidPhrasebook)
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	return book, nil
}

// ParsePhrasebook is a convenience wrapper around DecodePhrasebook for a byte slice.
func ParsePhrasebook(data []byte) (Phrasebook, error) {
	return DecodePhrasebook(bytes.NewReader(data))
}

// Validate checks the shape of every node. It does not follow phrase
// references: a reference to a missing entrypoint is a data error that
// expansion reports in-band.
func (b Phrasebook) Validate() error {
	var errs []error
	for _, name := range b.Entrypoints() {
		for i, node := range b[name] {
			if err := node.validate(); err != nil {
				errs = append(errs, fmt.Errorf("%w: entry %q node %d: %v", ErrInvalidPhrasebook, name, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (n Node) validate() error {
	switch n.Article {
	case "", ArticleNone, ArticleDefinite, ArticleIndefinite:
	default:
		return fmt.Errorf("unknown article %q", n.Article)
	}
	if (n.Kind == KindWord || n.Kind == KindPhrase) && n.Choices == nil {
		return fmt.Errorf("%s node has no choices field", n.Kind)
	}
	return nil
}

// Entrypoints returns the phrasebook's entry names in sorted order.
func (b Phrasebook) Entrypoints() []string {
	return slices.Sorted(maps.Keys(b))
}
