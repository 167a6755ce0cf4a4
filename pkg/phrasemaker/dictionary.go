package phrasemaker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Reserved dictionary keys. Any other key starting with '#' is ignored.
const (
	VowelSoundsKey      = "#vowel sounds"
	ConsonantSoundsKey  = "#consonant sounds"
	VerbConjugationsKey = "#verb conjugations"
)

const vowelOverrideKey = "beginsWithVowelSound"

// PatternMatchTimeout bounds a single sound pattern match. Patterns are
// user-supplied ECMAScript regular expressions and may backtrack.
const PatternMatchTimeout = 100 * time.Millisecond

// WordInfo holds the per-word overrides of a dictionary entry. In JSON the
// entry is a flat object: the "beginsWithVowelSound" key is a boolean and
// every other key maps a tense name to the word's form in that tense.
type WordInfo struct {
	Tenses               map[string]string
	BeginsWithVowelSound *bool
}

// UnmarshalJSON decodes the flat JSON form of a dictionary entry.
func (w *WordInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	info := WordInfo{Tenses: make(map[string]string, len(raw))}
	for key, value := range raw {
		if key == vowelOverrideKey {
			var b bool
			if err := json.Unmarshal(value, &b); err != nil {
				return fmt.Errorf("%s: %w", vowelOverrideKey, err)
			}
			info.BeginsWithVowelSound = &b
			continue
		}
		var form string
		if err := json.Unmarshal(value, &form); err != nil {
			return fmt.Errorf("tense %q: %w", key, err)
		}
		info.Tenses[key] = form
	}
	*w = info
	return nil
}

// MarshalJSON encodes the entry back into its flat JSON form.
func (w WordInfo) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(w.Tenses)+1)
	for tense, form := range w.Tenses {
		raw[tense] = form
	}
	if w.BeginsWithVowelSound != nil {
		raw[vowelOverrideKey] = *w.BeginsWithVowelSound
	}
	return json.Marshal(raw)
}

// Dictionary holds per-word overrides together with the shared sound
// patterns and conjugation templates. It is never modified after it is
// built, so it is safe for concurrent use.
type Dictionary struct {
	words           map[string]WordInfo
	vowelSounds     []*regexp2.Regexp
	consonantSounds []*regexp2.Regexp
	conjugations    map[string]string
}

// NewDictionary compiles the sound patterns and returns a Dictionary. Word
// keys are stored lowercased, since lookups are always made in lowercase.
// Patterns use ECMAScript syntax, so lookarounds such as "^u(?=ni)" work.
func NewDictionary(words map[string]WordInfo, vowelSounds, consonantSounds []string, conjugations map[string]string) (*Dictionary, error) {
	d := &Dictionary{
		words:        make(map[string]WordInfo, len(words)),
		conjugations: make(map[string]string, len(conjugations)),
	}
	for word, info := range words {
		d.words[strings.ToLower(word)] = info
	}
	for tense, template := range conjugations {
		d.conjugations[tense] = template
	}

	var err error
	if d.vowelSounds, err = compilePatterns(VowelSoundsKey, vowelSounds); err != nil {
		return nil, err
	}
	if d.consonantSounds, err = compilePatterns(ConsonantSoundsKey, consonantSounds); err != nil {
		return nil, err
	}
	return d, nil
}

func compilePatterns(key string, patterns []string) ([]*regexp2.Regexp, error) {
	compiled := make([]*regexp2.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.ECMAScript)
		if err != nil {
			return nil, fmt.Errorf("%w: %q pattern %d: %v", ErrInvalidDictionary, key, i, err)
		}
		re.MatchTimeout = PatternMatchTimeout
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// matchAny reports whether any pattern matches word. A match that times out
// counts as no match.
func matchAny(patterns []*regexp2.Regexp, word string) bool {
	for _, re := range patterns {
		if ok, err := re.MatchString(word); err == nil && ok {
			return true
		}
	}
	return false
}

// DecodeDictionary reads a JSON dictionary document from r.
func DecodeDictionary(r io.Reader) (*Dictionary, error) {
	var d Dictionary
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		if errors.Is(err, ErrInvalidDictionary) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDictionary, err)
	}
	return &d, nil
}

// ParseDictionary is a convenience wrapper around DecodeDictionary for a byte slice.
func ParseDictionary(data []byte) (*Dictionary, error) {
	return DecodeDictionary(bytes.NewReader(data))
}

// UnmarshalJSON decodes a dictionary document. Errors are wrapped with
// ErrInvalidDictionary.
func (d *Dictionary) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDictionary, err)
	}

	var vowels, consonants []string
	var conjugations map[string]string
	words := make(map[string]WordInfo)

	for key, value := range raw {
		var err error
		switch key {
		case VowelSoundsKey:
			err = json.Unmarshal(value, &vowels)
		case ConsonantSoundsKey:
			err = json.Unmarshal(value, &consonants)
		case VerbConjugationsKey:
			err = json.Unmarshal(value, &conjugations)
		default:
			if strings.HasPrefix(key, "#") {
				continue
			}
			var info WordInfo
			err = json.Unmarshal(value, &info)
			words[key] = info
		}
		if err != nil {
			return fmt.Errorf("%w: entry %q: %v", ErrInvalidDictionary, key, err)
		}
	}

	built, err := NewDictionary(words, vowels, consonants, conjugations)
	if err != nil {
		return err
	}
	*d = *built
	return nil
}

// Word returns the overrides for a word, if the dictionary has any.
func (d *Dictionary) Word(word string) (WordInfo, bool) {
	info, ok := d.words[word]
	return info, ok
}

// BeginsWithVowelSound reports whether a lowercase word starts with a vowel
// sound. An explicit per-word override wins. Otherwise a match in the vowel
// sound list makes it true, and a match in the consonant sound list makes it
// false again, whatever the vowel list said.
func (d *Dictionary) BeginsWithVowelSound(word string) bool {
	if info, ok := d.words[word]; ok && info.BeginsWithVowelSound != nil {
		return *info.BeginsWithVowelSound
	}

	if !matchAny(d.vowelSounds, word) {
		return false
	}
	return !matchAny(d.consonantSounds, word)
}

// Conjugate returns verb in the given tense. A per-word form is returned
// verbatim. Otherwise the tense's template is filled in, with <verb> replaced
// by the verb and <verb-e> by the verb without a single trailing "e".
func (d *Dictionary) Conjugate(verb, tense string) (string, error) {
	if info, ok := d.words[verb]; ok {
		if form, ok := info.Tenses[tense]; ok {
			return form, nil
		}
	}

	template, ok := d.conjugations[tense]
	if !ok {
		return "", fmt.Errorf("%w: %q (verb %q)", ErrTenseNotFound, tense, verb)
	}

	return strings.NewReplacer(
		"<verb>", verb,
		"<verb-e>", strings.TrimSuffix(verb, "e"),
	).Replace(template), nil
}

// Tenses returns the sorted names of the tenses that have a regular conjugation template.
func (d *Dictionary) Tenses() []string {
	return slices.Sorted(maps.Keys(d.conjugations))
}
