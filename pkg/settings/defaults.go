package settings

import (
	"bytes"
	_ "embed"

	"github.com/CTAG07/Phrasemaker/pkg/phrasemaker"
)

var (
	//go:embed defaults/dictionary.json
	defaultDictionary []byte

	//go:embed defaults/phrasebook.json
	defaultPhrasebook []byte
)

// DefaultDictionary decodes the built-in English dictionary.
func DefaultDictionary() (*phrasemaker.Dictionary, error) {
	return phrasemaker.DecodeDictionary(bytes.NewReader(defaultDictionary))
}

// DefaultPhrasebook decodes the built-in phrasebook. Its entrypoints are
// "sentence" and "exclamation".
func DefaultPhrasebook() (phrasemaker.Phrasebook, error) {
	return phrasemaker.DecodePhrasebook(bytes.NewReader(defaultPhrasebook))
}

// DefaultDocument returns the raw JSON of a built-in document, "dictionary"
// or "phrasebook", or nil for any other name.
func DefaultDocument(name string) []byte {
	switch name {
	case "dictionary":
		return bytes.Clone(defaultDictionary)
	case "phrasebook":
		return bytes.Clone(defaultPhrasebook)
	}
	return nil
}
