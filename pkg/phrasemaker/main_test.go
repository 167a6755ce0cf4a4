package phrasemaker

import (
	"math/rand/v2"
	"testing"
)

// testDictionaryJSON is a small dictionary covering every rule the engine applies.
const testDictionaryJSON = `{
	"#vowel sounds": ["^[aeiou]", "^h(onest|our|eir)"],
	"#consonant sounds": ["^u[^aeiou][aeiou]", "^eu", "^one", "^o(?=nc)"],
	"#verb conjugations": {
		"pastTense": "<verb-e>ed",
		"presentParticiple": "<verb-e>ing",
		"thirdPerson": "<verb>s",
		"futureTense": "will <verb>"
	},
	"#comment": "ignored",
	"go": {"pastTense": "went", "thirdPerson": "goes"},
	"x-ray": {"beginsWithVowelSound": true},
	"honey": {"beginsWithVowelSound": false}
}`

// setupTestDictionary parses testDictionaryJSON, failing the test on error.
func setupTestDictionary(t testing.TB) *Dictionary {
	t.Helper()
	d, err := ParseDictionary([]byte(testDictionaryJSON))
	if err != nil {
		t.Fatalf("ParseDictionary() error = %v", err)
	}
	return d
}

// setupTestEngine builds an engine from a phrasebook document with a fixed seed.
func setupTestEngine(t testing.TB, phrasebookJSON, entrypoint string, opts ...Option) *Engine {
	t.Helper()
	book, err := ParsePhrasebook([]byte(phrasebookJSON))
	if err != nil {
		t.Fatalf("ParsePhrasebook() error = %v", err)
	}
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	e, err := New(setupTestDictionary(t), book, entrypoint, false, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}
