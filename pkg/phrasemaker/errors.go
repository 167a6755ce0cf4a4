package phrasemaker

import "errors"

// MissingPhrase is the in-band result for an entrypoint that is not in the
// phrasebook. It is a data error, not a failure, so Expand returns it with a
// nil error and expansion of sibling nodes carries on.
const MissingPhrase = "[Error: Phrase does not exist.]"

var (
	// ErrEmptyChoices is returned when a word or phrase node has nothing to pick from.
	ErrEmptyChoices = errors.New("empty choice list")
	// ErrCycleDetected is returned when expansion nests deeper than the engine's
	// maximum depth, which in practice means the phrasebook references itself.
	ErrCycleDetected = errors.New("grammar cycle detected")
	// ErrTenseNotFound is returned when a tense has neither a per-word form nor
	// a conjugation template.
	ErrTenseNotFound = errors.New("tense not found")
	// ErrInvalidDictionary wraps every dictionary shape error.
	ErrInvalidDictionary = errors.New("invalid dictionary")
	// ErrInvalidPhrasebook wraps every phrasebook shape error.
	ErrInvalidPhrasebook = errors.New("invalid phrasebook")
)
