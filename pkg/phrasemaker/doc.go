/*
Package phrasemaker provides a recursive phrase generator driven by a JSON
grammar (the phrasebook) and a pronunciation/conjugation dictionary.

A phrasebook maps entrypoint names to ordered lists of nodes. Each node either
adds a space, picks a random word, or recursively expands another entrypoint.
Word and phrase selections may embed further entrypoints with {name}
placeholders, and nodes can ask for the first word to be conjugated into a
tense or prefixed with a definite or indefinite article. The dictionary
supplies the regular conjugation templates, the vowel and consonant sound
patterns used to pick between "a" and "an", and per-word irregular forms.

The Engine never reads files itself; see the settings package for loading
documents from disk, the embedded defaults or a SQLite store.
*/
package phrasemaker
