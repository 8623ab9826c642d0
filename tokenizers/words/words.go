// Package words implements a word-level tokenizer: unicode-normalized,
// optionally lowercased text split on whitespace, with punctuation runes
// becoming their own tokens.
//
// This is the splitting the frequency-ranked vocabulary is built from; bind
// a built vocabulary with Bind to get a full id-producing tokenizers/api
// Tokenizer.
package words

import (
	"strings"
	"unicode"

	"github.com/gomlx/go-sentiment/tokenizers/api"
	"github.com/gomlx/go-sentiment/vocab"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits text into word and punctuation tokens.
type Tokenizer struct {
	lowerCase bool
}

// New creates a word-level Tokenizer. config may be nil, in which case text
// is lowercased (the usual setting for sentiment corpora).
func New(config *api.Config) *Tokenizer {
	lower := true
	if config != nil {
		lower = config.DoLowerCase
	}
	return &Tokenizer{lowerCase: lower}
}

// Tokenize splits text into tokens: NFC-normalize, drop control characters,
// optionally lowercase, then split on whitespace with each punctuation rune
// as its own token.
func (t *Tokenizer) Tokenize(text string) []string {
	text = cleanText(norm.NFC.String(text))
	if t.lowerCase {
		text = strings.ToLower(text)
	}

	var tokens []string
	var current strings.Builder
	for _, r := range text {
		switch {
		case isWhitespace(r):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case isPunctuation(r):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// Bind pairs the tokenizer with a built vocabulary, yielding an Encoder that
// produces token ids.
func (t *Tokenizer) Bind(v *vocab.Vocabulary) *Encoder {
	return &Encoder{tokenizer: t, vocabulary: v}
}

// Encoder is a word Tokenizer bound to a Vocabulary.
type Encoder struct {
	tokenizer  *Tokenizer
	vocabulary *vocab.Vocabulary
}

// Compile time assert that Encoder implements the api.Tokenizer interface.
var _ api.Tokenizer = &Encoder{}

// Encode converts text to a sequence of token ids, unknown words mapping to
// the vocabulary's UNK id.
func (e *Encoder) Encode(text string) []int {
	return e.vocabulary.Encode(e.tokenizer.Tokenize(text))
}

// Decode converts ids back to a space-joined token string. Ids out of range
// render as the UNK token.
func (e *Encoder) Decode(ids []int) string {
	var sb strings.Builder
	for ii, id := range ids {
		if ii > 0 {
			sb.WriteByte(' ')
		}
		token, ok := e.vocabulary.Token(id)
		if !ok {
			token = vocab.UnkToken
		}
		sb.WriteString(token)
	}
	return sb.String()
}

// SpecialTokenID returns the vocabulary id of the given special token.
// Only padding and unknown are registered for word-level vocabularies.
func (e *Encoder) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokPad:
		return vocab.PadID, nil
	case api.TokUnknown:
		return vocab.UnkID, nil
	default:
		return 0, errors.Errorf("special token %s not registered in word-level vocabulary", token)
	}
}

// cleanText removes control characters and canonicalizes whitespace to ' '.
func cleanText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			sb.WriteRune(' ')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII punctuation first, the common case for English reviews.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
