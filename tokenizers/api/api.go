// Package api defines the Tokenizer API.
// It's kept in its own package so tokenizer implementations and their
// consumers (vocabulary building, corpus numericalization) don't import
// each other cyclically.
package api

// Tokenizer converts text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic
// (like padding) but that may map to different ids (int) for different
// tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns the ID for the given special token if registered,
	// or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

var specialTokenNames = [TokSpecialTokensCount]string{
	"beginning_of_sentence",
	"end_of_sentence",
	"unknown",
	"pad",
	"mask",
	"classification",
}

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	if t < 0 || t >= TokSpecialTokensCount {
		return "invalid_special_token"
	}
	return specialTokenNames[t]
}

// Config carries tokenizer settings usually read from a repository's
// tokenizer_config.json. All fields are optional.
type Config struct {
	UnkToken  string `json:"unk_token"`
	PadToken  string `json:"pad_token"`
	BosToken  string `json:"bos_token"`
	EosToken  string `json:"eos_token"`
	ClsToken  string `json:"cls_token"`
	SepToken  string `json:"sep_token"`
	MaskToken string `json:"mask_token"`

	// DoLowerCase lowercases text before splitting, the usual setting for
	// uncased sentiment corpora.
	DoLowerCase bool `json:"do_lower_case"`
}
