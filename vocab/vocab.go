// Package vocab builds and holds the token <-> id mapping used to
// numericalize text.
//
// A Vocabulary is built once per training run from the training split's
// token counts, is capped to a maximum size, and is immutable afterwards.
// Ids 0 and 1 are reserved for the padding and unknown tokens.
package vocab

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Reserved ids and their token strings. They occupy the first two ids of
// every Vocabulary.
const (
	PadID = 0
	UnkID = 1

	PadToken = "<pad>"
	UnkToken = "<unk>"

	numReserved = 2
)

// Vocabulary is an immutable bijective mapping between token strings and
// integer ids in [0, Size()).
type Vocabulary struct {
	tokenToID map[string]int
	idToToken []string
}

// Builder accumulates token counts from the training corpus.
// Call Add for every token occurrence, then Build.
type Builder struct {
	counts    map[string]int
	firstSeen map[string]int
	next      int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		counts:    make(map[string]int),
		firstSeen: make(map[string]int),
	}
}

// Add counts one occurrence of each given token.
func (b *Builder) Add(tokens ...string) {
	for _, token := range tokens {
		if _, seen := b.counts[token]; !seen {
			b.firstSeen[token] = b.next
			b.next++
		}
		b.counts[token]++
	}
}

// NumDistinct returns how many distinct tokens were added so far.
func (b *Builder) NumDistinct() int {
	return len(b.counts)
}

// Build creates the Vocabulary: tokens ranked by descending frequency,
// ties broken by first-seen order, capped at maxSize total ids (including
// the two reserved ones). maxSize <= 0 means no cap.
func (b *Builder) Build(maxSize int) (*Vocabulary, error) {
	if maxSize > 0 && maxSize <= numReserved {
		return nil, errors.Errorf("vocabulary maxSize=%d leaves no room beyond the %d reserved ids", maxSize, numReserved)
	}
	if len(b.counts) == 0 {
		return nil, errors.New("cannot build a vocabulary from an empty token count")
	}

	ranked := make([]string, 0, len(b.counts))
	for token := range b.counts {
		ranked = append(ranked, token)
	}
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := b.counts[ranked[i]], b.counts[ranked[j]]
		if ci != cj {
			return ci > cj
		}
		return b.firstSeen[ranked[i]] < b.firstSeen[ranked[j]]
	})
	if maxSize > 0 && len(ranked) > maxSize-numReserved {
		ranked = ranked[:maxSize-numReserved]
	}

	v := &Vocabulary{
		tokenToID: make(map[string]int, len(ranked)+numReserved),
		idToToken: make([]string, 0, len(ranked)+numReserved),
	}
	v.idToToken = append(v.idToToken, PadToken, UnkToken)
	v.tokenToID[PadToken] = PadID
	v.tokenToID[UnkToken] = UnkID
	for _, token := range ranked {
		v.tokenToID[token] = len(v.idToToken)
		v.idToToken = append(v.idToToken, token)
	}
	return v, nil
}

// Size returns the number of ids, reserved ones included.
func (v *Vocabulary) Size() int {
	return len(v.idToToken)
}

// ID returns the id for token, or UnkID if the token is not in the vocabulary.
func (v *Vocabulary) ID(token string) int {
	if id, ok := v.tokenToID[token]; ok {
		return id
	}
	return UnkID
}

// Lookup returns the id for token and whether it is in the vocabulary.
func (v *Vocabulary) Lookup(token string) (int, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

// Token returns the token string for id, or ok=false if id is out of range.
func (v *Vocabulary) Token(id int) (token string, ok bool) {
	if id < 0 || id >= len(v.idToToken) {
		return "", false
	}
	return v.idToToken[id], true
}

// Encode maps tokens to their ids, unknown tokens becoming UnkID.
func (v *Vocabulary) Encode(tokens []string) []int {
	ids := make([]int, len(tokens))
	for ii, token := range tokens {
		ids[ii] = v.ID(token)
	}
	return ids
}

// vocabularyJSON is the persisted form: the id-ordered token list is enough
// to reconstruct the bijection.
type vocabularyJSON struct {
	Tokens []string `json:"tokens"`
}

// Save writes the vocabulary as JSON to path.
func (v *Vocabulary) Save(path string) error {
	data, err := json.Marshal(vocabularyJSON{Tokens: v.idToToken})
	if err != nil {
		return errors.Wrap(err, "failed to marshal vocabulary")
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write vocabulary to %q", path)
	}
	return nil
}

// Load reads a vocabulary previously written by Save.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary from %q", path)
	}
	var stored vocabularyJSON
	if err = json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrapf(err, "failed to parse vocabulary in %q", path)
	}
	if len(stored.Tokens) < numReserved || stored.Tokens[PadID] != PadToken || stored.Tokens[UnkID] != UnkToken {
		return nil, errors.Errorf("vocabulary in %q doesn't start with the reserved %q/%q tokens", path, PadToken, UnkToken)
	}
	v := &Vocabulary{
		tokenToID: make(map[string]int, len(stored.Tokens)),
		idToToken: stored.Tokens,
	}
	for id, token := range stored.Tokens {
		if _, dup := v.tokenToID[token]; dup {
			return nil, errors.Errorf("vocabulary in %q has duplicate token %q", path, token)
		}
		v.tokenToID[token] = id
	}
	return v, nil
}
