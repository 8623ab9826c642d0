package vocab

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReservedIDs checks that every vocabulary starts with PAD and UNK.
func TestReservedIDs(t *testing.T) {
	builder := NewBuilder()
	builder.Add("good", "movie", "good")
	v, err := builder.Build(0)
	require.NoError(t, err)

	assert.Equal(t, PadID, v.ID(PadToken))
	assert.Equal(t, UnkID, v.ID(UnkToken))
	token, ok := v.Token(PadID)
	require.True(t, ok)
	assert.Equal(t, PadToken, token)
	token, ok = v.Token(UnkID)
	require.True(t, ok)
	assert.Equal(t, UnkToken, token)
}

// TestFrequencyRanking checks that ids are assigned by descending frequency.
func TestFrequencyRanking(t *testing.T) {
	builder := NewBuilder()
	builder.Add("rare")
	builder.Add("common", "common", "common")
	builder.Add("medium", "medium")
	v, err := builder.Build(0)
	require.NoError(t, err)

	assert.Equal(t, 5, v.Size())
	assert.Equal(t, 2, v.ID("common"))
	assert.Equal(t, 3, v.ID("medium"))
	assert.Equal(t, 4, v.ID("rare"))
}

// TestTieBreakFirstSeen checks that equal-frequency tokens rank in
// first-seen order.
func TestTieBreakFirstSeen(t *testing.T) {
	builder := NewBuilder()
	builder.Add("zebra", "apple", "mango")
	v, err := builder.Build(0)
	require.NoError(t, err)

	assert.Equal(t, 2, v.ID("zebra"))
	assert.Equal(t, 3, v.ID("apple"))
	assert.Equal(t, 4, v.ID("mango"))
}

// TestMaxSizeCap checks that the cap counts the reserved ids and keeps the
// most frequent tokens.
func TestMaxSizeCap(t *testing.T) {
	builder := NewBuilder()
	builder.Add("a", "a", "a", "b", "b", "c")
	v, err := builder.Build(4)
	require.NoError(t, err)

	assert.Equal(t, 4, v.Size())
	assert.Equal(t, 2, v.ID("a"))
	assert.Equal(t, 3, v.ID("b"))
	assert.Equal(t, UnkID, v.ID("c")) // Fell off the cap.
}

// TestBuildErrors checks construction-time validation.
func TestBuildErrors(t *testing.T) {
	_, err := NewBuilder().Build(0)
	assert.Error(t, err, "empty corpus")

	builder := NewBuilder()
	builder.Add("word")
	_, err = builder.Build(2)
	assert.Error(t, err, "cap leaves no room beyond reserved ids")
	_, err = builder.Build(1)
	assert.Error(t, err)
}

// TestUnknownFallback checks that out-of-vocabulary tokens map to UNK.
func TestUnknownFallback(t *testing.T) {
	builder := NewBuilder()
	builder.Add("known")
	v, err := builder.Build(0)
	require.NoError(t, err)

	assert.Equal(t, UnkID, v.ID("never-seen"))
	_, ok := v.Lookup("never-seen")
	assert.False(t, ok)

	ids := v.Encode([]string{"known", "never-seen", "known"})
	assert.Equal(t, []int{2, UnkID, 2}, ids)
}

// TestTokenOutOfRange checks id -> token bounds handling.
func TestTokenOutOfRange(t *testing.T) {
	builder := NewBuilder()
	builder.Add("word")
	v, err := builder.Build(0)
	require.NoError(t, err)

	_, ok := v.Token(-1)
	assert.False(t, ok)
	_, ok = v.Token(v.Size())
	assert.False(t, ok)
}

// TestSaveLoadRoundTrip checks JSON persistence preserves the bijection.
func TestSaveLoadRoundTrip(t *testing.T) {
	builder := NewBuilder()
	builder.Add("this", "movie", "was", "great", "movie", "great", "great")
	v, err := builder.Build(0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, v.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, v.Size(), loaded.Size())
	for id := 0; id < v.Size(); id++ {
		token, ok := v.Token(id)
		require.True(t, ok)
		assert.Equal(t, id, loaded.ID(token))
	}
}

// TestLoadRejectsBadFiles checks malformed persisted vocabularies fail.
func TestLoadRejectsBadFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
