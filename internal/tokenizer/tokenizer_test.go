package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens_KnownModel(t *testing.T) {
	n, err := CountTokens("hello world", "gpt-4o")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestCountTokens_UnknownModelFallsBackToDefaultEncoding(t *testing.T) {
	n, err := CountTokens("hello world", "claude-3-5-sonnet-20241022")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestCountTokens_EmptyTextIsZero(t *testing.T) {
	n, err := CountTokens("", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTokenize_OffsetsReconstructOriginalText(t *testing.T) {
	text := "the quick brown fox"
	tokens, err := Tokenize(text, "gpt-4o")
	require.NoError(t, err)
	require.NotEmpty(t, tokens)

	var rebuilt string
	for i, tok := range tokens {
		assert.Equal(t, tok.End-tok.Start, tok.ByteLen())
		if i > 0 {
			assert.Equal(t, tokens[i-1].End, tok.Start, "tokens must be contiguous")
		}
		rebuilt += tok.Text
	}
	assert.Equal(t, text, rebuilt)
}

func TestTokenize_CountMatchesCountTokens(t *testing.T) {
	text := "some longer sentence to tokenize for counting comparison"
	tokens, err := Tokenize(text, "gpt-4o")
	require.NoError(t, err)
	n, err := CountTokens(text, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, n, len(tokens))
}
