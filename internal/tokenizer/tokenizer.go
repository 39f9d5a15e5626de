// Package tokenizer implements local token counting and tokenization
// (§6: count_tokens, tokenize) via github.com/pkoukk/tiktoken-go, replacing
// the teacher's rough `(len(content)+3)/4` heuristic
// (pkg/provider/llm/openai/openai.go's CountTokens, which itself carries a
// "TODO: replace with tiktoken-go" comment) with an exact BPE count,
// grounded on YaoApp-yao/openai/openai.go's Tiktoken helper.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/types"
)

// defaultEncoding is used for any model id tiktoken-go's static model table
// does not recognise — Anthropic, Mistral, and local HF models have no
// tiktoken encoding of their own, and refusing to count tokens for them
// entirely would leave most of the gateway's providers without
// count_tokens support. cl100k_base gives a reasonable cross-provider
// approximation rather than an exact count for non-OpenAI models.
const defaultEncoding = "cl100k_base"

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, &rerr.Error{
			Kind:   rerr.Configuration,
			Model:  model,
			Op:     "count_tokens",
			Reason: err.Error(),
		}
	}
	return enc, nil
}

// CountTokens returns the number of tokens text encodes to under model's
// tokenizer (or the cl100k_base fallback for models tiktoken-go does not
// recognise).
func CountTokens(text, model string) (int, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Tokenize returns the individual tokens text encodes to, each carrying its
// byte offset range within text. Token pieces are decoded one at a time and
// concatenated in order, so Start/End track exactly where each token's
// bytes fall in the original input — the BPE vocabularies tiktoken-go
// serves are byte-level, so the decoded pieces always reconstruct text
// exactly.
func Tokenize(text, model string) ([]types.Token, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return nil, err
	}
	ids := enc.Encode(text, nil, nil)
	tokens := make([]types.Token, 0, len(ids))
	cursor := 0
	for _, id := range ids {
		piece := enc.Decode([]int{id})
		start := cursor
		end := cursor + len(piece)
		tokens = append(tokens, types.Token{ID: id, Text: piece, Start: start, End: end})
		cursor = end
	}
	return tokens, nil
}
