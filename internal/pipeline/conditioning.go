package pipeline

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"videod/internal/backend"
	"videod/internal/device"
)

// MaxPromptTokens is the text encoder's maximum sequence length. Longer
// prompts are truncated left-to-right keeping the prefix, reported as a
// warning, never an error.
const MaxPromptTokens = 128

// fallbackToken stands in for runes outside the encoder vocabulary's
// basic plane. Using the replacement character keeps truncation-equality
// holds: re-encoding the truncated prefix yields identical ids.
const fallbackToken = 0xFFFD

// tokenize maps a prompt to encoder token ids. Deterministic; the only
// failure is genuinely malformed input the vocabulary fallback cannot absorb.
func tokenize(prompt string) (tokens []int, truncated bool, err error) {
	if !utf8.ValidString(prompt) {
		return nil, false, ErrEncoding("prompt is not valid UTF-8")
	}
	for _, r := range prompt {
		switch {
		case r == '\n' || r == '\t':
			r = ' '
		case unicode.IsControl(r):
			return nil, false, ErrEncoding(fmt.Sprintf("unsupported control character U+%04X", r))
		case r > 0xFFFF:
			r = fallbackToken
		}
		tokens = append(tokens, int(r))
	}
	if len(tokens) == 0 {
		return nil, false, ErrEncoding("prompt is empty after tokenization")
	}
	if len(tokens) > MaxPromptTokens {
		tokens = tokens[:MaxPromptTokens]
		truncated = true
	}
	return tokens, truncated, nil
}

// conditioning is the output of the text conditioning stage: one tensor for
// the prompt, one for the negative prompt (the unconditional branch of
// classifier-free guidance). Job-scoped; owned by the arena.
type conditioning struct {
	cond   *device.Tensor
	uncond *device.Tensor
}

// runConditioning encodes the prompt pair. No randomness: identical prompts
// and encoder weights always produce identical tensors.
func (p *Pipeline) runConditioning(ctx context.Context, j *job, enc *device.Weights, prompt, negative string, arena *device.Arena) (*conditioning, error) {
	tokens, truncated, err := tokenize(prompt)
	if err != nil {
		return nil, err
	}
	if truncated {
		j.warn(fmt.Sprintf("prompt truncated to %d tokens", MaxPromptTokens))
		p.log.Warn().Str("job_id", j.id).Int("max_tokens", MaxPromptTokens).Msg("prompt truncated")
	}
	cond, err := p.backend.EncodeTokens(ctx, enc, tokens, arena)
	if err != nil {
		return nil, ErrEncoding(err.Error())
	}

	negTokens, negTruncated, err := tokenize(negative)
	if err != nil {
		return nil, err
	}
	if negTruncated {
		j.warn(fmt.Sprintf("negative prompt truncated to %d tokens", MaxPromptTokens))
	}
	uncond, err := p.backend.EncodeTokens(ctx, enc, negTokens, arena)
	if err != nil {
		return nil, ErrEncoding(err.Error())
	}
	if !cond.ShapeEquals(len(tokens), backend.EmbedDim) {
		return nil, ErrEncoding(fmt.Sprintf("conditioning shape %s, want [%d %d]", cond.ShapeString(), len(tokens), backend.EmbedDim))
	}
	return &conditioning{cond: cond, uncond: uncond}, nil
}
