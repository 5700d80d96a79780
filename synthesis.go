package librarian

import (
	"context"
	"errors"
	"strings"
)

var errEmptyAnalysis = errors.New("empty analysis")

// synthesizer writes the prose analysis for a round. Its output is
// free text with parenthesized document citations and is not validated
// beyond being non-empty.
type synthesizer struct {
	run *runner
}

func (s *synthesizer) synthesize(ctx context.Context, query string, groups []EvidenceGroup) (string, error) {
	prompt, err := buildSynthesisPrompt(query, groups)
	if err != nil {
		return "", err
	}
	return invoke(ctx, s.run, stageSynthesis, prompt, func(raw string) (string, error) {
		text := StripThinkBlocks(raw)
		if text == "" {
			return "", &UpstreamError{Err: errEmptyAnalysis}
		}
		return strings.TrimSpace(text), nil
	})
}
