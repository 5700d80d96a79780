package librarian

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// scriptedLLM answers each stage from its own script, keyed on a phrase
// unique to that stage's prompt. It is safe for concurrent use.
type scriptedLLM struct {
	mu sync.Mutex

	decisions []string
	synth     []string

	// relevance and extract default to "relevant" and one entry per document.
	relevance func(prompt string) (string, error)
	extract   func(prompt string) (string, error)

	decisionIdx int
	synthIdx    int

	prompts map[string][]string
}

const (
	markDecision  = "Previous datastore analysis results"
	markRelevance = "Is this document at all relevant"
	markEvidence  = "Transcribe whatever parts"
	markSynthesis = "Write a concise analysis"
)

func (s *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	stage := stageOf(prompt)

	s.mu.Lock()
	if s.prompts == nil {
		s.prompts = make(map[string][]string)
	}
	s.prompts[stage] = append(s.prompts[stage], prompt)
	s.mu.Unlock()

	switch stage {
	case stageDecision:
		return s.next(&s.decisions, &s.decisionIdx)
	case stageSynthesis:
		return s.next(&s.synth, &s.synthIdx)
	case stageRelevance:
		if s.relevance != nil {
			return s.relevance(prompt)
		}
		return "```json\n{\"relevant\": true}\n```", nil
	case stageEvidence:
		if s.extract != nil {
			return s.extract(prompt)
		}
		return fmt.Sprintf("```json\n{\"entries\": [{\"content\": \"from %s\", \"reason\": \"useful\"}]}\n```", docName(prompt)), nil
	default:
		return "", errors.New("unknown prompt")
	}
}

func (s *scriptedLLM) next(list *[]string, idx *int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *idx >= len(*list) {
		return "", errors.New("no scripted response available")
	}
	resp := (*list)[*idx]
	*idx++
	return resp, nil
}

func (s *scriptedLLM) calls(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts[stage])
}

func (s *scriptedLLM) prompt(stage string, i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[stage][i]
}

func stageOf(prompt string) string {
	switch {
	case strings.Contains(prompt, markDecision):
		return stageDecision
	case strings.Contains(prompt, markRelevance):
		return stageRelevance
	case strings.Contains(prompt, markEvidence):
		return stageEvidence
	case strings.Contains(prompt, markSynthesis):
		return stageSynthesis
	default:
		return ""
	}
}

// docName pulls the document ID out of a relevance or extraction prompt.
func docName(prompt string) string {
	const prefix = "Given document name: "
	i := strings.Index(prompt, prefix)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(prefix):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func queryJSON(q string) string {
	return fmt.Sprintf("```json\n{\"action\": \"query\", \"reason\": \"need more\", \"query\": %q}\n```", q)
}

func answerJSON(a string) string {
	return fmt.Sprintf("```json\n{\"action\": \"answer\", \"reason\": \"enough\", \"answer\": %q}\n```", a)
}

type stubCorpus struct {
	mu         sync.Mutex
	docs       []Document
	listErr    error
	fetchErr   error
	fetchCalls int
	queries    []string
}

func (c *stubCorpus) List(_ context.Context) ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	ids := make([]string, 0, len(c.docs))
	for _, d := range c.docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (c *stubCorpus) FetchAll(_ context.Context, query string) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	c.queries = append(c.queries, query)
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out, nil
}

func threeDocs() *stubCorpus {
	return &stubCorpus{docs: []Document{
		{ID: "doc1.txt", Content: "Bartleby prefers not to."},
		{ID: "doc2.txt", Content: "Victor Frankenstein is feverish."},
		{ID: "notes/doc3.txt", Content: "Unrelated shopping list."},
	}}
}

func testRunner(gen GenerationClient) *runner {
	a := New(WithGenerator(gen), WithRetryBackoff(time.Millisecond))
	return a.librarian.run
}
