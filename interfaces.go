package librarian

import "context"

// GenerationClient is implemented by text-generation backends. Generate makes
// a single request and returns the completion text; it does not retry.
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to GenerationClient.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Document is a named text blob from the corpus.
type Document struct {
	ID      string
	Content string
}

// Corpus lists and scans the documents available for retrieval.
// FetchAll returns every document; the query is accepted for future
// pre-filtering but does not narrow the result.
type Corpus interface {
	List(ctx context.Context) ([]string, error)
	FetchAll(ctx context.Context, query string) ([]Document, error)
}

// RelevantPair is a document judged relevant to the round's sub-query.
type RelevantPair struct {
	Query    string
	Document Document
}

// EvidenceEntry is one excerpted or paraphrased passage and why it helps.
type EvidenceEntry struct {
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// EvidenceGroup holds the entries extracted from a single document.
// An empty Entries slice means the document yielded nothing citable.
type EvidenceGroup struct {
	DocumentID string          `json:"document"`
	Entries    []EvidenceEntry `json:"entries"`
}

// Result is returned by Agent.Answer. Context is populated even when the
// run fails, so callers can report partial progress.
type Result struct {
	RunID    string
	Question string
	Answer   string
	Context  []string
	Rounds   int
}
