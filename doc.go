// Package librarian answers questions over a corpus of text documents with
// an iterative, model-controlled retrieval loop.
//
// # Architecture
//
// Each run alternates between a decision and a query round:
//
//  1. The librarian sees the question, the corpus listing and every analysis
//     produced so far, and either answers or asks a focused sub-query.
//  2. For a sub-query, every document in the corpus is judged for relevance.
//  3. Relevant documents are mined for evidence entries (excerpts plus the
//     reason they help), grouped by document.
//  4. The synthesizer writes an analysis citing documents in parentheses,
//     which is appended to the run's context.
//
// The loop repeats until the librarian answers or the round limit is hit.
//
// # Structured output
//
// The decision, relevance and evidence stages expect a single ```json fenced
// block from the model. Parse validates it against a named schema and fails
// with *MalformedResponseError or *SchemaViolationError; nothing is coerced.
// Every call-and-validate unit is retried (three attempts by default).
// Relevance and evidence items that still fail are dropped with a warning;
// a decision that still fails aborts the run with *RunAbortedError.
//
// # Basic Usage
//
//	agent := librarian.New(
//	    librarian.WithGenerator(client),
//	    librarian.WithCorpus(corpus.NewDir("./data_files")),
//	    librarian.WithMaxRounds(8),
//	)
//
//	res, err := agent.Answer(ctx, "Compare the mental health of Dr. Frankenstein and Bartleby")
//	fmt.Println(res.Answer)
//
// # Interfaces
//
// Implement GenerationClient to connect any language model:
//
//	type GenerationClient interface {
//	    Generate(ctx context.Context, prompt string) (string, error)
//	}
//
// Package llm provides one backed by langchaingo. Implement Corpus to serve
// documents from anywhere; package corpus reads a directory tree.
package librarian
