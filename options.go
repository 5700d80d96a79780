package librarian

import (
	"time"

	"github.com/smhanov/librarian/logger"
	"github.com/smhanov/librarian/metrics"
)

const (
	defaultMaxRounds     = 10
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 250 * time.Millisecond
	defaultConcurrency   = 4
)

// Option configures an Agent.
type Option func(*Agent)

// WithGenerator sets the text-generation client used by every stage.
func WithGenerator(g GenerationClient) Option {
	return func(a *Agent) { a.gen = g }
}

// WithCorpus sets the document source.
func WithCorpus(c Corpus) Option {
	return func(a *Agent) { a.corpus = c }
}

// WithMaxRounds caps the number of retrieval rounds per run.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithRetryAttempts sets how many times each call-and-validate unit is
// attempted before it is given up.
func WithRetryAttempts(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.retryAttempts = n
		}
	}
}

// WithRetryBackoff sets the wait between attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(a *Agent) { a.retryBackoff = d }
}

// WithConcurrency bounds the in-flight generation calls of the relevance
// and evidence stages.
func WithConcurrency(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(a *Agent) { a.log = l }
}

// WithMetrics records generation, drop, round and run metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Agent) { a.metrics = c }
}

// WithDebug enables debug logging of all prompts and responses.
func WithDebug(enabled bool) Option {
	return func(a *Agent) { a.debug = enabled }
}
