package librarian

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/smhanov/librarian/logger"
	"github.com/smhanov/librarian/metrics"
)

// Agent wires the librarian, retrieval, relevance, evidence and synthesis
// stages into the question-answering loop. An Agent may serve concurrent
// Answer calls; each call owns its own run state.
type Agent struct {
	gen           GenerationClient
	corpus        Corpus
	maxRounds     int
	retryAttempts int
	retryBackoff  time.Duration
	concurrency   int
	log           logger.Logger
	metrics       *metrics.Collector
	debug         bool

	librarian   *controller
	relevance   *relevanceFilter
	evidence    *evidenceExtractor
	synthesizer *synthesizer
}

// New constructs an Agent with optional configuration.
func New(opts ...Option) *Agent {
	a := &Agent{
		maxRounds:     defaultMaxRounds,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
		concurrency:   defaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Discard()
	}

	run := &runner{
		gen:      a.gen,
		attempts: a.retryAttempts,
		backoff:  a.retryBackoff,
		log:      a.log,
		metrics:  a.metrics,
		debug:    a.debug,
	}
	a.librarian = &controller{run: run}
	a.relevance = &relevanceFilter{run: run, concurrency: a.concurrency}
	a.evidence = &evidenceExtractor{run: run, concurrency: a.concurrency}
	a.synthesizer = &synthesizer{run: run}
	return a
}

// Answer runs the loop until the librarian answers. On failure the returned
// Result still carries the analyses completed so far. When the round limit
// is reached, Answer returns ErrMaxRounds together with the best-effort
// answer, if the librarian gave one.
func (a *Agent) Answer(ctx context.Context, question string) (Result, error) {
	state := newRunState(question)
	res := Result{RunID: uuid.NewString(), Question: state.question}
	if state.question == "" {
		return res, ErrEmptyQuestion
	}
	if a.gen == nil {
		return res, ErrNoGenerator
	}
	if a.corpus == nil {
		return res, ErrNoCorpus
	}

	log := a.log.With("run", res.RunID)
	log.Info("Starting run", "question", state.question)

	err := a.loop(ctx, log, state)
	res.Answer = state.answer
	res.Context = state.snapshot()
	res.Rounds = state.rounds

	switch {
	case err == nil:
		a.metrics.ObserveRun(metrics.RunAnswered)
		log.Info("Run answered", "rounds", state.rounds)
	case errors.Is(err, ErrMaxRounds) && state.answer != "":
		a.metrics.ObserveRun(metrics.RunExhausted)
		log.Warn("Round limit reached; returning best-effort answer", "rounds", state.rounds)
	default:
		a.metrics.ObserveRun(metrics.RunAborted)
		log.Error("Run failed", "rounds", state.rounds, "error", err)
	}
	return res, err
}

func (a *Agent) loop(ctx context.Context, log logger.Logger, state *runState) error {
	for state.phase != phaseDone {
		switch state.phase {
		case phaseAwaitDecision:
			final := state.rounds >= a.maxRounds
			decision, err := a.decide(ctx, state, final)
			if err != nil {
				return err
			}
			switch d := decision.(type) {
			case AnswerDecision:
				log.Info("Librarian answered", "reason", d.Reason)
				state.finish(d.Answer)
				if final {
					return ErrMaxRounds
				}
			case QueryDecision:
				if final {
					return a.abort(state, stageDecision, ErrMaxRounds)
				}
				log.Info("Librarian queried", "round", state.rounds+1, "query", d.Query, "reason", d.Reason)
				state.beginRound(d.Query)
			}
		case phaseQueryRound:
			if err := a.queryRound(ctx, log, state); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Agent) decide(ctx context.Context, state *runState, final bool) (Decision, error) {
	ids, err := a.corpus.List(ctx)
	if err != nil {
		return nil, a.corpusError(ctx, state, err)
	}
	decision, err := a.librarian.decide(ctx, state.question, ids, state.snapshot(), final)
	if err != nil {
		return nil, a.abort(state, stageDecision, err)
	}
	return decision, nil
}

// queryRound runs retrieval, relevance, evidence and synthesis for the
// current sub-query and appends the analysis to the context.
func (a *Agent) queryRound(ctx context.Context, log logger.Logger, state *runState) error {
	docs, err := a.corpus.FetchAll(ctx, state.subQuery)
	if err != nil {
		return a.corpusError(ctx, state, err)
	}

	state.pairs, err = a.relevance.filter(ctx, state.subQuery, docs)
	if err != nil {
		return a.abort(state, stageRelevance, err)
	}
	log.Debug("Relevance complete", "documents", len(docs), "relevant", len(state.pairs))

	state.evidence, err = a.evidence.extract(ctx, state.pairs)
	if err != nil {
		return a.abort(state, stageEvidence, err)
	}
	log.Debug("Evidence complete", "groups", len(state.evidence))

	analysis, err := a.synthesizer.synthesize(ctx, state.subQuery, state.evidence)
	if err != nil {
		return a.abort(state, stageSynthesis, err)
	}

	state.completeRound(analysis)
	a.metrics.ObserveRound()
	log.Info("Round complete", "round", state.rounds, "relevant", len(state.pairs))
	log.Debug("Analysis", "round", state.rounds, "text", analysis)
	return nil
}

func (a *Agent) corpusError(ctx context.Context, state *runState, err error) error {
	if ctx.Err() != nil {
		return a.abort(state, stageRetrieval, ctx.Err())
	}
	var cu *CorpusUnavailableError
	if errors.As(err, &cu) {
		return cu
	}
	return &CorpusUnavailableError{Err: err}
}

func (a *Agent) abort(state *runState, stage string, err error) error {
	return &RunAbortedError{
		Stage:   stage,
		Round:   state.rounds + 1,
		Context: state.snapshot(),
		Err:     err,
	}
}
