package librarian

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/smhanov/librarian/logger"
	"github.com/smhanov/librarian/metrics"
)

// runner performs one call-and-validate unit against the generation service
// with a fixed retry budget. Stages share a runner; it holds no run state.
type runner struct {
	gen      GenerationClient
	attempts int
	backoff  time.Duration
	log      logger.Logger
	metrics  *metrics.Collector
	debug    bool
}

func (r *runner) backoffPolicy() retry.Backoff {
	wait := r.backoff
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(wait)) // #nosec G115 -- attempts >= 1
}

// invoke calls the generator with prompt and feeds the completion to parse,
// retrying upstream, malformed and schema failures until the budget runs out.
// The last failure is returned when every attempt fails.
func invoke[T any](ctx context.Context, r *runner, stage, prompt string, parse func(string) (T, error)) (T, error) {
	var out T
	attempt := 0
	err := retry.Do(ctx, r.backoffPolicy(), func(ctx context.Context) error {
		attempt++
		raw, elapsed, err := r.generate(ctx, stage, prompt)
		if err != nil {
			return retryIf(err)
		}
		v, err := parse(raw)
		if err != nil {
			r.metrics.ObserveGeneration(stage, outcomeOf(err), elapsed)
			r.log.Debug("Unusable completion", "stage", stage, "attempt", attempt, "error", err)
			return retryIf(err)
		}
		r.metrics.ObserveGeneration(stage, metrics.OutcomeOK, elapsed)
		out = v
		return nil
	})
	return out, err
}

func (r *runner) generate(ctx context.Context, stage, prompt string) (string, time.Duration, error) {
	if r.debug {
		r.log.Debug("Prompt", "stage", stage, "text", prompt)
	}
	start := time.Now()
	raw, err := r.gen.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", elapsed, ctxErr
		}
		var up *UpstreamError
		if !errors.As(err, &up) {
			err = &UpstreamError{Err: err}
		}
		r.metrics.ObserveGeneration(stage, metrics.OutcomeUpstream, elapsed)
		r.log.Debug("Generation failed", "stage", stage, "error", err)
		return "", elapsed, err
	}
	if r.debug {
		r.log.Debug("Response", "stage", stage, "text", raw)
	}
	return raw, elapsed, nil
}

func retryIf(err error) error {
	if isRetryable(err) {
		return retry.RetryableError(err)
	}
	return err
}

func outcomeOf(err error) string {
	var mal *MalformedResponseError
	var sv *SchemaViolationError
	switch {
	case errors.As(err, &mal):
		return metrics.OutcomeMalformed
	case errors.As(err, &sv):
		return metrics.OutcomeSchema
	default:
		return metrics.OutcomeUpstream
	}
}
