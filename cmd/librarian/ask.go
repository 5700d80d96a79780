package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smhanov/librarian"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the corpus",
		Long:  "Answer a question from the corpus. Without arguments the question is read from standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" {
				var err error
				if question, err = promptQuestion(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return a.ask(cmd, question)
		},
	}
}

func promptQuestion(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter your question: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) ask(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()
	c := a.corpus()
	if err := c.Validate(); err != nil {
		return err
	}
	gen, err := a.newGenerator(ctx, a.cfg.LLMConfig())
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}

	agent := librarian.New(
		librarian.WithGenerator(gen),
		librarian.WithCorpus(c),
		librarian.WithMaxRounds(a.cfg.Agent.MaxRounds),
		librarian.WithRetryAttempts(a.cfg.Agent.RetryAttempts),
		librarian.WithRetryBackoff(a.cfg.Agent.RetryBackoff),
		librarian.WithConcurrency(a.cfg.Agent.Concurrency),
		librarian.WithLogger(a.log),
		librarian.WithMetrics(a.collector),
		librarian.WithDebug(a.cfg.Agent.Debug),
	)

	res, err := agent.Answer(ctx, question)
	out := cmd.OutOrStdout()
	if err != nil && !(errors.Is(err, librarian.ErrMaxRounds) && res.Answer != "") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Run failed (%s): %v\n", errorKind(err), err)
		printContext(cmd.ErrOrStderr(), res.Context)
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; answering with what was found.\n", err)
	}

	fmt.Fprintf(out, "Query: %s\n\n", res.Question)
	fmt.Fprintf(out, "Answer: %s\n", res.Answer)
	return nil
}

func printContext(w io.Writer, analyses []string) {
	if len(analyses) == 0 {
		return
	}
	fmt.Fprintln(w, "\nAnalyses completed before the failure:")
	for i, analysis := range analyses {
		fmt.Fprintf(w, "\n[Analysis %d]\n%s\n", i+1, analysis)
	}
}

func errorKind(err error) string {
	var (
		corpusErr *librarian.CorpusUnavailableError
		upstream  *librarian.UpstreamError
		malformed *librarian.MalformedResponseError
		schema    *librarian.SchemaViolationError
		aborted   *librarian.RunAbortedError
	)
	switch {
	case errors.As(err, &corpusErr):
		return "corpus unavailable"
	case errors.Is(err, librarian.ErrMaxRounds):
		return "round limit"
	case errors.As(err, &upstream):
		return "generation service"
	case errors.As(err, &malformed):
		return "malformed response"
	case errors.As(err, &schema):
		return "schema violation"
	case errors.As(err, &aborted):
		return "aborted"
	default:
		return "error"
	}
}
