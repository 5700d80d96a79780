package librarian

import "context"

// controller is the librarian: it decides, each round, whether to query
// the corpus again or to answer.
type controller struct {
	run *runner
}

// decide builds the decision prompt from the question, the corpus listing
// and every analysis so far. With final set, the prompt forbids another
// query; the model may still disobey, which the caller must handle.
func (l *controller) decide(ctx context.Context, question string, ids, analyses []string, final bool) (Decision, error) {
	prompt, err := buildDecisionPrompt(question, ids, analyses, final)
	if err != nil {
		return nil, err
	}
	return invoke(ctx, l.run, stageDecision, prompt, ParseDecision)
}
