package librarian

// Decision is the Librarian's choice for a round: either a QueryDecision or
// an AnswerDecision. The set of variants is closed.
type Decision interface {
	decision()
}

// QueryDecision asks for another retrieval round.
type QueryDecision struct {
	Query  string
	Reason string
}

// AnswerDecision ends the run.
type AnswerDecision struct {
	Answer string
	Reason string
}

func (QueryDecision) decision()  {}
func (AnswerDecision) decision() {}

const (
	actionQuery  = "query"
	actionAnswer = "answer"
)
