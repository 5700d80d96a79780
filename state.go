package librarian

import (
	"fmt"
	"strings"
)

type phase int

const (
	phaseAwaitDecision phase = iota
	phaseQueryRound
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseAwaitDecision:
		return "await_decision"
	case phaseQueryRound:
		return "query_round"
	case phaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// runState is the mutable state of a single Answer call. Only the Agent
// touches it; stages receive copies of what they need.
type runState struct {
	question string
	context  []string
	rounds   int
	phase    phase

	// Transient, replaced every round.
	subQuery string
	pairs    []RelevantPair
	evidence []EvidenceGroup

	answer string
}

func newRunState(question string) *runState {
	return &runState{question: strings.TrimSpace(question), phase: phaseAwaitDecision}
}

// beginRound clears the previous round's transient fields.
func (s *runState) beginRound(query string) {
	s.subQuery = query
	s.pairs = nil
	s.evidence = nil
	s.phase = phaseQueryRound
}

// completeRound appends the round's analysis and returns to decision.
func (s *runState) completeRound(analysis string) {
	s.context = append(s.context, analysis)
	s.rounds++
	s.phase = phaseAwaitDecision
}

func (s *runState) finish(answer string) {
	s.answer = answer
	s.phase = phaseDone
}

// snapshot returns a copy of the context that later rounds cannot alter.
func (s *runState) snapshot() []string {
	out := make([]string, len(s.context))
	copy(out, s.context)
	return out
}
