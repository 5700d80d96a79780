package librarian

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smhanov/librarian/logger"
	"github.com/smhanov/librarian/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instrumentedRunner(gen GenerationClient, reg *prometheus.Registry) *runner {
	return &runner{
		gen:      gen,
		attempts: defaultRetryAttempts,
		backoff:  time.Millisecond,
		log:      logger.Discard(),
		metrics:  metrics.New(reg),
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRelevanceFilter(t *testing.T) {
	t.Run("Should drop a document whose judgment never validates", func(t *testing.T) {
		llm := &scriptedLLM{relevance: func(prompt string) (string, error) {
			if docName(prompt) == "doc2.txt" {
				return "```json\n{\"relevant\": \"maybe\"}\n```", nil
			}
			return "```json\n{\"relevant\": true}\n```", nil
		}}
		reg := prometheus.NewRegistry()
		f := &relevanceFilter{run: instrumentedRunner(llm, reg), concurrency: 2}

		pairs, err := f.filter(context.Background(), "Q1", threeDocs().docs)

		require.NoError(t, err)
		require.Len(t, pairs, 2)
		assert.Equal(t, "doc1.txt", pairs[0].Document.ID)
		assert.Equal(t, "notes/doc3.txt", pairs[1].Document.ID)
		assert.Equal(t, "Q1", pairs[0].Query)
		assert.Equal(t, 5, llm.calls(stageRelevance))
		assert.Equal(t, 1.0, counterValue(t, reg, "librarian_advisory_drops_total", map[string]string{"stage": stageRelevance}))
		assert.Equal(t, 3.0, counterValue(t, reg, "librarian_generation_calls_total",
			map[string]string{"stage": stageRelevance, "outcome": metrics.OutcomeSchema}))
	})

	t.Run("Should keep input order under concurrency", func(t *testing.T) {
		docs := make([]Document, 12)
		for i := range docs {
			docs[i] = Document{ID: fmt.Sprintf("doc%02d.txt", i), Content: "x"}
		}
		llm := &scriptedLLM{relevance: func(prompt string) (string, error) {
			time.Sleep(time.Duration(len(docName(prompt))%3) * time.Millisecond)
			return "```json\n{\"relevant\": true}\n```", nil
		}}
		f := &relevanceFilter{run: testRunner(llm), concurrency: 4}

		pairs, err := f.filter(context.Background(), "Q", docs)

		require.NoError(t, err)
		require.Len(t, pairs, len(docs))
		for i, p := range pairs {
			assert.Equal(t, docs[i].ID, p.Document.ID)
		}
	})

	t.Run("Should return nothing for an empty corpus", func(t *testing.T) {
		llm := &scriptedLLM{}
		f := &relevanceFilter{run: testRunner(llm), concurrency: 4}

		pairs, err := f.filter(context.Background(), "Q", nil)

		require.NoError(t, err)
		assert.Empty(t, pairs)
		assert.Equal(t, 0, llm.calls(stageRelevance))
	})
}

func TestEvidenceExtractor(t *testing.T) {
	llm := &scriptedLLM{extract: func(prompt string) (string, error) {
		switch docName(prompt) {
		case "doc1.txt":
			return "```json\n{\"entries\": [{\"content\": \"Bartleby [...] prefers not to.\", \"reason\": \"his refrain\"}]}\n```", nil
		case "doc2.txt":
			return "```json\n{\"entries\": []}\n```", nil
		default:
			return "", errors.New("connection reset")
		}
	}}
	docs := threeDocs().docs
	pairs := []RelevantPair{
		{Query: "Q", Document: docs[0]},
		{Query: "Q", Document: docs[1]},
		{Query: "Q", Document: docs[2]},
	}
	e := &evidenceExtractor{run: testRunner(llm), concurrency: 3}

	groups, err := e.extract(context.Background(), pairs)

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, EvidenceGroup{
		DocumentID: "doc1.txt",
		Entries:    []EvidenceEntry{{Content: "Bartleby [...] prefers not to.", Reason: "his refrain"}},
	}, groups[0])
	assert.Equal(t, "doc2.txt", groups[1].DocumentID)
	assert.NotNil(t, groups[1].Entries)
	assert.Empty(t, groups[1].Entries)
	assert.Equal(t, 3+2, llm.calls(stageEvidence))
}

func TestSynthesizer(t *testing.T) {
	llm := &scriptedLLM{synth: []string{"<think>draft</think>\n  Final analysis (doc1.txt).  "}}
	s := &synthesizer{run: testRunner(llm)}

	out, err := s.synthesize(context.Background(), "Q", []EvidenceGroup{{DocumentID: "doc1.txt", Entries: []EvidenceEntry{}}})

	require.NoError(t, err)
	assert.Equal(t, "Final analysis (doc1.txt).", out)
	assert.Contains(t, llm.prompt(stageSynthesis, 0), `"entries": []`)
}

func TestFanOut(t *testing.T) {
	t.Run("Should bound the calls in flight", func(t *testing.T) {
		var inFlight, peak int32
		items := make([]int, 20)
		for i := range items {
			items[i] = i
		}

		out, err := fanOut(context.Background(), 3, items, func(_ context.Context, n int) (int, bool) {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return n * 2, n%2 == 0
		})

		require.NoError(t, err)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
		assert.Len(t, out, 10)
		assert.Equal(t, 0, out[0])
		assert.Equal(t, 36, out[9])
	})

	t.Run("Should report cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := int32(0)

		_, err := fanOut(ctx, 2, []int{1, 2, 3}, func(context.Context, int) (int, bool) {
			atomic.AddInt32(&calls, 1)
			return 0, true
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	})
}

func TestInvokeDoesNotRetryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})

	_, err := invoke(ctx, testRunner(gen), stageDecision, "p", ParseDecision)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPrompts(t *testing.T) {
	t.Run("Should list documents and number analyses", func(t *testing.T) {
		p, err := buildDecisionPrompt("Q?", []string{"a.txt", "b/c.txt"}, []string{"first", "second"}, false)
		require.NoError(t, err)
		assert.Contains(t, p, "Given question: Q?")
		assert.Contains(t, p, "- a.txt\n- b/c.txt\n")
		assert.Contains(t, p, "[Analysis 1]\nfirst")
		assert.Contains(t, p, "[Analysis 2]\nsecond")
		assert.NotContains(t, p, "limit on datastore queries")
	})

	t.Run("Should forbid queries in the final decision", func(t *testing.T) {
		p, err := buildDecisionPrompt("Q?", nil, nil, true)
		require.NoError(t, err)
		assert.Contains(t, p, "(no files)")
		assert.Contains(t, p, "limit on datastore queries")
		assert.NotContains(t, p, "[NEXT ITERATION]")
	})

	t.Run("Should embed the document and query", func(t *testing.T) {
		doc := Document{ID: "notes/a.txt", Content: "alpha {{ not a template }}"}
		p, err := buildRelevancePrompt("what?", doc)
		require.NoError(t, err)
		assert.Equal(t, "notes/a.txt", docName(p))
		assert.Contains(t, p, "alpha {{ not a template }}")
		assert.Contains(t, p, "With query: what?")

		p, err = buildExtractionPrompt(RelevantPair{Query: "what?", Document: doc})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(p, "Given document name: notes/a.txt\n"))
		assert.Contains(t, p, markEvidence)
	})
}

func TestRunState(t *testing.T) {
	s := newRunState("  Q  ")
	assert.Equal(t, "Q", s.question)
	assert.Equal(t, phaseAwaitDecision, s.phase)

	s.beginRound("sub")
	s.pairs = []RelevantPair{{Query: "sub"}}
	s.evidence = []EvidenceGroup{{DocumentID: "x"}}
	s.completeRound("A1")
	snap := s.snapshot()

	s.beginRound("sub2")
	assert.Nil(t, s.pairs)
	assert.Nil(t, s.evidence)
	assert.Equal(t, "query_round", s.phase.String())

	s.completeRound("A2")
	assert.Equal(t, []string{"A1"}, snap)
	assert.Equal(t, []string{"A1", "A2"}, s.context)
	assert.Equal(t, 2, s.rounds)

	s.finish("done")
	assert.Equal(t, "done", s.phase.String())
	assert.Equal(t, "done", s.answer)
}
