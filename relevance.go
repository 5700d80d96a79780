package librarian

import "context"

// relevanceFilter asks the generator whether each document bears on the
// sub-query. Judgments are advisory: a document whose judgment cannot be
// obtained is dropped rather than failing the round.
type relevanceFilter struct {
	run         *runner
	concurrency int
}

// filter returns the documents judged relevant, in input order.
func (f *relevanceFilter) filter(ctx context.Context, query string, docs []Document) ([]RelevantPair, error) {
	return fanOut(ctx, f.concurrency, docs, func(ctx context.Context, doc Document) (RelevantPair, bool) {
		prompt, err := buildRelevancePrompt(query, doc)
		if err != nil {
			f.run.log.Warn("Dropping document", "stage", stageRelevance, "document", doc.ID, "error", err)
			f.run.metrics.ObserveDrop(stageRelevance)
			return RelevantPair{}, false
		}
		relevant, err := invoke(ctx, f.run, stageRelevance, prompt, ParseJudgment)
		if err != nil {
			if ctx.Err() == nil {
				f.run.log.Warn("Dropping document", "stage", stageRelevance, "document", doc.ID, "error", err)
				f.run.metrics.ObserveDrop(stageRelevance)
			}
			return RelevantPair{}, false
		}
		if !relevant {
			return RelevantPair{}, false
		}
		f.run.log.Debug("Document is relevant", "document", doc.ID)
		return RelevantPair{Query: query, Document: doc}, true
	})
}
