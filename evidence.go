package librarian

import "context"

// evidenceExtractor turns each relevant document into a group of cited
// entries. Pairs whose extraction cannot be parsed are dropped.
type evidenceExtractor struct {
	run         *runner
	concurrency int
}

// extract returns one group per successful pair, in input order. Groups
// with no entries are kept.
func (e *evidenceExtractor) extract(ctx context.Context, pairs []RelevantPair) ([]EvidenceGroup, error) {
	return fanOut(ctx, e.concurrency, pairs, func(ctx context.Context, pair RelevantPair) (EvidenceGroup, bool) {
		id := pair.Document.ID
		prompt, err := buildExtractionPrompt(pair)
		if err != nil {
			e.run.log.Warn("Dropping document", "stage", stageEvidence, "document", id, "error", err)
			e.run.metrics.ObserveDrop(stageEvidence)
			return EvidenceGroup{}, false
		}
		entries, err := invoke(ctx, e.run, stageEvidence, prompt, ParseExtraction)
		if err != nil {
			if ctx.Err() == nil {
				e.run.log.Warn("Dropping document", "stage", stageEvidence, "document", id, "error", err)
				e.run.metrics.ObserveDrop(stageEvidence)
			}
			return EvidenceGroup{}, false
		}
		e.run.log.Debug("Extracted evidence", "document", id, "entries", len(entries))
		return EvidenceGroup{DocumentID: id, Entries: entries}, true
	})
}
