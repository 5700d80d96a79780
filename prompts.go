package librarian

import (
	"bytes"
	"encoding/json"
	"text/template"
)

// Stage names used in logs, metrics and RunAbortedError.
const (
	stageDecision  = "decision"
	stageRetrieval = "retrieval"
	stageRelevance = "relevance"
	stageEvidence  = "evidence"
	stageSynthesis = "synthesis"
)

const decisionTemplate = `Given question: {{.Question}}
List of files in datastore:
{{range .Documents}}- {{.}}
{{else}}(no files)
{{end}}
Previous datastore analysis results:
{{range $i, $a := .Context}}[Analysis {{inc $i}}]
{{$a}}

{{else}}(none yet)
{{end}}
{{if .Final}}You have reached the limit on datastore queries. You MUST answer now with the knowledge you have, using "action": "answer". If the results are insufficient, say so in the answer.
{{else}}Should I: 1) Request an analysis of the datastore with a specific query to get more information 2) Answer with current knowledge?

Stick to specific queries that fill gaps in the previous results; you can request further information on later iterations. Focus on atomic questions that can be combined into an answer.

For example:
Question: Compare the mental health of Dr. Frankenstein and Bartleby
query: What do Dr. Frankenstein's words and actions say about his mental health?
[NEXT ITERATION]
query: What do Bartleby's words and actions say about his mental health?
{{end}}
Output your response as a JSON object within a ` + "```json" + ` code block. The JSON object must have the keys "action" and "reason". If the action is "query", include "query" with the specific question to analyze. If the action is "answer", include "answer" with the full answer to the given question.

` + "```json" + `
{
  "action": "query or answer",
  "reason": "why this action",
  "query": "specific question to analyze in the datastore, if querying",
  "answer": "full answer to the given question, if answering"
}
` + "```\n"

const relevanceTemplate = `Given document name: {{.Document.ID}}
Given document contents:
{{.Document.Content}}

With query: {{.Query}}
Is this document at all relevant to the query? If even one piece of information could plausibly help answer the query, it is relevant.

Output your response as a JSON object within a ` + "```json" + ` code block. The JSON object should have a single key: "relevant".

` + "```json" + `
{
  "relevant": true
}
` + "```\n"

const extractionTemplate = `Given document name: {{.Document.ID}}
Given document contents:
{{.Document.Content}}

With query: {{.Query}}
Transcribe whatever parts of the contents could be useful to answer the query.

Paraphrase or excise content using brackets around your edits where necessary for brevity or clarity. IE: "Today [we] are going to shower, eat breakfast, [...] and then go to bed." Prefer separate entries over glossing several details together.

Do not be afraid to copy text that is only part of an answer; citations from many sources will be combined into an analysis later.

Explain the evidence in the "reason" field. Example entry for the query "Why is the sky blue?":
{"content": "The sky is blue because of how the air scatters blue light.", "reason": "This explains why the sky is blue scientifically"}

If you can't make any entries, an empty entries list is fine.

Output your response as a JSON object within a ` + "```json" + ` code block. The JSON object should have a single key "entries", a list of objects each with "content" and "reason" keys.

` + "```json" + `
{
  "entries": [
    {"content": "String", "reason": "String"}
  ]
}
` + "```\n"

const synthesisTemplate = `Given document excerpts:
{{.Evidence}}

With query: {{.Query}}

Write a concise analysis answering the query, or explaining why an answer isn't clear or available from the excerpts you have. When you use a citation, put the document name in parentheses at the end of the sentence.
`

var (
	tmplDecision   = mustTemplate("decision", decisionTemplate)   //nolint:gochecknoglobals
	tmplRelevance  = mustTemplate("relevance", relevanceTemplate) //nolint:gochecknoglobals
	tmplExtraction = mustTemplate("extraction", extractionTemplate)
	tmplSynthesis  = mustTemplate("synthesis", synthesisTemplate)
)

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(text))
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func buildDecisionPrompt(question string, ids, analyses []string, final bool) (string, error) {
	return renderTemplate(tmplDecision, map[string]any{
		"Question":  question,
		"Documents": ids,
		"Context":   analyses,
		"Final":     final,
	})
}

func buildRelevancePrompt(query string, doc Document) (string, error) {
	return renderTemplate(tmplRelevance, map[string]any{"Query": query, "Document": doc})
}

func buildExtractionPrompt(pair RelevantPair) (string, error) {
	return renderTemplate(tmplExtraction, map[string]any{"Query": pair.Query, "Document": pair.Document})
}

func buildSynthesisPrompt(query string, groups []EvidenceGroup) (string, error) {
	evidence := "(no excerpts were found)"
	if len(groups) > 0 {
		b, err := json.MarshalIndent(groups, "", "  ")
		if err != nil {
			return "", err
		}
		evidence = string(b)
	}
	return renderTemplate(tmplSynthesis, map[string]any{"Query": query, "Evidence": evidence})
}
