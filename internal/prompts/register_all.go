package prompts

import "github.com/termforge/glossary-backend/internal/taxonomy"

// Shared evaluation contract. The engine parses the JSON object below; keep
// the shape in sync with parseEvaluation in the generation engine.
const evaluationContract = `
Respond with a single JSON object and nothing else:
{"score": <integer 1-10>, "feedback": "<what is wrong or missing, specific and actionable>"}
A score of 10 means publication-ready; 1 means unusable.`

// allSpecs returns every registered triplet: bespoke triplets for the
// highest-traffic columns, plus one default triplet per category. Every
// column in the catalog must resolve through one of these.
func allSpecs() []TripletSpec {
	return []TripletSpec{
		{
			ColumnID: "introduction_definition",
			Generative: `
You are writing the opening definition for the glossary entry "{{.TermName}}".
{{if .TermShortDef}}Working definition on file: {{.TermShortDef}}{{end}}

Write 2-4 paragraphs of {{.ContentType}} that define the term precisely,
state what problem it addresses, and orient a motivated beginner. No
headings, no bullet lists, roughly {{.EstimatedTokens}} tokens.`,
			Evaluative: `
You are reviewing the "Definition and Overview" section for the glossary
entry "{{.TermName}}". Judge technical accuracy, precision of the opening
sentence, and accessibility for a motivated beginner.

CONTENT:
{{.Content}}
` + evaluationContract,
			Improvement: `
Rewrite the "Definition and Overview" section for "{{.TermName}}" applying
the reviewer feedback. Keep everything that is correct; fix only what the
feedback calls out. Return the full revised section, same format.

CURRENT CONTENT:
{{.Content}}

REVIEWER FEEDBACK:
{{.Feedback}}`,
		},
		{
			ColumnID: "how_it_works_overview",
			Generative: `
Explain how "{{.TermName}}" works, step by step, for the glossary section
"{{.ColumnTitle}}".
{{if .TermShortDef}}Definition on file: {{.TermShortDef}}{{end}}

Walk through the mechanism from input to output in {{.ContentType}} format.
Use a concrete running example. Target roughly {{.EstimatedTokens}} tokens.`,
			Evaluative: `
Review this "How It Works" explanation of "{{.TermName}}". Judge whether the
mechanism is described in correct causal order, whether the running example
is concrete, and whether a reader could re-explain it afterwards.

CONTENT:
{{.Content}}
` + evaluationContract,
			Improvement: `
Revise this "How It Works" explanation of "{{.TermName}}" applying the
reviewer feedback. Preserve the running example unless the feedback says it
is wrong. Return the full revised section.

CURRENT CONTENT:
{{.Content}}

REVIEWER FEEDBACK:
{{.Feedback}}`,
		},

		// Category defaults. Parameterized by column title/path so one
		// triplet serves every column the category contains.
		{
			Category: taxonomy.CategoryEssential,
			Generative: `
You are writing the "{{.ColumnTitle}}" section ({{.ColumnPath}}) of the
glossary entry "{{.TermName}}".
{{if .TermShortDef}}Definition on file: {{.TermShortDef}}{{end}}

This is core reading for every visitor: assume interest but not expertise.
Produce {{.ContentType}} content, factually precise, self-contained, around
{{.EstimatedTokens}} tokens. JSON and array content types must be valid
machine-readable output with no prose around it.`,
			Evaluative: `
Review the "{{.ColumnTitle}}" section of the glossary entry "{{.TermName}}".
Judge factual accuracy, completeness for a core section, and fit for the
{{.ContentType}} content type.

CONTENT:
{{.Content}}
` + evaluationContract,
			Improvement: `
Rewrite the "{{.ColumnTitle}}" section of "{{.TermName}}" applying the
reviewer feedback below. Keep the {{.ContentType}} format. Return the full
revised section only.

CURRENT CONTENT:
{{.Content}}

REVIEWER FEEDBACK:
{{.Feedback}}`,
		},
		{
			Category: taxonomy.CategoryImportant,
			Generative: `
You are writing the "{{.ColumnTitle}}" section ({{.ColumnPath}}) of the
glossary entry "{{.TermName}}".
{{if .TermShortDef}}Definition on file: {{.TermShortDef}}{{end}}

The reader already knows the basics of the term; go one level deeper with
practical detail a practitioner would use. Produce {{.ContentType}} content,
around {{.EstimatedTokens}} tokens. JSON and array content types must be
valid machine-readable output with no prose around it.`,
			Evaluative: `
Review the "{{.ColumnTitle}}" section of the glossary entry "{{.TermName}}".
Judge technical depth, practical usefulness to a practitioner, and fit for
the {{.ContentType}} content type.

CONTENT:
{{.Content}}
` + evaluationContract,
			Improvement: `
Rewrite the "{{.ColumnTitle}}" section of "{{.TermName}}" applying the
reviewer feedback below. Keep the {{.ContentType}} format. Return the full
revised section only.

CURRENT CONTENT:
{{.Content}}

REVIEWER FEEDBACK:
{{.Feedback}}`,
		},
		{
			Category: taxonomy.CategorySupplementary,
			Generative: `
You are writing the "{{.ColumnTitle}}" section ({{.ColumnPath}}) of the
glossary entry "{{.TermName}}".
{{if .TermShortDef}}Definition on file: {{.TermShortDef}}{{end}}

This is enrichment material: context, history, resources, or exercises.
Accuracy still matters; invented citations, books, or people are worse than
omissions. Produce {{.ContentType}} content, around {{.EstimatedTokens}}
tokens. JSON, array and interactive content types must be valid
machine-readable output with no prose around it.`,
			Evaluative: `
Review the "{{.ColumnTitle}}" section of the glossary entry "{{.TermName}}".
Judge factual grounding (no invented references), usefulness as enrichment,
and fit for the {{.ContentType}} content type.

CONTENT:
{{.Content}}
` + evaluationContract,
			Improvement: `
Rewrite the "{{.ColumnTitle}}" section of "{{.TermName}}" applying the
reviewer feedback below. Remove anything the feedback flags as invented.
Keep the {{.ContentType}} format. Return the full revised section only.

CURRENT CONTENT:
{{.Content}}

REVIEWER FEEDBACK:
{{.Feedback}}`,
		},
		{
			Category: taxonomy.CategoryAdvanced,
			Generative: `
You are writing the "{{.ColumnTitle}}" section ({{.ColumnPath}}) of the
glossary entry "{{.TermName}}".
{{if .TermShortDef}}Definition on file: {{.TermShortDef}}{{end}}

The reader is a researcher or senior practitioner. Cover the current state
of the art; name real papers, benchmarks, and results, and mark genuinely
open questions as open. Produce {{.ContentType}} content, around
{{.EstimatedTokens}} tokens. JSON, array and interactive content types must
be valid machine-readable output with no prose around it.`,
			Evaluative: `
Review the "{{.ColumnTitle}}" section of the glossary entry "{{.TermName}}".
Judge research-level accuracy, currency of the cited work, and fit for the
{{.ContentType}} content type. Invented citations are an automatic low score.

CONTENT:
{{.Content}}
` + evaluationContract,
			Improvement: `
Rewrite the "{{.ColumnTitle}}" section of "{{.TermName}}" applying the
reviewer feedback below. Remove any citation the feedback could not verify.
Keep the {{.ContentType}} format. Return the full revised section only.

CURRENT CONTENT:
{{.Content}}

REVIEWER FEEDBACK:
{{.Feedback}}`,
		},
	}
}
