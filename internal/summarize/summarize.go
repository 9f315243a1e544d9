// Package summarize enriches paper records with an LLM-generated
// summary/keyword/classifier triple.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/arxivdigest/arxivdigest/internal/llm"
	"github.com/arxivdigest/arxivdigest/internal/paper"
)

const promptTemplate = `Title:
%s

Abstract:
%s

You are a research assistant tasked with analyzing and categorizing AI research papers. Please analyze this paper and provide:

1. A concise TL;DR summary (1-3 sentences) capturing the main contribution and significance.

2. 3-5 relevant keywords using general technical terms (avoid specific model names).

3. Classify this paper into exactly ONE of these categories: %s
   Choose the most specific category that applies. Select 'others' only if none fit.

Important guidelines:
- For TL;DR, focus on technical contributions and innovations, not just applications
- For keywords, use standardized full technical terms, no abbreviations
- Select only ONE classifier that best represents the paper's primary focus

Format your response EXACTLY as follows:
TL;DR: [your summary]
Keywords: [comma-separated keywords]
Classifier: single classifier`

// errClassifier marks a record whose summarization failed entirely.
const errClassifier = "error"

// Reply is the parsed structure of a model response.
type Reply struct {
	TLDR        string
	Keywords    []string
	Classifiers []string
}

// ParseReply extracts the TL;DR / Keywords / Classifier fields from a model
// reply using line markers. A missing marker leaves its field at the zero
// value; a markerless reply parses to an empty Reply without error.
func ParseReply(text string) Reply {
	var r Reply

	if _, rest, ok := strings.Cut(text, "TL;DR:"); ok {
		tldr, _, _ := strings.Cut(rest, "Keywords:")
		r.TLDR = strings.TrimSpace(tldr)
	}
	if _, rest, ok := strings.Cut(text, "Keywords:"); ok {
		keywords, _, _ := strings.Cut(rest, "Classifier:")
		r.Keywords = splitTrimmed(keywords)
	}
	if _, rest, ok := strings.Cut(text, "Classifier:"); ok {
		r.Classifiers = splitTrimmed(rest)
	}
	return r
}

func splitTrimmed(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Result holds the outcome of a summarization run.
type Result struct {
	Processed int
	Failed    int
}

// Summarizer sends each record through a completion provider and attaches
// the parsed triple.
type Summarizer struct {
	provider    llm.Provider
	classifiers []string
}

// New creates a summarizer with the closed classifier vocabulary used in the
// prompt.
func New(provider llm.Provider, classifiers []string) *Summarizer {
	return &Summarizer{provider: provider, classifiers: classifiers}
}

// Summarize enriches one record. On any failure (transport, timeout, empty
// reply) the record comes back with empty tldr/keywords and classifiers set
// to ["error"] so it still appears in the output with deterministic fields.
func (s *Summarizer) Summarize(ctx context.Context, rec paper.Record) paper.Record {
	reply, err := s.complete(ctx, rec)
	if err != nil {
		log.Printf("Summarizing paper %s: %v", rec.ID, err)
		rec.TLDR = ""
		rec.Keywords = nil
		rec.Classifiers = []string{errClassifier}
		return rec
	}

	rec.TLDR = reply.TLDR
	rec.Keywords = reply.Keywords
	rec.Classifiers = reply.Classifiers
	return rec
}

func (s *Summarizer) complete(ctx context.Context, rec paper.Record) (Reply, error) {
	prompt := fmt.Sprintf(promptTemplate, rec.Title, rec.Abstract, strings.Join(s.classifiers, ", "))

	text, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		return Reply{}, err
	}
	return ParseReply(text), nil
}

// SummarizeBatch enriches every record in the batch sequentially, category by
// category in the given order. One record's failure never aborts the run.
func (s *Summarizer) SummarizeBatch(ctx context.Context, batch paper.Batch, order []string) Result {
	var r Result
	for _, category := range order {
		records := batch[category]
		if len(records) == 0 {
			continue
		}
		log.Printf("Summarizing %d papers in category %s with model %s", len(records), category, s.provider.Model())

		for i := range records {
			records[i] = s.Summarize(ctx, records[i])
			if records[i].PrimaryClassifier() == errClassifier {
				r.Failed++
			}
			r.Processed++
		}
	}
	return r
}
