// Package pipeline orchestrates one collection run for a single target date.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/archive"
	"github.com/arxivdigest/arxivdigest/internal/config"
	"github.com/arxivdigest/arxivdigest/internal/dedupe"
	"github.com/arxivdigest/arxivdigest/internal/llm"
	"github.com/arxivdigest/arxivdigest/internal/paper"
	"github.com/arxivdigest/arxivdigest/internal/report"
	"github.com/arxivdigest/arxivdigest/internal/source"
	"github.com/arxivdigest/arxivdigest/internal/store"
	"github.com/arxivdigest/arxivdigest/internal/summarize"
	"github.com/arxivdigest/arxivdigest/internal/window"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Date  time.Time
	Steps []StepResult
}

// Failed reports whether any step ended with an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline runs the collect -> dedupe -> summarize -> report sequence.
// Execution is sequential and single-threaded; per-category and per-record
// failures are logged and absorbed, only the window configuration error is
// fatal.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	db       *archive.DB
	provider llm.Provider
}

// New creates a pipeline. The completion provider is built here from config
// so a misconfigured backend fails before any fetch.
func New(cfg *config.Config, st *store.Store, db *archive.DB) (*Pipeline, error) {
	provider, err := newProvider(cfg.Summarization)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, store: st, db: db, provider: provider}, nil
}

func newProvider(summ config.Summarization) (llm.Provider, error) {
	backend := llm.Backend(summ.Backend)
	opts := llm.Options{
		Timeout:   time.Duration(summ.TimeoutSeconds) * time.Second,
		MaxTokens: summ.MaxTokens,
	}
	switch backend {
	case llm.BackendOllama:
		opts.Model = summ.Model
		opts.BaseURL = summ.OllamaURL
	case llm.BackendOpenAI:
		opts.Model = summ.OpenAIModel
		opts.BaseURL = summ.OpenAIBaseURL
		opts.KeyEnv = summ.APIKeyEnv
	}
	return llm.New(backend, opts)
}

// NewSource builds the configured source adapter for a target date. The
// window is computed here; a weekend date surfaces window.ErrNoSchedule
// before anything is fetched.
func NewSource(cfg *config.Config, targetDate time.Time) (source.Source, error) {
	switch cfg.Source {
	case "api", "":
		win, err := window.Compute(targetDate)
		if err != nil {
			return nil, err
		}
		log.Printf("Acceptance window: %s to %s", win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339))
		return source.NewAPISource(win, cfg.Categories, cfg.MaxResults), nil
	case "scrape":
		if _, err := window.Compute(targetDate); err != nil {
			return nil, err
		}
		return source.NewScrapeSource(targetDate, cfg.MaxResults), nil
	case "rss":
		if _, err := window.Compute(targetDate); err != nil {
			return nil, err
		}
		return source.NewRSSSource(cfg.Categories), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// Run executes the full pipeline for one target date.
func (p *Pipeline) Run(ctx context.Context, targetDate time.Time) *Result {
	r := &Result{Date: targetDate}

	// Step 1: Collect (window computation aborts here on weekends).
	log.Println("Step 1/4: Collecting papers...")
	src, err := NewSource(p.cfg, targetDate)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r
	}
	batch := source.NewCollector(src, p.cfg.Categories).Collect(ctx)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Retrieved %d papers across %d categories from %s", batch.Count(), len(p.cfg.Categories), src.Name()),
	})

	// Step 2: Dedupe and snapshot before summarization.
	log.Println("Step 2/4: Removing duplicates...")
	before := batch.Count()
	batch = dedupe.IntraBatch(batch, p.cfg.Categories)
	batch = dedupe.CrossRun(batch, targetDate, p.store)
	if err := p.store.Save(targetDate, batch); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Dedupe", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Dedupe",
		Summary: fmt.Sprintf("%d papers remain (%d duplicates removed)", batch.Count(), before-batch.Count()),
	})

	// Step 3: Summarize and snapshot again.
	log.Println("Step 3/4: Summarizing papers...")
	summarizer := summarize.New(p.provider, p.cfg.Report.Classifiers)
	sumResult := summarizer.SummarizeBatch(ctx, batch, p.cfg.Categories)
	if err := p.store.Save(targetDate, batch); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Summarize", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Summarize",
		Summary: fmt.Sprintf("Summarized %d papers, %d failed", sumResult.Processed, sumResult.Failed),
	})

	// Step 4: Report.
	log.Println("Step 4/4: Generating reports...")
	step := p.runReport(targetDate, batch, src.Name(), sumResult.Failed)
	r.Steps = append(r.Steps, step)
	return r
}

// runReport renders the markdown and HTML reports and records the run in the
// archive. The optional curated selection file narrows what gets rendered.
func (p *Pipeline) runReport(targetDate time.Time, batch paper.Batch, sourceName string, failed int) StepResult {
	records := batch.Flatten(p.cfg.Categories)

	selected, err := p.store.LoadSelected(targetDate)
	if err != nil {
		log.Printf("Reading selection file: %v (rendering all papers)", err)
	}
	records = store.FilterSelected(records, selected)

	supers := report.Aggregate(records, report.Options{
		ExcludedSections: p.cfg.Report.ExcludedSections,
		SuperSections:    p.cfg.Report.SuperSections,
		CatchAll:         p.cfg.Report.CatchAllSection,
	})

	markdown := report.RenderMarkdown(supers, targetDate)
	if err := report.WriteMarkdown(p.store.ReportPath(targetDate, "md"), supers, targetDate); err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	if err := report.WriteHTML(p.store.ReportPath(targetDate, "html"), supers, targetDate); err != nil {
		return StepResult{Name: "Report", Err: err}
	}

	if p.db != nil {
		if err := p.db.RecordRun(targetDate, sourceName, batch, failed, markdown); err != nil {
			log.Printf("Recording run in archive: %v", err)
		}
	}

	return StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("Rendered %d papers into %d sections", len(records), len(supers)),
	}
}

// Rebuild regenerates reports from an already persisted batch without
// refetching, optionally re-running summarization first.
func (p *Pipeline) Rebuild(ctx context.Context, targetDate time.Time, resummarize bool) *Result {
	r := &Result{Date: targetDate}

	batch, err := p.store.Load(targetDate)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Load", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Loaded %d papers from %s", batch.Count(), p.store.Path(targetDate)),
	})

	// Keep the collected run's metadata; regenerating a report must not
	// rewrite where the papers came from or how many summaries failed.
	sourceName := "persisted"
	failed := 0
	if p.db != nil {
		if run, err := p.db.GetRun(targetDate.Format("2006-01-02")); err == nil && run != nil {
			sourceName = run.Source
			failed = run.Failed
		}
	}
	if resummarize {
		summarizer := summarize.New(p.provider, p.cfg.Report.Classifiers)
		sumResult := summarizer.SummarizeBatch(ctx, batch, p.cfg.Categories)
		failed = sumResult.Failed
		if err := p.store.Save(targetDate, batch); err != nil {
			r.Steps = append(r.Steps, StepResult{Name: "Summarize", Err: err})
			return r
		}
		r.Steps = append(r.Steps, StepResult{
			Name:    "Summarize",
			Summary: fmt.Sprintf("Summarized %d papers, %d failed", sumResult.Processed, failed),
		})
	}

	r.Steps = append(r.Steps, p.runReport(targetDate, batch, sourceName, failed))
	return r
}
