// Package report groups enriched records into sections and renders them.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

// Options configures aggregation.
type Options struct {
	// ExcludedSections are classifier labels dropped from the report.
	ExcludedSections []string
	// SuperSections maps classifier labels to coarser groups.
	SuperSections map[string]string
	// CatchAll receives sections whose label has no super-section mapping.
	CatchAll string
}

// Section is one classifier's papers.
type Section struct {
	Label  string
	Papers []paper.Record
}

// SuperSection is a coarser group of sections.
type SuperSection struct {
	Label    string
	Sections []Section
}

// grouping is a small insertion-order preserving multimap. Section and
// super-section ordering is first-seen order over the input, never sorted,
// so recently dominant topics stay visually first downstream.
type grouping struct {
	keys  []string
	items map[string][]paper.Record
}

func newGrouping() *grouping {
	return &grouping{items: make(map[string][]paper.Record)}
}

func (g *grouping) add(key string, records ...paper.Record) {
	if _, ok := g.items[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.items[key] = append(g.items[key], records...)
}

// Aggregate groups records by their primary classifier, drops excluded
// sections, and regroups the rest into super-sections.
func Aggregate(records []paper.Record, opts Options) []SuperSection {
	excluded := make(map[string]bool, len(opts.ExcludedSections))
	for _, label := range opts.ExcludedSections {
		excluded[label] = true
	}

	sections := newGrouping()
	for _, rec := range records {
		label := strings.ToLower(rec.PrimaryClassifier())
		if label == "" {
			label = "unknown"
		}
		sections.add(label, rec)
	}

	catchAll := opts.CatchAll
	if catchAll == "" {
		catchAll = "Others"
	}

	type sectionGroup struct {
		keys     []string
		sections map[string][]Section
	}
	supers := sectionGroup{sections: make(map[string][]Section)}

	for _, label := range sections.keys {
		if excluded[label] {
			continue
		}
		group, ok := opts.SuperSections[label]
		if !ok {
			group = catchAll
		}
		if _, seen := supers.sections[group]; !seen {
			supers.keys = append(supers.keys, group)
		}
		supers.sections[group] = append(supers.sections[group], Section{Label: label, Papers: sections.items[label]})
	}

	result := make([]SuperSection, 0, len(supers.keys))
	for _, group := range supers.keys {
		result = append(result, SuperSection{Label: group, Sections: supers.sections[group]})
	}
	return result
}

// RenderMarkdown renders the grouped report as a markdown document.
func RenderMarkdown(supers []SuperSection, date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# arXiv digest %s\n\n", date.Format("2006-01-02"))

	for _, super := range supers {
		fmt.Fprintf(&b, "## %s\n\n", super.Label)
		for _, section := range super.Sections {
			fmt.Fprintf(&b, "### %s\n\n", section.Label)
			for _, p := range section.Papers {
				writePaper(&b, p)
			}
		}
	}
	return b.String()
}

func writePaper(b *strings.Builder, p paper.Record) {
	fmt.Fprintf(b, "[%s](%s)\n\n", p.Title, p.PDFURL)
	if len(p.Keywords) > 0 {
		fmt.Fprintf(b, "**Keywords:** %s\n\n", strings.Join(p.Keywords, ", "))
	}
	if p.Comments != "" {
		fmt.Fprintf(b, "**Comments:** %s\n\n", p.Comments)
	}
	if p.TLDR != "" {
		fmt.Fprintf(b, "**TL;DR:** %s\n\n", p.TLDR)
	}
}
