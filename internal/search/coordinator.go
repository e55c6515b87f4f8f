package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"docsearch/internal/events"
	"docsearch/internal/models"
	"docsearch/internal/views"
)

const DefaultMinQueryLength = 3

// Searcher runs a query against the service.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Publisher receives search.done events.
type Publisher interface {
	Publish(events.Event) events.Event
}

// OutcomeKind tells the renderer which panel to draw.
type OutcomeKind string

const (
	OutcomeTooShort OutcomeKind = "too_short"
	OutcomeNotFound OutcomeKind = "not_found"
	OutcomeResults  OutcomeKind = "results"
)

// Outcome is everything a search produces for display. Related is nil and
// Placeholder set when no result named a source document.
type Outcome struct {
	Kind        OutcomeKind           `json:"kind"`
	Query       string                `json:"query"`
	Status      string                `json:"status,omitempty"`
	Cards       []views.ResultCard    `json:"cards,omitempty"`
	Related     []views.RelatedRow    `json:"related,omitempty"`
	Placeholder string                `json:"placeholder,omitempty"`
	NotFound    *views.NotFoundPanel  `json:"not_found,omitempty"`
	Results     []models.SearchResult `json:"-"`
}

// Coordinator issues queries and keeps the related-file list of the last
// successful search.
type Coordinator struct {
	searcher Searcher
	bus      Publisher
	minLen   int

	mu      sync.RWMutex
	related []models.RelatedFile
}

func NewCoordinator(searcher Searcher, bus Publisher, minQueryLength int) *Coordinator {
	if minQueryLength <= 0 {
		minQueryLength = DefaultMinQueryLength
	}
	return &Coordinator{searcher: searcher, bus: bus, minLen: minQueryLength}
}

// Search runs query. A short query is answered locally; a transport error is
// returned as is and leaves the previous related list in place.
func (c *Coordinator) Search(ctx context.Context, query string, showRaw bool) (Outcome, error) {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < c.minLen {
		return Outcome{Kind: OutcomeTooShort, Query: query, Status: views.QueryTooShort}, nil
	}

	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		return Outcome{}, fmt.Errorf("search %q: %w", query, err)
	}

	var out Outcome
	if len(results) == 0 {
		panel := views.NewNotFoundPanel(query)
		out = Outcome{Kind: OutcomeNotFound, Query: query, NotFound: &panel}
		c.setRelated(nil)
	} else {
		out = Outcome{Kind: OutcomeResults, Query: query, Results: results}
		out.Cards = make([]views.ResultCard, 0, len(results))
		for _, r := range results {
			out.Cards = append(out.Cards, views.NewResultCard(r, showRaw))
		}
		related := FoldRelated(results)
		if len(related) == 0 {
			out.Placeholder = views.NoDocuments
		} else {
			out.Related = make([]views.RelatedRow, 0, len(related))
			for _, f := range related {
				out.Related = append(out.Related, views.NewRelatedRow(f))
			}
		}
		c.setRelated(related)
	}

	c.bus.Publish(events.Event{
		Kind:    events.KindSearchDone,
		Query:   query,
		Message: fmt.Sprintf("%d results", len(results)),
	})
	return out, nil
}

// Related returns the related files of the last successful search.
func (c *Coordinator) Related() []models.RelatedFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.related
}

func (c *Coordinator) setRelated(list []models.RelatedFile) {
	c.mu.Lock()
	c.related = list
	c.mu.Unlock()
}

// FoldRelated dedupes result sources. Each source keeps the title of its last
// occurrence and its first-seen position; results without a source are skipped.
func FoldRelated(results []models.SearchResult) []models.RelatedFile {
	index := make(map[string]int, len(results))
	var out []models.RelatedFile
	for _, r := range results {
		if r.Source == "" {
			continue
		}
		title := r.Title
		if title == "" {
			title = r.Source
		}
		if i, ok := index[r.Source]; ok {
			out[i].Title = title
			continue
		}
		index[r.Source] = len(out)
		out = append(out, models.RelatedFile{Name: r.Source, Title: title})
	}
	return out
}
