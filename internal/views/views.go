// Package views holds the values handed to whatever renders the client:
// status text, result cards, related rows and notification lines.
package views

import (
	"net/url"
	"time"

	"docsearch/internal/models"
)

const (
	SelectFile     = "Please select a file."
	QueryTooShort  = "Please enter a longer query."
	FetchFailed    = "Unable to fetch results."
	NoDocuments    = "No documents matched"
	DownloadFailed = "Download failed"
	UploadFailed   = "Upload failed"
	UnknownError   = "Unknown error"

	NotFoundTitle = "This item is not present"
)

// NotFoundSuggestions are shown whenever a search matches nothing.
var NotFoundSuggestions = []string{
	"Check spelling or try variations (e.g. full name)",
	"Upload documents related to this person or topic",
	"Try shorter keywords (e.g. surname)",
}

func Uploading(filename string) string   { return "Uploading " + filename + "..." }
func Queued(filename string) string      { return "Indexing... (" + filename + ")" }
func Indexing(filename string) string    { return "Indexing... " + filename }
func Indexed(filename string) string     { return "Done! Indexed " + filename }
func Downloading(filename string) string { return "Downloading " + filename + "..." }
func Downloaded(filename string) string  { return "Downloaded " + filename }

// Failed renders a terminal job failure.
func Failed(msg string) string {
	if msg == "" {
		msg = UnknownError
	}
	return "Failed: " + msg
}

// Error renders a failed request.
func Error(msg string) string {
	return "Error: " + msg
}

// ResultCard is one search hit. Raw is empty unless ShowRaw is set.
type ResultCard struct {
	Heading string `json:"heading"`
	URL     string `json:"url,omitempty"`
	Clean   string `json:"clean"`
	Raw     string `json:"raw,omitempty"`
	ShowRaw bool   `json:"show_raw"`
}

// NewResultCard projects a result for display.
func NewResultCard(r models.SearchResult, showRaw bool) ResultCard {
	heading := r.Title
	if heading == "" {
		heading = r.Source
	}
	card := ResultCard{
		Heading: heading,
		URL:     r.URL,
		Clean:   r.Clean,
		ShowRaw: showRaw,
	}
	if showRaw {
		card.Raw = r.Raw
	}
	return card
}

// RelatedRow is a source document with its download trigger.
type RelatedRow struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	DownloadPath string `json:"download_path"`
}

func NewRelatedRow(f models.RelatedFile) RelatedRow {
	return RelatedRow{
		Name:         f.Name,
		Title:        f.Title,
		DownloadPath: "/api/download?filename=" + url.QueryEscape(f.Name),
	}
}

// NotFoundPanel replaces the result list when a search matches nothing.
type NotFoundPanel struct {
	Title       string   `json:"title"`
	Query       string   `json:"query"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

func NewNotFoundPanel(query string) NotFoundPanel {
	return NotFoundPanel{
		Title:       NotFoundTitle,
		Query:       query,
		Message:     `We couldn't find any documents for "` + query + `".`,
		Suggestions: append([]string(nil), NotFoundSuggestions...),
	}
}

// NotificationView is one feed line, "<local time>: <message>".
type NotificationView struct {
	When    time.Time `json:"when"`
	Message string    `json:"message"`
	Text    string    `json:"text"`
}

const notificationLayout = "1/2/2006, 3:04:05 PM"

// NewNotificationView formats n in loc; a nil loc means time.Local.
func NewNotificationView(n models.Notification, loc *time.Location) NotificationView {
	if loc == nil {
		loc = time.Local
	}
	when := n.Time.In(loc)
	stamp := "Invalid Date"
	if !n.Time.IsZero() {
		stamp = when.Format(notificationLayout)
	}
	return NotificationView{
		When:    when,
		Message: n.Message,
		Text:    stamp + ": " + n.Message,
	}
}

// Feed renders notifications newest first. The input is in arrival order.
func Feed(list []models.Notification, loc *time.Location) []NotificationView {
	out := make([]NotificationView, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, NewNotificationView(list[i], loc))
	}
	return out
}
