package models

// SearchResult is a single hit returned by the search endpoint.
type SearchResult struct {
	Clean  string   `json:"clean"`
	Raw    string   `json:"raw"`
	Source string   `json:"source,omitempty"`
	URL    string   `json:"url,omitempty"`
	Title  string   `json:"title,omitempty"`
	DocID  DocID    `json:"doc_id,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// RelatedFile is a source document referenced by one or more results.
type RelatedFile struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}
