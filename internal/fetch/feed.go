package fetch

import "strings"

// feed is the subset of the arXiv Atom response the fetcher reads. Tags are
// unqualified so the opensearch and arxiv namespace extensions match by
// local name.
type feed struct {
	TotalResults int     `xml:"totalResults"`
	StartIndex   int     `xml:"startIndex"`
	Entries      []entry `xml:"entry"`
}

type entry struct {
	ID              string     `xml:"id"`
	Title           string     `xml:"title"`
	Published       string     `xml:"published"`
	Updated         string     `xml:"updated"`
	Summary         string     `xml:"summary"`
	Authors         []author   `xml:"author"`
	Links           []link     `xml:"link"`
	Comment         string     `xml:"comment"`
	JournalRef      string     `xml:"journal_ref"`
	DOI             string     `xml:"doi"`
	PrimaryCategory category   `xml:"primary_category"`
	Categories      []category `xml:"category"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type category struct {
	Term string `xml:"term,attr"`
}

// pdfURL returns the entry's PDF link, or "" when the entry has none.
func (e *entry) pdfURL() string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return ""
}

// itemID derives the corpus item name from an Atom entry id: the last path
// segment with any version suffix stripped, so http://arxiv.org/abs/2401.12345v2
// becomes 2401.12345.
func itemID(entryID string) string {
	id := entryID[strings.LastIndex(entryID, "/")+1:]
	if i := strings.LastIndex(id, "v"); i > 0 && allDigits(id[i+1:]) {
		id = id[:i]
	}
	return id
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Metadata is the per-item acquisition record persisted as metadata.json.
type Metadata struct {
	ArxivID         string   `json:"arxiv_id"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	Published       string   `json:"published"`
	Updated         string   `json:"updated"`
	Summary         string   `json:"summary"`
	Comment         string   `json:"comment"`
	JournalRef      string   `json:"journal_ref"`
	DOI             string   `json:"doi"`
	PrimaryCategory string   `json:"primary_category"`
	Categories      []string `json:"categories"`
	Links           []string `json:"links"`
	PDFURL          string   `json:"pdf_url"`
}

func metadataFor(id string, e entry) Metadata {
	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}
	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, c.Term)
	}
	links := make([]string, 0, len(e.Links))
	for _, l := range e.Links {
		links = append(links, l.Href)
	}
	return Metadata{
		ArxivID:         id,
		Title:           strings.TrimSpace(e.Title),
		Authors:         authors,
		Published:       e.Published,
		Updated:         e.Updated,
		Summary:         strings.TrimSpace(e.Summary),
		Comment:         e.Comment,
		JournalRef:      e.JournalRef,
		DOI:             e.DOI,
		PrimaryCategory: e.PrimaryCategory.Term,
		Categories:      categories,
		Links:           links,
		PDFURL:          e.pdfURL(),
	}
}
