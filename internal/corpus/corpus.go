// Package corpus loads captured citation documents: one snapshot of a
// user's papers with per-year citation counts and the instant the counts
// were scraped.
package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/text/unicode/norm"
)

// CaptureTimeLayout renders instants with an explicit numeric offset, so a
// "Z"-suffixed input is echoed as +00:00.
const CaptureTimeLayout = "2006-01-02T15:04:05-07:00"

// Document is one captured snapshot of a user's papers.
type Document struct {
	UserID    string  `json:"user_id"`
	ScrapedAt string  `json:"scraped_at"`
	Papers    []Paper `json:"papers"`
}

// Paper is a single paper's captured citation record. CitationsByYear maps
// 4-digit decimal year keys to counts; TotalCitations is the producer's own
// figure, checked against the per-year sum but never trusted over it.
type Paper struct {
	Title           string             `json:"title"`
	TotalCitations  float64            `json:"total_citations"`
	CitationsByYear map[string]float64 `json:"citations_by_year"`
}

// Load reads a capture document from path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture document: %w", err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode reads a capture document from r. Titles are NFC-normalized on the
// way in so downstream identity (logs, reports) does not depend on the
// Unicode representation the producer happened to emit.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode capture document: %w", err)
	}
	for i := range doc.Papers {
		doc.Papers[i].Title = norm.NFC.String(doc.Papers[i].Title)
	}
	return &doc, nil
}

// CaptureTime parses the document's scraped_at instant. The value must be
// ISO-8601 with a zone: either a trailing "Z" or an explicit offset. All
// series in a document share this one instant, so a parse failure is fatal
// for the whole run.
func (d *Document) CaptureTime() (time.Time, error) {
	return ParseCaptureTime(d.ScrapedAt)
}

// ParseCaptureTime parses an ISO-8601 capture timestamp. A trailing "Z" is
// accepted and normalized to an explicit zero offset.
func ParseCaptureTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse capture timestamp %q: %w", value, err)
	}
	return t, nil
}

// TotalMismatch compares the per-year counts against the captured
// total_citations figure. A disagreement above half a citation is reported
// as a warning by callers and the per-year breakdown stays the ground
// truth; processing never stops over it.
func (p *Paper) TotalMismatch() (yearSum float64, mismatch bool) {
	for _, c := range p.CitationsByYear {
		yearSum += c
	}
	return yearSum, math.Abs(yearSum-p.TotalCitations) > 0.5
}
