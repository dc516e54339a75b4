// Package omr reconstructs answer-sheet structure from selection marks
// reported by a document-analysis service.
//
// A document flows through four stages: marks are filtered and normalized,
// grouped into rows by vertical proximity, each row is classified into an
// answer item, and the items are aggregated into a single Result.
package omr

import (
	"context"
)

// Point is a polygon vertex. Either coordinate may be absent in the
// detector payload.
type Point struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// Pt builds a Point with both coordinates present.
func Pt(x, y float64) Point {
	return Point{X: &x, Y: &y}
}

// Complete reports whether both coordinates are present.
func (p Point) Complete() bool {
	return p.X != nil && p.Y != nil
}

// RawMark is a selection-mark candidate exactly as the detector reported it.
type RawMark struct {
	State      *string  `json:"state,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Polygon    []Point  `json:"polygon"`
}

// Page is one analyzed page of a document.
type Page struct {
	Number         int       `json:"pageNumber"`
	SelectionMarks []RawMark `json:"selectionMarks"`
}

// Mark is a RawMark that passed admission. Its reference point (first
// polygon vertex) always has both coordinates.
type Mark struct {
	Polygon    []Point
	Confidence float64
	State      string
}

// RefX is the horizontal coordinate of the reference point.
func (m Mark) RefX() float64 { return *m.Polygon[0].X }

// RefY is the vertical coordinate of the reference point.
func (m Mark) RefY() float64 { return *m.Polygon[0].Y }

// Row holds the marks believed to answer one question. The first element is
// the row's representative.
type Row []Mark

// ItemType is the classified kind of an answer item.
type ItemType string

const (
	TypeMultipleChoice ItemType = "multiple_choice"
	TypeTrueFalse      ItemType = "true_false"
	TypePairing        ItemType = "pairing"
	TypeUnknown        ItemType = "unknown"
)

// Item is one recognized answer.
type Item struct {
	ID         string     `json:"id"`
	Type       ItemType   `json:"type"`
	Value      string     `json:"value,omitempty"`
	Raw        string     `json:"raw"` // reserved; always empty
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// Result is the terminal outcome for one document. Success is false only
// when marks could not be obtained at all.
type Result struct {
	Success          bool     `json:"success"`
	Items            []Item   `json:"items"`
	Warnings         []string `json:"warnings"`
	ConfidenceAvg    float64  `json:"confidenceAvg"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

// Document is the payload submitted to the analyzer.
type Document struct {
	Data        []byte
	ContentType string
}

// Analyzer obtains selection marks for a document. Implementations talk to
// the external document-analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document) ([]Page, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, doc Document) ([]Page, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, doc Document) ([]Page, error) {
	return f(ctx, doc)
}
