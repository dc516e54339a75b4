package omr

import (
	"cmp"
	"fmt"
	"slices"
)

// Classifier turns rows into items. Its counter is shared by every row of a
// document, across pages, so a document must use exactly one Classifier.
type Classifier struct {
	cfg     Config
	letters []string
	next    int
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:     cfg,
		letters: cfg.letters(),
		next:    1,
	}
}

// Classify converts one non-empty row into an item.
func (c *Classifier) Classify(row Row) Item {
	sorted := slices.Clone(row)
	slices.SortStableFunc(sorted, func(a, b Mark) int {
		return cmp.Compare(a.RefX(), b.RefX())
	})

	item := Item{
		ID:         fmt.Sprintf("%s%d", c.cfg.IDPrefix, c.next),
		Type:       classifyType(len(sorted)),
		Confidence: minConfidence(sorted),
		BBox:       rowBBox(sorted),
	}
	c.next++

	idx := len(sorted) - 1
	if last := len(c.letters) - 1; idx > last {
		idx = last
		item.Warnings = append(item.Warnings,
			fmt.Sprintf("row has %d marks; value saturated at %s", len(sorted), c.letters[last]))
	}
	item.Value = c.letters[idx]

	if item.BBox[2] < 0 || item.BBox[3] < 0 {
		item.Warnings = append(item.Warnings, "bounding box has negative extent")
	}
	return item
}

func classifyType(n int) ItemType {
	if n == 2 {
		return TypeTrueFalse
	}
	return TypeMultipleChoice
}

func minConfidence(marks []Mark) float64 {
	lo := marks[0].Confidence
	for _, m := range marks[1:] {
		lo = min(lo, m.Confidence)
	}
	return lo
}

// rowBBox spans from the first mark's reference point to the last mark's
// third vertex. The box is advisory: inconsistent vertex order in the
// detector output can yield negative width or height.
func rowBBox(marks []Mark) [4]float64 {
	x0, y0 := marks[0].RefX(), marks[0].RefY()

	poly := marks[len(marks)-1].Polygon
	end := poly[len(poly)-1]
	if len(poly) > 2 {
		end = poly[2]
	}
	x1, y1 := x0, y0
	if end.X != nil {
		x1 = *end.X
	}
	if end.Y != nil {
		y1 = *end.Y
	}
	return [4]float64{x0, y0, x1 - x0, y1 - y0}
}
