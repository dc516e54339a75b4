package omr

import (
	"time"
)

// Recognize runs filter, clustering and classification over every page in
// order and returns the items in discovery order.
func Recognize(cfg Config, pages []Page) []Item {
	cls := NewClassifier(cfg)
	var items []Item
	for _, page := range pages {
		marks := FilterMarks(cfg, page.SelectionMarks)
		for _, row := range ClusterRows(cfg, marks) {
			items = append(items, cls.Classify(row))
		}
	}
	return items
}

// Aggregate assembles a successful Result. Item warnings are collected into
// the result warnings, prefixed by item ID.
func Aggregate(items []Item, start time.Time) Result {
	res := Result{
		Success:  true,
		Items:    items,
		Warnings: []string{},
	}
	if res.Items == nil {
		res.Items = []Item{}
	}

	var sum float64
	for _, it := range res.Items {
		sum += it.Confidence
		for _, w := range it.Warnings {
			res.Warnings = append(res.Warnings, it.ID+": "+w)
		}
	}
	if n := len(res.Items); n > 0 {
		res.ConfidenceAvg = sum / float64(n)
	}
	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res
}

// Failure builds the terminal result for a document whose marks could not
// be obtained.
func Failure(err error, start time.Time) Result {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Success:          false,
		Items:            []Item{},
		Warnings:         []string{"OMR error: " + msg},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}
