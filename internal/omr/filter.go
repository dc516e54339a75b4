package omr

import (
	"cmp"
	"math"
	"slices"
)

const stateSelected = "selected"

// FilterMarks admits reliable selection marks from one page and returns them
// normalized and in reading order. Rejected candidates are dropped silently.
//
// Admission and normalization are separate passes: admit enforces presence
// and threshold rules, and only admitted marks receive defaults.
func FilterMarks(cfg Config, candidates []RawMark) []Mark {
	marks := make([]Mark, 0, len(candidates))
	for _, c := range candidates {
		if !admit(cfg, c) {
			continue
		}
		marks = append(marks, normalize(c))
	}
	sortMarks(marks, cfg.SortTolerance)
	return marks
}

func admit(cfg Config, m RawMark) bool {
	if m.State == nil || *m.State != stateSelected {
		return false
	}
	if m.Confidence == nil || *m.Confidence < cfg.ConfidenceFloor {
		return false
	}
	if len(m.Polygon) < 3 {
		return false
	}
	return m.Polygon[0].Complete()
}

func normalize(m RawMark) Mark {
	out := Mark{
		Polygon: slices.Clone(m.Polygon),
		State:   stateSelected,
	}
	if m.Confidence != nil {
		out.Confidence = *m.Confidence
	}
	if m.State != nil {
		out.State = *m.State
	}
	return out
}

// sortMarks orders marks top to bottom, treating references closer than tol
// vertically as the same line and ordering those left to right. The
// comparator is not transitive across chains of near rows; a stable sort
// keeps the outcome deterministic for a given input order.
func sortMarks(marks []Mark, tol float64) {
	slices.SortStableFunc(marks, func(a, b Mark) int {
		if math.Abs(a.RefY()-b.RefY()) < tol {
			return cmp.Compare(a.RefX(), b.RefX())
		}
		return cmp.Compare(a.RefY(), b.RefY())
	})
}
