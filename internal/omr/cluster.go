package omr

import "math"

// ClusterRows groups sorted marks into rows. Each mark joins the first row,
// in creation order, whose representative lies strictly within
// cfg.RowTolerance vertically; otherwise it opens a new row.
//
// This is first-fit, not nearest-fit: a mark within tolerance of two rows
// attaches to the older one. The linear scan is O(rows) per mark, which is
// fine at answer-sheet scale.
func ClusterRows(cfg Config, marks []Mark) []Row {
	var rows []Row
	for _, m := range marks {
		y := m.RefY()
		placed := false
		for i := range rows {
			if math.Abs(rows[i][0].RefY()-y) < cfg.RowTolerance {
				rows[i] = append(rows[i], m)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, Row{m})
		}
	}
	return rows
}
