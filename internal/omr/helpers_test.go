package omr

func ptr[T any](v T) *T { return &v }

// square returns a clockwise 10x10 polygon anchored at (x, y).
func square(x, y float64) []Point {
	return []Point{Pt(x, y), Pt(x+10, y), Pt(x+10, y+10), Pt(x, y+10)}
}

func sel(x, y, conf float64) RawMark {
	return RawMark{
		State:      ptr("selected"),
		Confidence: ptr(conf),
		Polygon:    square(x, y),
	}
}

func mk(x, y, conf float64) Mark {
	return Mark{Polygon: square(x, y), Confidence: conf, State: "selected"}
}

func refs(marks []Mark) [][2]float64 {
	out := make([][2]float64, len(marks))
	for i, m := range marks {
		out[i] = [2]float64{m.RefX(), m.RefY()}
	}
	return out
}
