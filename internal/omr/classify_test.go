package omr

import (
	"strings"
	"testing"
)

func rowOf(n int) Row {
	row := make(Row, n)
	for i := range row {
		row[i] = mk(float64(i*30), 100, 0.9)
	}
	return row
}

func TestClassify_ConfidenceIsMinimum(t *testing.T) {
	cls := NewClassifier(DefaultConfig())
	item := cls.Classify(Row{mk(0, 0, 0.9), mk(30, 0, 0.99), mk(60, 0, 0.86)})
	if item.Confidence != 0.86 {
		t.Errorf("expected confidence 0.86, got %v", item.Confidence)
	}
}

func TestClassify_TypeByMarkCount(t *testing.T) {
	cases := []struct {
		marks int
		want  ItemType
	}{
		{1, TypeMultipleChoice},
		{2, TypeTrueFalse},
		{3, TypeMultipleChoice},
		{4, TypeMultipleChoice},
		{5, TypeMultipleChoice},
	}
	for _, tc := range cases {
		cls := NewClassifier(DefaultConfig())
		if got := cls.Classify(rowOf(tc.marks)).Type; got != tc.want {
			t.Errorf("%d marks: expected %q, got %q", tc.marks, tc.want, got)
		}
	}
}

func TestClassify_LetterSaturates(t *testing.T) {
	cases := []struct {
		marks    int
		want     string
		warnings int
	}{
		{1, "A", 0},
		{3, "C", 0},
		{6, "F", 0},
		{7, "F", 1},
		{12, "F", 1},
	}
	for _, tc := range cases {
		cls := NewClassifier(DefaultConfig())
		item := cls.Classify(rowOf(tc.marks))
		if item.Value != tc.want {
			t.Errorf("%d marks: expected value %q, got %q", tc.marks, tc.want, item.Value)
		}
		if len(item.Warnings) != tc.warnings {
			t.Errorf("%d marks: expected %d warnings, got %v", tc.marks, tc.warnings, item.Warnings)
		}
	}
}

func TestClassify_CustomAlphabet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Letters = "VF"
	cls := NewClassifier(cfg)
	if got := cls.Classify(rowOf(5)).Value; got != "F" {
		t.Errorf("expected saturation at %q, got %q", "F", got)
	}
}

func TestClassify_IDsAreSequential(t *testing.T) {
	cls := NewClassifier(DefaultConfig())
	for _, want := range []string{"P1", "P2", "P3"} {
		if got := cls.Classify(rowOf(1)).ID; got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestClassify_BBoxFromExtremeMarks(t *testing.T) {
	cls := NewClassifier(DefaultConfig())
	// Arrival order differs from x order; the classifier re-sorts.
	item := cls.Classify(Row{mk(50, 100, 0.9), mk(10, 102, 0.9), mk(30, 101, 0.9)})
	want := [4]float64{10, 102, 50, 8}
	if item.BBox != want {
		t.Errorf("expected bbox %v, got %v", want, item.BBox)
	}
}

func TestClassify_BBoxFallsBackToFirstPoint(t *testing.T) {
	last := mk(50, 100, 0.9)
	last.Polygon[2].X = nil
	cls := NewClassifier(DefaultConfig())
	item := cls.Classify(Row{mk(10, 100, 0.9), last})
	if item.BBox[2] != 0 {
		t.Errorf("expected zero width when x is missing, got %v", item.BBox[2])
	}
	if item.BBox[3] != 10 {
		t.Errorf("expected height 10, got %v", item.BBox[3])
	}
}

func TestClassify_NegativeBBoxIsFlagged(t *testing.T) {
	last := mk(50, 100, 0.9)
	// Counter-clockwise polygon: third vertex lies above the reference.
	last.Polygon = []Point{Pt(50, 100), Pt(50, 80), Pt(40, 80)}
	cls := NewClassifier(DefaultConfig())
	item := cls.Classify(Row{mk(10, 100, 0.9), last})
	if item.BBox[3] >= 0 {
		t.Fatalf("expected negative height, got %v", item.BBox[3])
	}
	found := false
	for _, w := range item.Warnings {
		if strings.Contains(w, "negative") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected negative-extent warning, got %v", item.Warnings)
	}
}

func TestClassify_DoesNotReorderRow(t *testing.T) {
	row := Row{mk(50, 100, 0.9), mk(10, 100, 0.9)}
	NewClassifier(DefaultConfig()).Classify(row)
	if row[0].RefX() != 50 {
		t.Error("classifier reordered the caller's row")
	}
}
