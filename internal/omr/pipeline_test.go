package omr

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func staticAnalyzer(pages ...Page) Analyzer {
	return AnalyzerFunc(func(ctx context.Context, doc Document) ([]Page, error) {
		return pages, nil
	})
}

func rowMarks(y float64, n int, conf float64) []RawMark {
	out := make([]RawMark, n)
	for i := range out {
		out[i] = sel(float64(i*40), y, conf)
	}
	return out
}

func concat(parts ...[]RawMark) []RawMark {
	var out []RawMark
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestProcess_EmptyInput(t *testing.T) {
	cases := map[string]Analyzer{
		"no pages":     staticAnalyzer(),
		"empty page":   staticAnalyzer(Page{Number: 1}),
		"all filtered": staticAnalyzer(Page{Number: 1, SelectionMarks: rowMarks(100, 3, 0.5)}),
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewPipeline(DefaultConfig(), a, nil).Process(context.Background(), Document{})
			if !res.Success {
				t.Fatalf("expected success, warnings=%v", res.Warnings)
			}
			if res.Items == nil || len(res.Items) != 0 {
				t.Errorf("expected empty non-nil items, got %#v", res.Items)
			}
			if res.ConfidenceAvg != 0 {
				t.Errorf("expected confidenceAvg 0, got %v", res.ConfidenceAvg)
			}
			if math.IsNaN(res.ConfidenceAvg) {
				t.Error("confidenceAvg is NaN")
			}
		})
	}
}

func TestProcess_UpstreamFailure(t *testing.T) {
	a := AnalyzerFunc(func(ctx context.Context, doc Document) ([]Page, error) {
		return nil, errors.New("service unavailable")
	})
	res := NewPipeline(DefaultConfig(), a, nil).Process(context.Background(), Document{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(res.Items) != 0 || res.Items == nil {
		t.Errorf("expected empty non-nil items, got %#v", res.Items)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "service unavailable") {
		t.Errorf("expected warning with cause, got %v", res.Warnings)
	}
	if res.ConfidenceAvg != 0 {
		t.Errorf("expected confidenceAvg 0, got %v", res.ConfidenceAvg)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	a := AnalyzerFunc(func(ctx context.Context, doc Document) ([]Page, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewPipeline(DefaultConfig(), a, nil).Process(ctx, Document{})
	if res.Success {
		t.Fatal("expected failure on cancellation")
	}
	if !strings.Contains(res.Warnings[0], context.Canceled.Error()) {
		t.Errorf("expected cancellation in warning, got %v", res.Warnings)
	}
}

func TestProcess_NoAnalyzer(t *testing.T) {
	res := NewPipeline(DefaultConfig(), nil, nil).Process(context.Background(), Document{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Warnings[0], ErrNoAnalyzer.Error()) {
		t.Errorf("unexpected warning %v", res.Warnings)
	}
}

func TestProcess_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Letters = ""
	res := NewPipeline(cfg, staticAnalyzer(), nil).Process(context.Background(), Document{})
	if res.Success {
		t.Fatal("expected failure for empty alphabet")
	}
}

func TestProcess_AnalyzerPanicBecomesFailure(t *testing.T) {
	a := AnalyzerFunc(func(ctx context.Context, doc Document) ([]Page, error) {
		panic("boom")
	})
	res := NewPipeline(DefaultConfig(), a, nil).Process(context.Background(), Document{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Warnings[0], "boom") {
		t.Errorf("expected panic value in warning, got %v", res.Warnings)
	}
}

func TestProcess_IDsAreGlobalAcrossPages(t *testing.T) {
	a := staticAnalyzer(
		Page{Number: 1, SelectionMarks: concat(rowMarks(100, 2, 0.9), rowMarks(200, 4, 0.9))},
		Page{Number: 2, SelectionMarks: concat(rowMarks(100, 1, 0.9), rowMarks(200, 3, 0.9), rowMarks(300, 5, 0.9))},
	)
	res := NewPipeline(DefaultConfig(), a, nil).Process(context.Background(), Document{})
	if !res.Success {
		t.Fatalf("expected success, warnings=%v", res.Warnings)
	}
	var ids []string
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	want := []string{"P1", "P2", "P3", "P4", "P5"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected ids %v, got %v", want, ids)
	}
	wantValues := []string{"B", "D", "A", "C", "E"}
	for i, it := range res.Items {
		if it.Value != wantValues[i] {
			t.Errorf("item %s: expected value %q, got %q", it.ID, wantValues[i], it.Value)
		}
	}
	if res.Items[0].Type != TypeTrueFalse {
		t.Errorf("expected P1 to be true_false, got %q", res.Items[0].Type)
	}
}

func TestProcess_ConfidenceFloorNeverLeaks(t *testing.T) {
	marks := concat(rowMarks(100, 3, 0.9), rowMarks(300, 2, 0.5))
	marks = append(marks, sel(200, 100, 0.84))
	res := NewPipeline(DefaultConfig(), staticAnalyzer(Page{SelectionMarks: marks}), nil).
		Process(context.Background(), Document{})
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(res.Items))
	}
	if res.Items[0].Value != "C" {
		t.Errorf("low-confidence mark widened the row: value %q", res.Items[0].Value)
	}
	for _, it := range res.Items {
		if it.Confidence < 0.85 {
			t.Errorf("item %s has confidence %v below floor", it.ID, it.Confidence)
		}
	}
}

func TestProcess_AverageConfidence(t *testing.T) {
	marks := concat(rowMarks(100, 1, 0.9), rowMarks(200, 1, 0.86))
	res := NewPipeline(DefaultConfig(), staticAnalyzer(Page{SelectionMarks: marks}), nil).
		Process(context.Background(), Document{})
	if math.Abs(res.ConfidenceAvg-0.88) > 1e-9 {
		t.Errorf("expected confidenceAvg 0.88, got %v", res.ConfidenceAvg)
	}
}

func TestProcess_ItemsNeverExceedMarks(t *testing.T) {
	for n := 0; n < 30; n++ {
		var marks []RawMark
		for i := 0; i < n; i++ {
			marks = append(marks, sel(float64((i*53)%300), float64((i*29)%400), 0.86+float64(i%10)/100))
		}
		pages := []Page{{SelectionMarks: marks}}
		items := Recognize(DefaultConfig(), pages)
		rows := ClusterRows(DefaultConfig(), FilterMarks(DefaultConfig(), marks))
		if len(items) > n {
			t.Errorf("n=%d: %d items exceed marks", n, len(items))
		}
		if len(items) != len(rows) {
			t.Errorf("n=%d: %d items but %d rows", n, len(items), len(rows))
		}
	}
}

func TestProcess_Idempotent(t *testing.T) {
	page := Page{SelectionMarks: concat(rowMarks(100, 3, 0.9), rowMarks(112, 2, 0.95), rowMarks(250, 6, 0.99))}
	p := NewPipeline(DefaultConfig(), staticAnalyzer(page), nil)
	first := p.Process(context.Background(), Document{})
	second := p.Process(context.Background(), Document{})
	if !reflect.DeepEqual(first.Items, second.Items) {
		t.Errorf("expected identical items across runs:\n%v\n%v", first.Items, second.Items)
	}
	if !reflect.DeepEqual(first.Warnings, second.Warnings) {
		t.Errorf("expected identical warnings across runs")
	}
}

func TestAggregate_CollectsItemWarnings(t *testing.T) {
	items := []Item{
		{ID: "P1", Confidence: 0.9},
		{ID: "P2", Confidence: 0.9, Warnings: []string{"w"}},
	}
	res := Aggregate(items, time.Now())
	if len(res.Warnings) != 1 || res.Warnings[0] != "P2: w" {
		t.Errorf("expected collected warning, got %v", res.Warnings)
	}
}

func TestFailure_NilError(t *testing.T) {
	res := Failure(nil, time.Now())
	if res.Success || len(res.Warnings) != 1 {
		t.Errorf("unexpected failure result %+v", res)
	}
}
