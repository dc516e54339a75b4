package omr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoAnalyzer is reported when a Pipeline has no analyzer configured.
var ErrNoAnalyzer = errors.New("no document analyzer configured")

// Pipeline runs one document at a time through the analyzer and the
// recognition stages. It holds no per-document state and is safe for
// concurrent use by multiple goroutines.
type Pipeline struct {
	cfg      Config
	analyzer Analyzer
	log      *slog.Logger
}

func NewPipeline(cfg Config, analyzer Analyzer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, analyzer: analyzer, log: log}
}

// Config returns the recognition constants in use.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Process analyzes doc and recognizes its answer items. It never returns an
// error: any failure to obtain marks, including a cancelled ctx, yields a
// Result with Success=false and a descriptive warning.
func (p *Pipeline) Process(ctx context.Context, doc Document) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("omr pipeline panic", "panic", r)
			res = Failure(fmt.Errorf("internal error: %v", r), start)
		}
	}()

	if p.analyzer == nil {
		return Failure(ErrNoAnalyzer, start)
	}
	if err := p.cfg.Validate(); err != nil {
		return Failure(fmt.Errorf("invalid omr config: %w", err), start)
	}

	pages, err := p.analyzer.Analyze(ctx, doc)
	if err != nil {
		p.log.Warn("document analysis failed", "error", err)
		return Failure(err, start)
	}

	items := Recognize(p.cfg, pages)
	res = Aggregate(items, start)
	p.log.Debug("omr complete",
		"pages", len(pages),
		"items", len(res.Items),
		"confidence_avg", res.ConfidenceAvg,
		"duration_ms", res.ProcessingTimeMs,
	)
	return res
}
