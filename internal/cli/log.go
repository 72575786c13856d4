package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tnpagents/processmate/pkg/pipeline"
)

// newLogger returns the CLI logger. Timestamps are wall-clock with
// hundredths ("14:32:01.45"), enough to follow a batch run.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// batchReport tallies a multi-table generate run. Workers record their
// results concurrently; summary logs a single line at the end.
type batchReport struct {
	logger *log.Logger
	start  time.Time

	mu        sync.Mutex
	diagrams  int
	cached    int
	fallbacks int // tables with at least one fallback branch
}

func newBatchReport(l *log.Logger) *batchReport {
	return &batchReport{logger: l, start: time.Now()}
}

func (b *batchReport) record(res *pipeline.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.diagrams++
	if res.CacheInfo.DiagramHit {
		b.cached++
	}
	if res.Diagnostics.FallbackBranches > 0 {
		b.fallbacks++
	}
}

// summary logs e.g. "Generated 3 diagrams cached=1 with_fallbacks=0 elapsed=12ms".
func (b *batchReport) summary() {
	b.mu.Lock()
	defer b.mu.Unlock()
	noun := "diagrams"
	if b.diagrams == 1 {
		noun = "diagram"
	}
	b.logger.Info(fmt.Sprintf("Generated %d %s", b.diagrams, noun),
		"cached", b.cached,
		"with_fallbacks", b.fallbacks,
		"elapsed", time.Since(b.start).Round(time.Millisecond))
}

type loggerKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// withInput tags the context logger with the table being processed, so
// the lines of concurrent batch workers can be told apart.
func withInput(ctx context.Context, input string) context.Context {
	return withLogger(ctx, loggerFromContext(ctx).With("input", input))
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if ctx == nil {
		return log.Default()
	}
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
