package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tnpagents/processmate/pkg/bpmn/layout"
	"github.com/tnpagents/processmate/pkg/bpmn/route"
	"github.com/tnpagents/processmate/pkg/cache"
	"github.com/tnpagents/processmate/pkg/observability"
	"github.com/tnpagents/processmate/pkg/process"
)

// Runner encapsulates generation with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cachedDiagram is the cache payload for a generated diagram.
type cachedDiagram struct {
	XML         string         `json:"xml"`
	Layout      *layout.Layout `json:"layout"`
	Paths       []route.Path   `json:"paths"`
	Diagnostics Diagnostics    `json:"diagnostics"`
	Stats       Stats          `json:"stats"`
}

// Generate is a convenience wrapper around GenerateWithCacheInfo.
func (r *Runner) Generate(ctx context.Context, steps []process.Step, opts Options) (*Result, error) {
	return r.GenerateWithCacheInfo(ctx, steps, opts)
}

// GenerateWithCacheInfo runs [Generate] behind the diagram cache. The cache
// key covers the step table, the title, colour and strict flags and the
// layout geometry; result.CacheInfo reports whether it hit.
func (r *Runner) GenerateWithCacheInfo(ctx context.Context, steps []process.Step, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	hooks.OnGenerateStart(ctx, len(steps))
	start := time.Now()

	cacheKey, keyErr := r.diagramKey(steps, opts)
	if keyErr == nil && !opts.Refresh {
		if res, ok := r.cachedResult(ctx, cacheKey, opts); ok {
			observability.Cache().OnCacheHit(ctx, cache.KindDiagram)
			r.logResult(opts, res, true)
			hooks.OnGenerateComplete(ctx, len(steps), res.Diagnostics.FallbackBranches, time.Since(start), nil)
			return res, nil
		}
		observability.Cache().OnCacheMiss(ctx, cache.KindDiagram)
	}

	res, err := Generate(steps, opts)
	if err != nil {
		hooks.OnGenerateComplete(ctx, len(steps), 0, time.Since(start), err)
		return nil, err
	}
	hooks.OnGenerateComplete(ctx, len(steps), res.Diagnostics.FallbackBranches, time.Since(start), nil)
	r.logResult(opts, res, false)

	if keyErr == nil {
		if data, err := marshalCached(res); err == nil {
			r.store(ctx, cacheKey, data, cache.TTLDiagram, opts)
		}
	}
	return res, nil
}

// PreviewWithCacheInfo renders a Graphviz preview behind the cache and
// reports whether it hit.
func (r *Runner) PreviewWithCacheInfo(ctx context.Context, steps []process.Step, opts Options) ([]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	tableHash, keyErr := cache.HashJSON(steps)
	cacheKey := r.Keyer.PreviewKey(tableHash, cache.PreviewKeyOpts{
		Format:   opts.PreviewFormat,
		Title:    opts.Title,
		NoColors: opts.NoColors,
	})

	if keyErr == nil && !opts.Refresh {
		if data, hit := r.lookup(ctx, cacheKey, opts); hit {
			observability.Cache().OnCacheHit(ctx, cache.KindPreview)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, cache.KindPreview)
	}

	hooks := observability.Pipeline()
	hooks.OnPreviewStart(ctx, opts.PreviewFormat)
	start := time.Now()
	out, err := Preview(ctx, steps, opts)
	hooks.OnPreviewComplete(ctx, opts.PreviewFormat, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	opts.Logger.Info("rendered preview",
		"format", opts.PreviewFormat,
		"bytes", len(out),
		"duration", time.Since(start))

	if keyErr == nil {
		r.store(ctx, cacheKey, out, cache.TTLPreview, opts)
	}
	return out, false, nil
}

// Preview is a convenience wrapper that calls PreviewWithCacheInfo and discards the cache hit info.
func (r *Runner) Preview(ctx context.Context, steps []process.Step, opts Options) ([]byte, error) {
	out, _, err := r.PreviewWithCacheInfo(ctx, steps, opts)
	return out, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func (r *Runner) diagramKey(steps []process.Step, opts Options) (string, error) {
	tableHash, err := cache.HashJSON(steps)
	if err != nil {
		return "", err
	}
	configHash, err := cache.HashJSON(opts.Layout)
	if err != nil {
		return "", err
	}
	return r.Keyer.DiagramKey(tableHash, cache.DiagramKeyOpts{
		Title:      opts.Title,
		NoColors:   opts.NoColors,
		Strict:     opts.Strict,
		ConfigHash: configHash,
	}), nil
}

// lookup reads key from the cache. A failing backend reads as a miss so
// that generation carries on without it.
func (r *Runner) lookup(ctx context.Context, key string, opts Options) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		opts.Logger.Warn("cache unavailable, regenerating", "kind", cache.KindOf(key), "err", err)
		return nil, false
	}
	return data, hit
}

// store writes data under key. Write failures are logged and dropped.
func (r *Runner) store(ctx context.Context, key string, data []byte, ttl time.Duration, opts Options) {
	kind := cache.KindOf(key)
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		level := log.DebugLevel
		if cache.IsTransient(err) {
			level = log.WarnLevel
		}
		opts.Logger.Log(level, "cache write failed", "kind", kind, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, kind, len(data))
}

func (r *Runner) cachedResult(ctx context.Context, key string, opts Options) (*Result, bool) {
	data, hit := r.lookup(ctx, key, opts)
	if !hit {
		return nil, false
	}
	var c cachedDiagram
	if err := json.Unmarshal(data, &c); err != nil || c.Layout == nil {
		// Written by an incompatible version; drop it so the fresh result replaces it.
		opts.Logger.Debug("discarding unreadable cached diagram", "err", err)
		_ = r.Cache.Delete(ctx, key)
		return nil, false
	}
	c.Layout.Config = opts.Layout
	return &Result{
		XML:         c.XML,
		Layout:      c.Layout,
		Paths:       c.Paths,
		Diagnostics: c.Diagnostics,
		Stats:       c.Stats,
		CacheInfo:   CacheInfo{DiagramHit: true},
	}, true
}

func marshalCached(res *Result) ([]byte, error) {
	return json.Marshal(cachedDiagram{
		XML:         res.XML,
		Layout:      res.Layout,
		Paths:       res.Paths,
		Diagnostics: res.Diagnostics,
		Stats:       res.Stats,
	})
}

func (r *Runner) logResult(opts Options, res *Result, hit bool) {
	opts.Logger.Info("generated diagram",
		"steps", res.Stats.StepCount,
		"lanes", res.Stats.LaneCount,
		"flows", res.Stats.FlowCount,
		"cached", hit)
	if n := res.Diagnostics.FallbackBranches; n > 0 {
		opts.Logger.Warn(FallbackMessage(n))
	}
	for _, ig := range res.Diagnostics.Ignored {
		opts.Logger.Debug("ignored reference", "step", ig.StepID, "branch", ig.Branch, "ref", ig.Ref, "reason", ig.Reason)
	}
}
