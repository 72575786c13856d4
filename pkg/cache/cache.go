// Package cache stores generated diagrams and previews keyed by the content
// of the step table and the options that produced them.
//
// Three backends implement [Cache]:
//   - [FileCache]: one JSON file per entry, grouped by kind (CLI default)
//   - [RedisCache]: a shared Redis instance (server deployments)
//   - [NullCache]: caching disabled
//
// Keys are built by a [Keyer] so that the CLI and the HTTP server agree on
// them. [ScopedKeyer] prefixes keys for multi-tenant isolation.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Entry kinds. A key's kind is the segment before its hash.
const (
	KindDiagram = "diagram"
	KindPreview = "preview"
	KindOther   = "other"
)

// KindOf returns the kind named by key, ignoring any scope prefix.
func KindOf(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) >= 2 {
		switch k := parts[len(parts)-2]; k {
		case KindDiagram, KindPreview:
			return k
		}
	}
	return KindOther
}

// Time-to-live for each kind of entry.
const (
	TTLDiagram = 7 * 24 * time.Hour
	TTLPreview = 7 * 24 * time.Hour
)

// =============================================================================
// Keys
// =============================================================================

// Keyer derives cache keys.
type Keyer interface {
	// DiagramKey identifies a generated BPMN document.
	DiagramKey(tableHash string, opts DiagramKeyOpts) string

	// PreviewKey identifies a rendered Graphviz preview.
	PreviewKey(tableHash string, opts PreviewKeyOpts) string
}

// DiagramKeyOpts are the generation options that change the XML output.
type DiagramKeyOpts struct {
	Title      string `json:"title"`
	NoColors   bool   `json:"no_colors"`
	Strict     bool   `json:"strict"`
	ConfigHash string `json:"config_hash"` // hash of the layout geometry
}

// PreviewKeyOpts are the preview options that change the rendered output.
type PreviewKeyOpts struct {
	Format   string `json:"format"`
	Title    string `json:"title"`
	NoColors bool   `json:"no_colors"`
}

// DefaultKeyer builds keys of the form "kind:sha256(parts)".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// DiagramKey implements Keyer.
func (DefaultKeyer) DiagramKey(tableHash string, opts DiagramKeyOpts) string {
	return hashKey(KindDiagram, tableHash, opts)
}

// PreviewKey implements Keyer.
func (DefaultKeyer) PreviewKey(tableHash string, opts PreviewKeyOpts) string {
	return hashKey(KindPreview, tableHash, opts)
}

// NullCache never stores anything. It backs --no-cache and the "none"
// backend so the pipeline always regenerates.
type NullCache struct{}

// NewNullCache returns a cache that always misses.
func NewNullCache() Cache { return &NullCache{} }

// Get always misses.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards data.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
