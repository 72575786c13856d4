package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileCache keeps one JSON file per entry, grouped by the kind of output
// the key names:
//
//	<dir>/diagram/<h[:2]>/<h[2:]>.json
//	<dir>/preview/<h[:2]>/<h[2:]>.json
//
// Entries are written to a temporary file and renamed into place, so
// concurrent batch workers never read a partial entry.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache opens (and creates if needed) a file cache rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, backendError("file", "open", "", err)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// fileEntry is the on-disk form of one entry. Key is stored so that a
// hash collision or a file moved by hand reads as a miss.
type fileEntry struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

func (e *fileEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get implements Cache. Expired, corrupt and mismatched entries are
// removed and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendError("file", "get", key, err)
	}

	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.Key != key || e.expired(c.now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set implements Cache.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := c.now()
	e := fileEntry{Key: key, Kind: KindOf(key), CreatedAt: now, Data: data}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return backendError("file", "set", key, err)
	}
	return backendError("file", "set", key, writeAtomic(c.path(key), raw))
}

func writeAtomic(path string, raw []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Delete implements Cache.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return backendError("file", "delete", key, err)
}

// Close implements Cache.
func (c *FileCache) Close() error { return nil }

// Dir returns the cache root.
func (c *FileCache) Dir() string { return c.dir }

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, KindOf(key), h[:2], h[2:]+".json")
}

// Usage summarises the entries of one kind.
type Usage struct {
	Kind    string
	Entries int
	Expired int
	Bytes   int64
}

// Stats reports usage per kind, sorted by kind. Kinds with no entries are
// omitted.
func (c *FileCache) Stats() ([]Usage, error) {
	byKind := map[string]*Usage{}
	now := c.now()
	err := c.walk("", func(kind, path string, info fs.FileInfo, e *fileEntry) error {
		u := byKind[kind]
		if u == nil {
			u = &Usage{Kind: kind}
			byKind[kind] = u
		}
		u.Entries++
		u.Bytes += info.Size()
		if e == nil || e.expired(now) {
			u.Expired++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Usage, 0, len(byKind))
	for _, u := range byKind {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

// Prune removes expired and unreadable entries and returns how many went.
func (c *FileCache) Prune() (int, error) {
	n := 0
	now := c.now()
	err := c.walk("", func(_, path string, _ fs.FileInfo, e *fileEntry) error {
		if e != nil && !e.expired(now) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// Clear removes every entry of kind, or every entry when kind is empty,
// and returns how many were removed.
func (c *FileCache) Clear(kind string) (int, error) {
	n := 0
	if err := c.walk(kind, func(string, string, fs.FileInfo, *fileEntry) error {
		n++
		return nil
	}); err != nil {
		return 0, err
	}
	root := c.dir
	if kind != "" {
		root = filepath.Join(c.dir, kind)
	}
	if err := os.RemoveAll(root); err != nil {
		return 0, backendError("file", "clear", "", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return 0, backendError("file", "clear", "", err)
	}
	return n, nil
}

// walk visits every entry file below kind (all kinds when empty). e is nil
// when the file cannot be decoded. Temporary files are skipped.
func (c *FileCache) walk(kind string, fn func(kind, path string, info fs.FileInfo, e *fileEntry) error) error {
	root := c.dir
	if kind != "" {
		root = filepath.Join(c.dir, kind)
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(c.dir, path)
		k, _, _ := strings.Cut(filepath.ToSlash(rel), "/")

		var e *fileEntry
		if raw, err := os.ReadFile(path); err == nil {
			var decoded fileEntry
			if json.Unmarshal(raw, &decoded) == nil && decoded.Key != "" {
				e = &decoded
			}
		}
		return fn(k, path, info, e)
	})
	return backendError("file", "walk", "", err)
}

var _ Cache = (*FileCache)(nil)
