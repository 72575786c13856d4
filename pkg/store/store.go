// Package store persists process tables so the HTTP API and the CLI can
// regenerate diagrams from a saved table id.
//
// Two backends implement [Store]:
//   - file: one JSON document per table under a directory (CLI and single-node servers)
//   - mongo: a MongoDB collection (multi-instance deployments)
//
// # Usage
//
//	st, err := store.NewFileStore("")  // Uses ~/.config/processmate/processes/
//	t := &process.Table{Title: "Achats", Steps: steps}
//	if err := st.Save(ctx, t); err != nil {
//	    return err
//	}
//	// t.ID now holds the generated id
//	again, err := st.Get(ctx, t.ID)
package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// Store is the interface for process-table storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a table by id. A missing table is a NOT_FOUND error.
	Get(ctx context.Context, id string) (*process.Table, error)

	// List returns summaries of all tables, most recently updated first.
	List(ctx context.Context) ([]Summary, error)

	// Save creates or replaces a table. An empty ID is assigned a new one;
	// UpdatedAt is set to the current time.
	Save(ctx context.Context, t *process.Table) error

	// Delete removes a table. A missing table is a NOT_FOUND error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// Summary is the list view of a stored table.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title,omitempty" bson:"title,omitempty"`
	Steps     int       `json:"steps" bson:"step_count"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewTableID returns a fresh table id.
func NewTableID() string {
	return uuid.NewString()
}

// notFound builds the error returned for a missing table.
func notFound(id string) error {
	return perrors.New(perrors.ErrCodeNotFound, "process %q not found", id)
}

// prepare assigns an id and timestamp and checks the id is safe to use as
// a file name or document key.
func prepare(t *process.Table, now time.Time) error {
	if t == nil {
		return perrors.New(perrors.ErrCodeInvalidInput, "table is required")
	}
	if t.ID == "" {
		t.ID = NewTableID()
	}
	if err := perrors.ValidateProcessID(t.ID); err != nil {
		return err
	}
	t.UpdatedAt = now.UTC().Truncate(time.Millisecond)
	return nil
}

func summarize(t *process.Table) Summary {
	return Summary{ID: t.ID, Title: t.Title, Steps: len(t.Steps), UpdatedAt: t.UpdatedAt}
}

// sortSummaries orders by UpdatedAt descending, then id.
func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
