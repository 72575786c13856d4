package process

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/tnpagents/processmate/pkg/errors"
)

// Format is a table serialization format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// rawStep accepts both the current field names and the legacy column names.
type rawStep struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	Kind      string `json:"kind" yaml:"kind"`
	Lane      string `json:"lane" yaml:"lane"`
	Condition string `json:"condition" yaml:"condition"`
	OnYes     string `json:"onYes" yaml:"onYes"`
	OnNo      string `json:"onNo" yaml:"onNo"`
	Tool      string `json:"tool" yaml:"tool"`

	Etape       string `json:"étape" yaml:"étape"`
	TypeBpmn    string `json:"typeBpmn" yaml:"typeBpmn"`
	Departement string `json:"département" yaml:"département"`
	Acteur      string `json:"acteur" yaml:"acteur"`
	OutputOui   string `json:"outputOui" yaml:"outputOui"`
	OutputNon   string `json:"outputNon" yaml:"outputNon"`
	Outil       string `json:"outil" yaml:"outil"`
}

type rawTable struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Steps     []rawStep `json:"steps" yaml:"steps"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func (r rawStep) step() (Step, error) {
	kind, err := ParseKind(firstNonEmpty(r.Kind, r.TypeBpmn))
	if err != nil {
		return Step{}, err
	}
	return Step{
		ID:        strings.TrimSpace(r.ID),
		Label:     firstNonEmpty(r.Label, r.Etape),
		Kind:      kind,
		Lane:      firstNonEmpty(r.Lane, r.Acteur, r.Departement),
		Condition: r.Condition,
		OnYes:     strings.TrimSpace(firstNonEmpty(r.OnYes, r.OutputOui)),
		OnNo:      strings.TrimSpace(firstNonEmpty(r.OnNo, r.OutputNon)),
		Tool:      firstNonEmpty(r.Tool, r.Outil),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Read decodes a table from r.
//
// The input is either an array of steps or an object with a "steps" array
// and an optional "title". Kinds are normalised with [ParseKind]; an unknown
// kind is an INVALID_FORMAT error naming the offending row.
//
// Read does not check references or id uniqueness. Read does not close r.
func Read(r io.Reader, format Format) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var raw rawTable
	switch format {
	case FormatYAML:
		err = decodeYAML(data, &raw)
	default:
		err = decodeJSON(data, &raw)
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode %s table", format)
	}

	t := &Table{ID: raw.ID, Title: raw.Title, UpdatedAt: raw.UpdatedAt, Steps: make([]Step, 0, len(raw.Steps))}
	for i, rs := range raw.Steps {
		s, err := rs.step()
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "row %d", i+1)
		}
		t.Steps = append(t.Steps, s)
	}
	return t, nil
}

func decodeJSON(data []byte, raw *rawTable) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &raw.Steps)
	}
	return json.Unmarshal(trimmed, raw)
}

func decodeYAML(data []byte, raw *rawTable) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		return root.Decode(&raw.Steps)
	}
	return root.Decode(raw)
}

// ReadFile decodes a table from a JSON or YAML file, choosing the format by
// extension.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "table %s", path)
		}
		return nil, err
	}
	defer f.Close()
	return Read(f, FormatFromPath(path))
}

// Write encodes t to w using the current field names.
func Write(w io.Writer, t *Table, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// WriteFile encodes t to path, choosing the format by extension.
func WriteFile(path string, t *Table) error {
	var buf bytes.Buffer
	if err := Write(&buf, t, FormatFromPath(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
