// Package xpfile loads experience definitions from YAML files.
//
// Each entry under the top-level "experiences" list is checked against the
// embedded CUE schema (#Experience) before it is decoded, so structural
// mistakes (unknown fields, bad window, non-positive max) are reported with
// the entry index and id instead of surfacing later as a disabled
// experience.
package xpfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/solatis/experiences/internal/types"
)

//go:embed schema.cue
var schemaSource string

// ErrSchema indicates an entry failed schema validation.
var ErrSchema = errors.New("experience does not match schema")

// File is the on-disk layout.
type File struct {
	Experiences []types.Experience `yaml:"experiences"`
}

// EntryError locates a schema failure within a file.
type EntryError struct {
	Index int
	ID    string
	Err   error
}

func (e *EntryError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("experiences[%d]: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("experiences[%d] (%s): %v", e.Index, e.ID, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Load reads and validates the file at path.
func Load(path string) ([]types.Experience, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiences file: %w", err)
	}
	exps, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exps, nil
}

// Parse validates and decodes YAML content.
func Parse(data []byte) ([]types.Experience, error) {
	var raw struct {
		Experiences []map[string]any `yaml:"experiences"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(raw.Experiences); err != nil {
		return nil, err
	}

	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode experiences: %w", err)
	}

	seen := make(map[string]int, len(file.Experiences))
	for i, exp := range file.Experiences {
		if j, dup := seen[exp.ID]; dup {
			return nil, &EntryError{
				Index: i,
				ID:    exp.ID,
				Err:   fmt.Errorf("%w: duplicate id, first defined at experiences[%d]", ErrSchema, j),
			}
		}
		seen[exp.ID] = i
	}

	return file.Experiences, nil
}

// validate unifies each raw entry with #Experience.
// A fresh cue.Context per call keeps Parse safe for concurrent use.
func validate(entries []map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile experience schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Experience"))

	for i, entry := range entries {
		id, _ := entry["id"].(string)
		v := def.Unify(ctx.Encode(entry))
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return &EntryError{Index: i, ID: id, Err: fmt.Errorf("%w: %v", ErrSchema, err)}
		}
	}
	return nil
}
