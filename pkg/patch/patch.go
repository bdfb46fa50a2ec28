// Package patch writes per-request overrides into a workflow document at
// declared key paths.
package patch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/347255699/comfystyle/pkg/types"
)

var (
	ErrPathNotFound = errors.New("path not found in workflow")
	ErrInvalidPath  = errors.New("invalid field path")
)

const (
	FieldPositive       = "positive"
	FieldNegative       = "negative"
	FieldSeed           = "seed"
	FieldFilenamePrefix = "filename_prefix"
)

// Schema maps a field name to a dotted path such as "4.inputs.text".
type Schema map[string]string

// DefaultSchema is only correct for templates whose graph uses these node ids:
// 3 = sampler, 4 = positive text encoder, 6 = negative text encoder,
// 9 = image saver. Any other topology needs its own schema.
func DefaultSchema() Schema {
	return Schema{
		FieldPositive:       "4.inputs.text",
		FieldNegative:       "6.inputs.text",
		FieldSeed:           "3.inputs.seed",
		FieldFilenamePrefix: "9.inputs.filename_prefix",
	}
}

// Validate checks that every path has at least a node and a key segment.
func (s Schema) Validate() error {
	for field, path := range s {
		if _, err := splitPath(path); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}

// Overrides holds the per-request values. Zero values leave the template alone.
type Overrides struct {
	Positive       string
	Negative       string
	Seed           *int64
	FilenamePrefix string
}

func (o Overrides) values() map[string]interface{} {
	vals := make(map[string]interface{}, 4)
	if o.Positive != "" {
		vals[FieldPositive] = o.Positive
	}
	if o.Negative != "" {
		vals[FieldNegative] = o.Negative
	}
	if o.Seed != nil {
		vals[FieldSeed] = *o.Seed
	}
	if o.FilenamePrefix != "" {
		vals[FieldFilenamePrefix] = o.FilenamePrefix
	}
	return vals
}

// Apply returns a patched copy of doc; doc itself is not modified.
func Apply(doc types.Document, schema Schema, o Overrides) (types.Document, error) {
	vals := o.values()
	out := doc.Clone()

	// sorted so the first reported error is stable
	fields := make([]string, 0, len(vals))
	for f := range vals {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		path, ok := schema[field]
		if !ok {
			return nil, fmt.Errorf("%w: field %q has no path in schema", ErrPathNotFound, field)
		}
		if err := Set(out, path, vals[field]); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
	}
	return out, nil
}

// Set writes value at path in doc. Every segment but the last must exist and
// be an object; the last one is created if absent.
func Set(doc types.Document, path string, value interface{}) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	cur := map[string]interface{}(doc)
	for i, seg := range parts[:len(parts)-1] {
		next, ok := cur[seg]
		if !ok {
			return fmt.Errorf("%w: %s (missing %q)", ErrPathNotFound, path, strings.Join(parts[:i+1], "."))
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: %s (%q is %T, not an object)", ErrPathNotFound, path, strings.Join(parts[:i+1], "."), next)
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Get reads the value at path.
func Get(doc types.Document, path string) (interface{}, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	var cur interface{} = map[string]interface{}(doc)
	for i, seg := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s (%q is not an object)", ErrPathNotFound, path, strings.Join(parts[:i], "."))
		}
		if cur, ok = m[seg]; !ok {
			return nil, fmt.Errorf("%w: %s (missing %q)", ErrPathNotFound, path, strings.Join(parts[:i+1], "."))
		}
	}
	return cur, nil
}

func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q, want node.inputs.key", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return parts, nil
}
