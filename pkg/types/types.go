package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/template"
)

// ErrTemplate marks a workflow template that could not be read or decoded.
var ErrTemplate = errors.New("workflow template")

// Document is a workflow graph as the server understands it: node id to node
// definition. Nothing beyond the patched paths is interpreted here.
type Document map[string]interface{}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case Document:
		return Document(cloneValue(map[string]interface{}(t)).(map[string]interface{}))
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

type TemplateFile string

// Load reads the file as plain JSON.
func (t TemplateFile) Load() (Document, error) {
	b, err := os.ReadFile(string(t))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return decode(string(t), b)
}

func (t TemplateFile) render(values map[string]interface{}) ([]byte, error) {
	b, err := os.ReadFile(string(t))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	tmpl, err := template.New("unit").Option("missingkey=zero").Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, t, err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, t, err)
	}
	return buf.Bytes(), nil
}

// Parse renders the file through text/template with values, then decodes it.
// A file without template actions behaves exactly like Load.
func (t TemplateFile) Parse(values map[string]interface{}) (Document, error) {
	b, err := t.render(values)
	if err != nil {
		return nil, err
	}
	return decode(string(t), b)
}

func decode(name string, b []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, name, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s: not a JSON object", ErrTemplate, name)
	}
	return doc, nil
}
