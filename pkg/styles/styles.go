// Package styles reads the style catalog and folds selected style fragments
// into prompt text.
//
// The catalog is a CSV file with name, prompt and negative_prompt columns.
// A row whose name starts with "|||" opens a style; following rows whose name
// contains "|" are its substyles, shown under the text after the first "|":
//
//	name,prompt,negative_prompt
//	|||Photography,,
//	photo|Cinematic,"cinematic still, shallow depth of field","cartoon, drawing"
package styles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	HeaderMarker = "|||"
	Separator    = "|"

	// Joins user text and fragments into one prompt.
	Joiner = ", "
)

var (
	ErrSubstyleNotFound = errors.New("substyle not in catalog")
	ErrOrphanSubstyle   = errors.New("substyle row before any style header")
	ErrMissingColumn    = errors.New("missing catalog column")
)

type Substyle struct {
	Style    string
	Name     string
	Positive string
	Negative string
}

// Catalog keeps styles and substyles in file order.
type Catalog struct {
	order  []string
	styles map[string][]Substyle
}

// Load parses the catalog at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open style catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, want := range []string{"name", "prompt", "negative_prompt"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, want)
		}
	}
	field := func(rec []string, col string) string {
		if i := cols[col]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	c := &Catalog{styles: make(map[string][]Substyle)}
	current := ""
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}

		name := field(rec, "name")
		switch {
		case strings.HasPrefix(name, HeaderMarker):
			current = strings.TrimSpace(strings.ReplaceAll(name, HeaderMarker, ""))
			if _, ok := c.styles[current]; !ok {
				c.order = append(c.order, current)
				c.styles[current] = nil
			}
		case strings.Contains(name, Separator):
			if current == "" {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("line %d: %w: %q", line, ErrOrphanSubstyle, name)
			}
			c.styles[current] = append(c.styles[current], Substyle{
				Style:    current,
				Name:     strings.TrimSpace(strings.Split(name, Separator)[1]),
				Positive: field(rec, "prompt"),
				Negative: field(rec, "negative_prompt"),
			})
		}
	}
	return c, nil
}

// Styles returns style names in catalog order.
func (c *Catalog) Styles() []string {
	return append([]string(nil), c.order...)
}

// Substyles returns the substyles of style in catalog order.
func (c *Catalog) Substyles(style string) []Substyle {
	return append([]Substyle(nil), c.styles[style]...)
}

// Lookup finds a substyle by style and display name.
func (c *Catalog) Lookup(style, name string) (Substyle, error) {
	subs, ok := c.styles[style]
	if !ok {
		return Substyle{}, fmt.Errorf("%w: style %q", ErrSubstyleNotFound, style)
	}
	for _, s := range subs {
		if s.Name == name {
			return s, nil
		}
	}
	return Substyle{}, fmt.Errorf("%w: %q in style %q", ErrSubstyleNotFound, name, style)
}

// Selection names one substyle picked by the user.
type Selection struct {
	Style    string
	Substyle string
}

// ParseSelection reads "Style/Substyle".
func ParseSelection(s string) (Selection, error) {
	style, sub, ok := strings.Cut(s, "/")
	if !ok || strings.TrimSpace(style) == "" || strings.TrimSpace(sub) == "" {
		return Selection{}, fmt.Errorf("invalid style selection %q, want Style/Substyle", s)
	}
	return Selection{Style: strings.TrimSpace(style), Substyle: strings.TrimSpace(sub)}, nil
}

func (s Selection) String() string {
	return s.Style + "/" + s.Substyle
}

// Combine resolves selections in the order given and builds the final
// positive and negative prompts. A selection missing from the catalog fails
// the whole call.
func (c *Catalog) Combine(positive, negative string, selections []Selection) (string, string, error) {
	subs := make([]Substyle, 0, len(selections))
	for _, sel := range selections {
		s, err := c.Lookup(sel.Style, sel.Substyle)
		if err != nil {
			return "", "", err
		}
		subs = append(subs, s)
	}

	pos, neg := []string{positive}, []string{negative}
	for _, s := range subs {
		pos = append(pos, s.Positive)
		neg = append(neg, s.Negative)
	}
	return Join(pos...), Join(neg...), nil
}

// Join drops empty parts and joins the rest with Joiner.
func Join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, Joiner)
}
