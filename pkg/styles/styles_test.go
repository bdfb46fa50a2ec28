package styles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogCSV = `name,prompt,negative_prompt
|||Photography,,
photo|Cinematic,"cinematic still, shallow depth of field","cartoon, drawing"
photo|Macro,extreme close-up,
|||Painting,,
paint|Watercolor,watercolor painting,photo
paint|Oil,oil on canvas,
plain row without markers,ignored,ignored
`

func catalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Parse(strings.NewReader(catalogCSV))
	require.NoError(t, err)
	return c
}

func TestParse(t *testing.T) {
	c := catalog(t)

	assert.Equal(t, []string{"Photography", "Painting"}, c.Styles())

	subs := c.Substyles("Photography")
	require.Len(t, subs, 2)
	assert.Equal(t, Substyle{
		Style:    "Photography",
		Name:     "Cinematic",
		Positive: "cinematic still, shallow depth of field",
		Negative: "cartoon, drawing",
	}, subs[0])
	assert.Equal(t, "Macro", subs[1].Name)
	assert.Empty(t, subs[1].Negative)

	assert.Equal(t, []string{"Watercolor", "Oil"}, names(c.Substyles("Painting")))
}

func names(subs []Substyle) []string {
	var out []string
	for _, s := range subs {
		out = append(out, s.Name)
	}
	return out
}

func TestParseOrphanSubstyle(t *testing.T) {
	_, err := Parse(strings.NewReader("name,prompt,negative_prompt\nphoto|Cinematic,x,y\n"))
	assert.ErrorIs(t, err, ErrOrphanSubstyle)
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("name,prompt\n|||A,,\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseColumnOrderAndBOM(t *testing.T) {
	c, err := Parse(strings.NewReader("\ufeffprompt,negative_prompt,name\n,,|||Style\npos,neg,s|Sub\n"))
	require.NoError(t, err)

	s, err := c.Lookup("Style", "Sub")
	require.NoError(t, err)
	assert.Equal(t, "pos", s.Positive)
	assert.Equal(t, "neg", s.Negative)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.csv")
	require.NoError(t, os.WriteFile(path, []byte(catalogCSV), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Styles(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "A, B, C", Join("A", "B", "C"))
	assert.Equal(t, "B", Join("", "B"))
	assert.Equal(t, "A", Join("A"))
	assert.Equal(t, "", Join("", ""))
}

func TestCombine(t *testing.T) {
	c, err := Parse(strings.NewReader("name,prompt,negative_prompt\n|||S,,\ns|b,B,nb\ns|c,C,\n"))
	require.NoError(t, err)

	pos, neg, err := c.Combine("A", "", []Selection{{"S", "b"}, {"S", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "A, B, C", pos)
	assert.Equal(t, "nb", neg)

	pos, _, err = c.Combine("", "", []Selection{{"S", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "B", pos)

	pos, neg, err = c.Combine("A", "N", nil)
	require.NoError(t, err)
	assert.Equal(t, "A", pos)
	assert.Equal(t, "N", neg)
}

func TestCombineFollowsSelectionOrder(t *testing.T) {
	c := catalog(t)

	pos, neg, err := c.Combine("a fox", "blurry", []Selection{
		{"Painting", "Oil"},
		{"Photography", "Cinematic"},
		{"Painting", "Watercolor"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a fox, oil on canvas, cinematic still, shallow depth of field, watercolor painting", pos)
	assert.Equal(t, "blurry, cartoon, drawing, photo", neg)
}

func TestCombineMissingSubstyle(t *testing.T) {
	c := catalog(t)

	_, _, err := c.Combine("a fox", "", []Selection{{"Photography", "Cinematic"}, {"Photography", "Tilt-shift"}})
	require.ErrorIs(t, err, ErrSubstyleNotFound)
	assert.Contains(t, err.Error(), "Tilt-shift")

	_, _, err = c.Combine("a fox", "", []Selection{{"Sculpture", "Bronze"}})
	assert.ErrorIs(t, err, ErrSubstyleNotFound)
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(" Photography / Cinematic ")
	require.NoError(t, err)
	assert.Equal(t, Selection{"Photography", "Cinematic"}, sel)
	assert.Equal(t, "Photography/Cinematic", sel.String())

	for _, bad := range []string{"Photography", "/Cinematic", "Photography/", ""} {
		_, err := ParseSelection(bad)
		assert.Error(t, err, bad)
	}
}
