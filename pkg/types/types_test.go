package types

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflowJSON = `{
  "3": {"class_type": "KSampler", "inputs": {"seed": 156680208700286, "steps": 20, "model": ["4", 0]}},
  "4": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat"}},
  "9": {"class_type": "SaveImage", "inputs": {"filename_prefix": "ComfyUI"}}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	doc, err := TemplateFile(writeFile(t, "workflow.json", workflowJSON)).Load()
	require.NoError(t, err)

	inputs := doc["3"].(map[string]interface{})["inputs"].(map[string]interface{})
	assert.Equal(t, json.Number("156680208700286"), inputs["seed"])
	assert.Len(t, doc, 3)
}

func TestLoadErrors(t *testing.T) {
	_, err := TemplateFile(filepath.Join(t.TempDir(), "missing.json")).Load()
	assert.ErrorIs(t, err, ErrTemplate)

	_, err = TemplateFile(writeFile(t, "bad.json", `{"3": `)).Load()
	assert.ErrorIs(t, err, ErrTemplate)

	_, err = TemplateFile(writeFile(t, "null.json", `null`)).Load()
	assert.ErrorIs(t, err, ErrTemplate)

	_, err = TemplateFile(writeFile(t, "array.json", `[1, 2]`)).Load()
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestParseRendersValues(t *testing.T) {
	path := writeFile(t, "tmpl.json", `{"4": {"inputs": {"text": "{{.positivePrompt}}", "seed": {{.seed}}}}}`)

	doc, err := TemplateFile(path).Parse(map[string]interface{}{
		"positivePrompt": "glass bottle landscape",
		"seed":           42,
	})
	require.NoError(t, err)

	inputs := doc["4"].(map[string]interface{})["inputs"].(map[string]interface{})
	assert.Equal(t, "glass bottle landscape", inputs["text"])
	assert.Equal(t, json.Number("42"), inputs["seed"])
}

func TestCloneIsDeep(t *testing.T) {
	doc, err := TemplateFile(writeFile(t, "workflow.json", workflowJSON)).Load()
	require.NoError(t, err)

	cp := doc.Clone()
	require.Equal(t, doc, cp)

	cp["4"].(map[string]interface{})["inputs"].(map[string]interface{})["text"] = "a dog"
	cp["3"].(map[string]interface{})["inputs"].(map[string]interface{})["model"].([]interface{})[0] = "5"

	assert.Equal(t, "a cat", doc["4"].(map[string]interface{})["inputs"].(map[string]interface{})["text"])
	assert.Equal(t, "4", doc["3"].(map[string]interface{})["inputs"].(map[string]interface{})["model"].([]interface{})[0])
}
