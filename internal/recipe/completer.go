package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"ai-nutritionist/internal/llm"
	"ai-nutritionist/internal/shared"
)

//go:embed completer_prompt.md
var completerPrompt string

var completerTemplate = template.Must(template.New("completer").Parse(completerPrompt))

const completerSystem = "You are a culinary nutrition assistant. Answer with JSON only."

// Completer proposes ingredient rows for a recipe the store does not know.
type Completer interface {
	Complete(ctx context.Context, recipe string) ([]Mapping, error)
}

var completionSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"recipe": {Type: llm.TypeString},
		"items": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"ingredient": {Type: llm.TypeString},
					"alternatives": {
						Type:     llm.TypeArray,
						Items:    &llm.Schema{Type: llm.TypeString},
						MaxItems: MaxAlternatives,
					},
				},
				Required: []string{"ingredient", "alternatives"},
			},
		},
	},
	Required: []string{"recipe", "items"},
}

type completionResponse struct {
	Recipe string `json:"recipe"`
	Items  []struct {
		Ingredient   string   `json:"ingredient"`
		Alternatives []string `json:"alternatives"`
	} `json:"items"`
}

// GenerativeCompleter asks a structured-output model for ingredient rows.
type GenerativeCompleter struct {
	gen      llm.StructuredGenerator
	recorder shared.MetaRecorder
}

// NewGenerativeCompleter returns a completer. recorder may be nil.
func NewGenerativeCompleter(gen llm.StructuredGenerator, recorder shared.MetaRecorder) *GenerativeCompleter {
	return &GenerativeCompleter{gen: gen, recorder: recorder}
}

// Complete returns cleaned rows for recipe. A response without any usable
// ingredient is an error.
func (c *GenerativeCompleter) Complete(ctx context.Context, recipe string) ([]Mapping, error) {
	start := time.Now()

	var buf bytes.Buffer
	if err := completerTemplate.Execute(&buf, struct {
		Recipe          string
		MaxAlternatives int
	}{recipe, MaxAlternatives}); err != nil {
		return nil, fmt.Errorf("failed to build completer prompt: %w", err)
	}

	resp, err := c.gen.GenerateJSON(ctx, llm.JSONRequest{
		System: completerSystem,
		Prompt: buf.String(),
		Schema: completionSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("ingredient completion failed: %w", err)
	}
	if c.recorder != nil {
		_ = c.recorder.RecordMeta(shared.MetaSince("RecipeCompleter", resp.Usage, start))
	}

	var parsed completionResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w. Response: %s", err, resp.Content)
	}

	seen := make(map[string]bool, len(parsed.Items))
	var rows []Mapping
	for _, it := range parsed.Items {
		m := Mapping{Recipe: recipe, Ingredient: it.Ingredient, Alternatives: it.Alternatives}.clean()
		key := strings.ToLower(m.Ingredient)
		if m.Ingredient == "" || seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, m)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("completion for %q returned no ingredients: %w", recipe, llm.ErrUnavailable)
	}
	return rows, nil
}
