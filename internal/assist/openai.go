package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"

	"inventory/internal/mapping"
)

// suggestionSchema is the Structured Outputs schema for the model reply.
// Hand-written rather than reflected: it is three fields, and strict mode
// wants every attribute pinned down.
var suggestionSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"mappings", "notes"},
	"properties": map[string]any{
		"mappings": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"header", "field", "confidence"},
				"properties": map[string]any{
					"header":     map[string]any{"type": "string"},
					"field":      map[string]any{"type": "string", "description": "target field name, or empty string to create a new column"},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
		},
		"notes": map[string]any{"type": "string"},
	},
}

var schemaParam = openai.ResponseFormatJSONSchemaJSONSchemaParam{
	Name:        "column_mapping",
	Description: openai.String("Spreadsheet headers mapped to equipment registry fields"),
	Schema:      suggestionSchema,
	Strict:      openai.Bool(true),
}

type wireSuggestion struct {
	Mappings []struct {
		Header     string  `json:"header"`
		Field      string  `json:"field"`
		Confidence float64 `json:"confidence"`
	} `json:"mappings"`
	Notes string `json:"notes"`
}

// OpenAIOracle implements Oracle against the OpenAI chat completions API.
//
// Failures here (timeout, quota, malformed reply) are returned as errors
// and swallowed by the pipeline; they never block the workflow.
type OpenAIOracle struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// NewOpenAIOracle builds an oracle using ambient credentials
// (OPENAI_API_KEY). Model defaults to gpt-4o-mini; timeout to 20s.
func NewOpenAIOracle(model string, timeout time.Duration) *OpenAIOracle {
	m := openai.ChatModelGPT4oMini
	if model != "" {
		m = openai.ChatModel(model)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIOracle{
		client:  openai.NewClient(),
		model:   m,
		timeout: timeout,
	}
}

// SuggestMapping implements Oracle.
func (o *OpenAIOracle) SuggestMapping(ctx context.Context, req Request) (*Suggestion, error) {
	if len(req.Headers) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	input, err := json.Marshal(map[string]any{
		"headers":     req.Headers,
		"fields":      req.Fields,
		"sample_rows": req.SampleRows,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal oracle input: %w", err)
	}

	system := "You map spreadsheet column headers to equipment registry fields. " +
		"Pick a field from the provided vocabulary, or return an empty field to create a new column. " +
		"Use the sample rows to disambiguate. Return ONLY the JSON required by the schema."

	chat, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage("Map the headers.\nINPUT_JSON:\n" + string(input)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Seed:  openai.Int(42),
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	var wire wireSuggestion
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &wire); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	if len(wire.Mappings) == 0 {
		return nil, nil
	}

	known := make(map[string]bool, len(req.Fields))
	for _, f := range req.Fields {
		known[f] = true
	}
	headerSet := make(map[string]bool, len(req.Headers))
	for _, h := range req.Headers {
		headerSet[h] = true
	}

	m := make(mapping.Mapping, len(wire.Mappings))
	var confSum float64
	var confN int
	for _, w := range wire.Mappings {
		if !headerSet[w.Header] {
			continue
		}
		if w.Field == "" {
			m[w.Header] = mapping.ToNewColumn(w.Header)
		} else if known[w.Field] {
			m[w.Header] = mapping.ToField(w.Field)
		} else {
			// Hallucinated field: treat as no opinion on this header.
			continue
		}
		confSum += clamp01(w.Confidence)
		confN++
	}
	if len(m) == 0 {
		return nil, nil
	}

	return &Suggestion{
		Mapping:    m,
		Confidence: confidenceLabel(confSum / float64(confN)),
		Notes:      wire.Notes,
	}, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func confidenceLabel(avg float64) string {
	switch {
	case avg >= 0.8:
		return "high"
	case avg >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

var _ Oracle = (*OpenAIOracle)(nil)
