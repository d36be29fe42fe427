package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"google.golang.org/genai"

	"github.com/zhouzirui/atlas/backend/internal/model/exercise"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

// ExerciseGenerator produces a new practice exercise for a tutor.
type ExerciseGenerator interface {
	GenerateExercise(ctx context.Context, t tutor.Tutor) (exercise.Exercise, error)
}

const defaultExercisePrompt = "Generate a B2 level English exercise. Randomly choose between 'multiple_choice' (4 options) or 'fill_in_blank' (one missing word marked with ___)."

// ExerciseSchema describes the structured exercise the model must return.
func ExerciseSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"question": {
				Type:        "string",
				Description: "La domanda o la frase da completare (usa ___ per lo spazio vuoto)",
			},
			"type": {
				Type:        "string",
				Description: "'multiple_choice' o 'fill_in_blank'",
				Enum:        []any{string(exercise.MultipleChoice), string(exercise.FillInBlank)},
			},
			"options": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "4 opzioni se multiple_choice, altrimenti array vuoto",
			},
			"correctAnswer": {
				Type:        "string",
				Description: "La risposta corretta esatta",
			},
			"explanation": {
				Type:        "string",
				Description: "Spiegazione in italiano del perché è corretta e traduzione",
			},
		},
		Required: []string{"question", "type", "options", "correctAnswer", "explanation"},
	}
}

var resolvedExerciseSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return ExerciseSchema().Resolve(nil)
})

// GeminiExerciseGenerator asks Gemini for schema-constrained JSON.
type GeminiExerciseGenerator struct {
	models      ContentGenerator
	model       string
	temperature *float32
}

// NewGeminiExerciseGenerator creates a generator using the Gemini models API.
func NewGeminiExerciseGenerator(models ContentGenerator, modelName string, temperature *float32) *GeminiExerciseGenerator {
	return &GeminiExerciseGenerator{models: models, model: modelName, temperature: temperature}
}

// GenerateExercise implements ExerciseGenerator.
func (g *GeminiExerciseGenerator) GenerateExercise(ctx context.Context, t tutor.Tutor) (exercise.Exercise, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      g.temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiSchema(ExerciseSchema()),
	}
	contents := []*genai.Content{genai.NewContentFromText(exercisePrompt(t), genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return exercise.Exercise{}, NormalizeError(err)
	}
	return DecodeExercise(resp.Text())
}

// ChainExerciseGenerator is used with providers that lack schema-constrained
// output. The schema is described in the prompt and the reply is repaired
// and validated afterwards.
type ChainExerciseGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainExerciseGenerator compiles an exercise chain around chatModel.
func NewChainExerciseGenerator(ctx context.Context, chatModel model.BaseChatModel) (*ChainExerciseGenerator, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{format}"),
		schema.UserMessage("{request}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile exercise chain: %w", err)
	}
	return &ChainExerciseGenerator{chain: runnable}, nil
}

// GenerateExercise implements ExerciseGenerator.
func (g *ChainExerciseGenerator) GenerateExercise(ctx context.Context, t tutor.Tutor) (exercise.Exercise, error) {
	schemaJSON, err := json.Marshal(ExerciseSchema())
	if err != nil {
		return exercise.Exercise{}, fmt.Errorf("marshal exercise schema: %w", err)
	}
	resp, err := g.chain.Invoke(ctx, map[string]any{
		"format":  "Reply with a single JSON object and nothing else. It must match this JSON schema:\n" + string(schemaJSON),
		"request": exercisePrompt(t),
	})
	if err != nil {
		return exercise.Exercise{}, fmt.Errorf("failed to run exercise chain: %w", err)
	}
	return DecodeExercise(resp.Content)
}

func exercisePrompt(t tutor.Tutor) string {
	if p := strings.TrimSpace(t.ExercisePrompt); p != "" {
		return p
	}
	return defaultExercisePrompt
}

// DecodeExercise parses a model reply into a validated exercise. Malformed
// JSON is repaired once before giving up.
func DecodeExercise(content string) (exercise.Exercise, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 {
		return exercise.Exercise{}, fmt.Errorf("missing json object")
	}
	if end <= start {
		// Truncated output; let the repair pass close the object.
		end = len(trimmed) - 1
	}

	var doc map[string]any
	if err := unmarshalJSON([]byte(trimmed[start:end+1]), &doc); err != nil {
		return exercise.Exercise{}, fmt.Errorf("decode exercise: %w", err)
	}
	if typ, ok := doc["type"].(string); ok {
		doc["type"] = strings.ToLower(strings.TrimSpace(typ))
	}

	resolved, err := resolvedExerciseSchema()
	if err != nil {
		return exercise.Exercise{}, fmt.Errorf("resolve exercise schema: %w", err)
	}
	if err := resolved.Validate(doc); err != nil {
		return exercise.Exercise{}, fmt.Errorf("exercise does not match schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return exercise.Exercise{}, err
	}
	var ex exercise.Exercise
	if err := json.Unmarshal(raw, &ex); err != nil {
		return exercise.Exercise{}, fmt.Errorf("decode exercise: %w", err)
	}
	ex.Normalize()
	if err := ex.Validate(); err != nil {
		return exercise.Exercise{}, err
	}
	return ex, nil
}

// unmarshalJSON retries with a repaired document on syntax errors.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return repairErr
	}
	log.Printf("[ai] repaired malformed model json")
	return json.Unmarshal([]byte(fixed), v)
}

// geminiSchema converts a JSON schema into the Gemini response schema subset.
func geminiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	enums := make([]string, 0, len(s.Enum))
	for _, v := range s.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      s.Format,
		Description: s.Description,
		Enum:        enums,
		Items:       geminiSchema(s.Items),
		Required:    s.Required,
	}
	if n := len(s.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range s.Properties {
			gs.Properties[k] = geminiSchema(prop)
		}
	}
	switch s.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
