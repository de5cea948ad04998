package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// DirectiveSchema is the JSON schema every directive must satisfy before it
// reaches a generation backend.
const DirectiveSchema = `{
	"type": "object",
	"required": ["originalText", "enhancedText", "style", "durationSeconds", "motionIntensity", "resolution"],
	"properties": {
		"originalText":    {"type": "string", "minLength": 1},
		"enhancedText":    {"type": "string", "minLength": 1, "maxLength": 4000},
		"style":           {"type": "string", "enum": ["realistic", "abstract", "landscape", "cinematic"]},
		"durationSeconds": {"type": "integer", "minimum": 1, "maximum": 60},
		"motionIntensity": {"type": "string", "enum": ["low", "medium", "high"]},
		"resolution":      {"type": "string", "pattern": "^[0-9]+x[0-9]+$"}
	}
}`

// Guardrails validates directives and masks secrets in echoed user text.
type Guardrails struct {
	outputFilters []*regexp.Regexp
	validator     *JSONValidator
}

// NewGuardrails creates guardrails with the directive schema compiled.
func NewGuardrails() (*Guardrails, error) {
	validator, err := NewJSONValidator([]byte(DirectiveSchema))
	if err != nil {
		return nil, err
	}
	return &Guardrails{
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)password[:=]\s*\S+`),
			regexp.MustCompile(`(?i)api[_-]?key[:=]\s*\S+`),
			regexp.MustCompile(`(?i)secret[:=]\s*\S+`),
			regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`),
		},
		validator: validator,
	}, nil
}

// ValidateDirective checks d against DirectiveSchema.
func (g *Guardrails) ValidateDirective(d ports.Directive) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDirective, err)
	}
	if err := g.validator.Validate(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDirective, err)
	}
	return nil
}

// SanitizeOutput masks credentials before text lands in the log.
func (g *Guardrails) SanitizeOutput(output string) string {
	sanitized := output
	for _, filter := range g.outputFilters {
		sanitized = filter.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}

// JSONValidator validates documents against one compiled schema.
type JSONValidator struct {
	schema *gojsonschema.Schema
}

// NewJSONValidator compiles schema.
func NewJSONValidator(schema []byte) (*JSONValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &JSONValidator{schema: compiled}, nil
}

// Validate checks if JSON data conforms to the schema.
func (v *JSONValidator) Validate(data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("data is not valid JSON")
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
