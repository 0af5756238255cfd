// Package validation validates API request payloads against JSON schemas.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Request body schemas. Kept next to the validator so the full wire contract
// is visible in one place.
const (
	OtpVerifySchema = `{
		"type": "object",
		"properties": {
			"code": {"type": "string", "pattern": "^[0-9]{6}$"}
		},
		"required": ["code"],
		"additionalProperties": false
	}`

	CheckoutResultSchema = `{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["completed", "dismissed", "failed"]},
			"reason": {"type": "string"},
			"razorpay_payment_id": {"type": "string"},
			"razorpay_order_id": {"type": "string"},
			"razorpay_signature": {"type": "string"}
		},
		"required": ["status"],
		"additionalProperties": false
	}`

	PaymentOrderSchema = `{
		"type": "object",
		"properties": {
			"amount": {"type": "integer", "minimum": 1},
			"currency": {"type": "string", "minLength": 3, "maxLength": 3},
			"receipt": {"type": "string"},
			"notes": {"type": "object"}
		},
		"required": ["amount", "currency"],
		"additionalProperties": false
	}`

	PaymentVerifySchema = `{
		"type": "object",
		"properties": {
			"razorpay_payment_id": {"type": "string", "minLength": 1},
			"razorpay_order_id": {"type": "string", "minLength": 1},
			"razorpay_signature": {"type": "string", "minLength": 1}
		},
		"required": ["razorpay_payment_id", "razorpay_order_id", "razorpay_signature"],
		"additionalProperties": false
	}`
)

// ValidationError is a field-level schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result carries the outcome of a schema validation.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// GetErrorMessages returns a simple list of error messages.
func (r *Result) GetErrorMessages() []string {
	messages := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Validator holds compiled schemas keyed by name.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the given schemas. A schema that fails to compile is a
// programming error and is reported at construction time.
func NewValidator(schemas map[string]string) (*Validator, error) {
	compiled := make(map[string]*gojsonschema.Schema, len(schemas))
	for name, raw := range schemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}
		compiled[name] = schema
	}
	return &Validator{schemas: compiled}, nil
}

// Validate checks a raw JSON body against the named schema.
func (v *Validator) Validate(name string, body []byte) (*Result, error) {
	schema, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &Result{
			Valid:  false,
			Errors: []ValidationError{{Field: "(body)", Message: "request body is not valid JSON"}},
		}, nil
	}

	out := &Result{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return out, nil
}
