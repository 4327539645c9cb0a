package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error codes reported for schema violations.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeExtraField           = "EXTRA_FIELD"
	CodeInvalidType          = "INVALID_TYPE"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeMinimumViolation     = "MINIMUM_VIOLATION"
	CodeMaximumViolation     = "MAXIMUM_VIOLATION"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeInvalidValue         = "INVALID_VALUE"
)

// RootField names errors that apply to the document as a whole.
const RootField = "(root)"

// Schema is a compiled JSON schema. Compile once, validate many times concurrently.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses and compiles a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas that are known to be valid.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes validates a raw JSON document and reports every violation, not just the first.
// The error return is reserved for documents that cannot be parsed at all.
func (s *Schema) ValidateBytes(document []byte) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewBytesLoader(document))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, toValidationError(desc))
	}
	sortErrors(errs)

	return &ValidationResult{
		Valid:  result.Valid(),
		Errors: errs,
	}, nil
}

func toValidationError(desc gojsonschema.ResultError) ValidationError {
	field := desc.Field()
	if prop, ok := desc.Details()["property"].(string); ok && prop != "" {
		switch desc.Type() {
		case "required", "additional_property_not_allowed":
			field = prop
		}
	}

	return ValidationError{
		Field:   field,
		Message: desc.Description(),
		Code:    codeForType(desc.Type()),
	}
}

func codeForType(errType string) string {
	switch errType {
	case "required":
		return CodeRequiredFieldMissing
	case "additional_property_not_allowed":
		return CodeExtraField
	case "invalid_type":
		return CodeInvalidType
	case "enum", "const":
		return CodeInvalidEnumValue
	case "number_gte", "number_gt":
		return CodeMinimumViolation
	case "number_lte", "number_lt":
		return CodeMaximumViolation
	case "pattern":
		return CodePatternMismatch
	default:
		return CodeInvalidValue
	}
}

func sortErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Field != errs[j].Field {
			return errs[i].Field < errs[j].Field
		}
		return errs[i].Code < errs[j].Code
	})
}

// Add appends an error and marks the result invalid.
func (vr *ValidationResult) Add(field, code, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Code: code, Message: message})
	vr.Valid = false
	sortErrors(vr.Errors)
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
