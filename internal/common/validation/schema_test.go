package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["name", "size"],
	"properties": {
		"name": {"type": "string", "pattern": "^[a-z]+$"},
		"size": {"type": "integer", "minimum": 1, "maximum": 10},
		"kind": {"enum": ["a", "b"]}
	}
}`

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`{"type": 12}`) })
}

func TestValidateBytes_Valid(t *testing.T) {
	result, err := MustCompile(testSchema).ValidateBytes([]byte(`{"name":"abc","size":3,"kind":"a"}`))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateBytes_ReportsEveryViolationSorted(t *testing.T) {
	result, err := MustCompile(testSchema).ValidateBytes([]byte(`{"name":"ABC","size":11,"kind":"c","extra":true}`))
	require.NoError(t, err)
	require.False(t, result.Valid)

	var got []string
	for _, e := range result.Errors {
		got = append(got, e.Field+":"+e.Code)
	}
	assert.Equal(t, []string{
		"extra:" + CodeExtraField,
		"kind:" + CodeInvalidEnumValue,
		"name:" + CodePatternMismatch,
		"size:" + CodeMaximumViolation,
	}, got)
}

func TestValidateBytes_RequiredAndType(t *testing.T) {
	result, err := MustCompile(testSchema).ValidateBytes([]byte(`{"size":"big"}`))
	require.NoError(t, err)
	require.False(t, result.Valid)

	require.Len(t, result.GetErrorsForField("name"), 1)
	assert.Equal(t, CodeRequiredFieldMissing, result.GetErrorsForField("name")[0].Code)
	assert.Equal(t, CodeInvalidType, result.GetErrorsForField("size")[0].Code)
	assert.Len(t, result.Errors, 2)
}

func TestValidateBytes_Minimum(t *testing.T) {
	result, err := MustCompile(testSchema).ValidateBytes([]byte(`{"name":"a","size":0}`))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeMinimumViolation, result.Errors[0].Code)
}

func TestValidateBytes_Unparseable(t *testing.T) {
	_, err := MustCompile(testSchema).ValidateBytes([]byte(`{`))
	assert.Error(t, err)
}

func TestValidationResult_Add(t *testing.T) {
	result := &ValidationResult{Valid: true}
	result.Add("b", CodeInvalidValue, "bad")
	result.Add("a", CodeInvalidValue, "bad")

	assert.False(t, result.Valid)
	assert.Equal(t, "a", result.Errors[0].Field)
	assert.Empty(t, result.GetErrorsForField("c"))
}
