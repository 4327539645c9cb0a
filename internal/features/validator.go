// internal/features/validator.go
package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/validation"
	"loan-sanction/internal/models"
)

// Field error codes added on top of the schema codes.
const (
	CodeNotNumeric = "NOT_NUMERIC"
	CodeNotFinite  = "NOT_FINITE"
	CodeNotInteger = "NOT_INTEGER"
)

const applicationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": [
    "Gender", "Married", "Dependents", "Education", "Self_Employed",
    "ApplicantIncome", "CoapplicantIncome", "LoanAmount", "Loan_Amount_Term",
    "Credit_History", "Property_Area"
  ],
  "properties": {
    "Gender":            {"type": "string", "enum": ["Male", "Female"]},
    "Married":           {"type": "string", "enum": ["Yes", "No"]},
    "Dependents":        {"type": "string", "enum": ["0", "1", "2", "3+"]},
    "Education":         {"type": "string", "enum": ["Graduate", "Not Graduate"]},
    "Self_Employed":     {"type": "string", "enum": ["Yes", "No"]},
    "ApplicantIncome":   {"type": ["number", "string"]},
    "CoapplicantIncome": {"type": ["number", "string"]},
    "LoanAmount":        {"type": ["number", "string"]},
    "Loan_Amount_Term":  {"type": ["number", "string"]},
    "Credit_History":    {"type": ["number", "string"]},
    "Property_Area":     {"type": "string", "enum": ["Urban", "Semiurban", "Rural"]}
  }
}`

var applicationValidator = validation.MustCompile(applicationSchema)

// Validator checks raw request bodies and produces ApplicantFeatures.
type Validator struct {
	schema *validation.Schema
}

func NewValidator() *Validator {
	return &Validator{schema: applicationValidator}
}

// Validate reports every offending field at once. It never touches the encoder or
// the model.
func (v *Validator) Validate(raw []byte) (models.ApplicantFeatures, error) {
	var doc map[string]interface{}
	if err := decodeObject(raw, &doc); err != nil {
		return models.ApplicantFeatures{}, apperrors.NewMalformedPayloadError(err.Error())
	}

	result, err := v.schema.ValidateBytes(raw)
	if err != nil {
		return models.ApplicantFeatures{}, apperrors.NewMalformedPayloadError(err.Error())
	}

	numbers := make(map[string]float64, 5)
	for _, field := range []string{FieldApplicantIncome, FieldCoapplicantIncome, FieldLoanAmount, FieldLoanAmountTerm, FieldCreditHistory} {
		value, present := doc[field]
		if !present || len(result.GetErrorsForField(field)) > 0 {
			continue
		}
		n, code, msg := parseNumber(value)
		if code != "" {
			result.Add(field, code, msg)
			continue
		}
		if code, msg := checkRange(field, n); code != "" {
			result.Add(field, code, msg)
			continue
		}
		numbers[field] = n
	}

	if !result.Valid {
		return models.ApplicantFeatures{}, apperrors.NewValidationFailedError(toFieldErrors(result.Errors))
	}

	return models.ApplicantFeatures{
		Gender:            models.Gender(doc[FieldGender].(string)),
		Married:           models.YesNo(doc[FieldMarried].(string)),
		Dependents:        models.Dependents(doc[FieldDependents].(string)),
		Education:         models.Education(doc[FieldEducation].(string)),
		SelfEmployed:      models.YesNo(doc[FieldSelfEmployed].(string)),
		ApplicantIncome:   numbers[FieldApplicantIncome],
		CoapplicantIncome: numbers[FieldCoapplicantIncome],
		LoanAmount:        numbers[FieldLoanAmount],
		LoanAmountTerm:    int(numbers[FieldLoanAmountTerm]),
		CreditHistory:     int(numbers[FieldCreditHistory]),
		PropertyArea:      models.PropertyArea(doc[FieldPropertyArea].(string)),
	}, nil
}

func decodeObject(raw []byte, doc *map[string]interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("empty body")
	}
	if !json.Valid(raw) {
		return errors.New("body is not valid JSON")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return errors.New("body is not a JSON object")
	}
	*doc = obj
	return nil
}

// decimalNumber is the only numeric string syntax accepted. ParseFloat alone would
// also take hex floats and digit separators.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseNumber accepts JSON numbers and numeric strings, the form sends both.
func parseNumber(value interface{}) (float64, string, string) {
	var s string
	switch v := value.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return 0, validation.CodeInvalidType, "must be a number"
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, CodeNotFinite, "must be a finite number"
		}
		return 0, CodeNotNumeric, fmt.Sprintf("%q is not a number", s)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, CodeNotFinite, "must be a finite number"
	}
	if !decimalNumber.MatchString(s) {
		return 0, CodeNotNumeric, fmt.Sprintf("%q is not a number", s)
	}
	return n, "", ""
}

func checkRange(field string, n float64) (string, string) {
	switch field {
	case FieldLoanAmountTerm:
		if n != math.Trunc(n) {
			return CodeNotInteger, "must be a whole number of months"
		}
		if n <= 0 {
			return validation.CodeMinimumViolation, "must be greater than 0"
		}
		if n > math.MaxInt32 {
			return validation.CodeMaximumViolation, "is too large"
		}
	case FieldCreditHistory:
		if n != 0 && n != 1 {
			return validation.CodeInvalidEnumValue, "must be 0 or 1"
		}
	default:
		if n < 0 {
			return validation.CodeMinimumViolation, "must be greater than or equal to 0"
		}
	}
	return "", ""
}

func toFieldErrors(errs []validation.ValidationError) []apperrors.FieldError {
	fields := make([]apperrors.FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, apperrors.FieldError{Field: e.Field, Code: e.Code, Message: e.Message})
	}
	return fields
}
