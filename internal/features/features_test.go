package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/validation"
	"loan-sanction/internal/models"
)

func validBody(t *testing.T, overrides map[string]interface{}) []byte {
	t.Helper()
	body := map[string]interface{}{
		"Gender":            "Male",
		"Married":           "No",
		"Dependents":        "0",
		"Education":         "Graduate",
		"Self_Employed":     "No",
		"ApplicantIncome":   5000,
		"CoapplicantIncome": 0,
		"LoanAmount":        150,
		"Loan_Amount_Term":  360,
		"Credit_History":    "1",
		"Property_Area":     "Urban",
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func fieldCodes(t *testing.T, err error) map[string]string {
	t.Helper()
	stdErr, ok := apperrors.As(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	require.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)

	codes := make(map[string]string, len(stdErr.Fields))
	for _, f := range stdErr.Fields {
		codes[f.Field] = f.Code
	}
	return codes
}

func TestDefaultTable_Layout(t *testing.T) {
	cols := DefaultTable.Columns()
	require.Len(t, cols, 23)
	assert.Equal(t, "v1", DefaultTable.Version())
	assert.Equal(t, []string{
		"ApplicantIncome", "CoapplicantIncome", "LoanAmount", "Loan_Amount_Term",
		"Credit_History", "TotalIncome", "EMI", "Balance_Income",
	}, cols[:8])
	assert.Equal(t, "Dependents_3+", cols[15])
	assert.Equal(t, "Education_Not Graduate", cols[17])
	assert.Equal(t, "Property_Area_Urban", cols[22])
}

func TestTable_Code(t *testing.T) {
	code, ok := DefaultTable.Code(FieldDependents, "3+")
	require.True(t, ok)
	assert.Equal(t, 3, code)

	_, ok = DefaultTable.Code(FieldDependents, "3")
	assert.False(t, ok)
	_, ok = DefaultTable.Code("Unknown", "x")
	assert.False(t, ok)

	assert.Equal(t, []string{"Rural", "Semiurban", "Urban"}, DefaultTable.Labels(FieldPropertyArea))
}

func TestNewTable_Rejects(t *testing.T) {
	_, err := NewTable("", nil, nil)
	assert.Error(t, err)

	_, err = NewTable("v9", []string{"A", "A"}, nil)
	assert.ErrorContains(t, err, "duplicate column")

	_, err = NewTable("v9", nil, []Categorical{{Field: "G", Labels: []string{"x", "x"}}})
	assert.ErrorContains(t, err, "twice")
}

func TestNewEncoder_UnknownColumn(t *testing.T) {
	table, err := NewTable("v9", []string{"Age"}, nil)
	require.NoError(t, err)

	_, err = NewEncoder(table)
	assert.ErrorContains(t, err, "Age")
}

func TestEncode_Defaults(t *testing.T) {
	enc := MustNewEncoder(DefaultTable)
	v := enc.Encode(models.DefaultApplication())

	require.Len(t, v.Values, DefaultTable.Width())
	assert.Equal(t, "v1", v.Version)

	at := func(col string) float64 {
		i, ok := DefaultTable.Index(col)
		require.True(t, ok, col)
		return v.Values[i]
	}

	assert.Equal(t, 5000.0, at("ApplicantIncome"))
	assert.Equal(t, 360.0, at("Loan_Amount_Term"))
	assert.Equal(t, 1.0, at("Credit_History"))
	assert.Equal(t, 5000.0, at("TotalIncome"))
	assert.InDelta(t, 150.0/360.0, at("EMI"), 1e-12)
	assert.InDelta(t, 5000-150.0/360.0*1000, at("Balance_Income"), 1e-9)
	assert.Equal(t, 1.0, at("Gender_Male"))
	assert.Equal(t, 0.0, at("Gender_Female"))
	assert.Equal(t, 1.0, at("Dependents_0"))
	assert.Equal(t, 1.0, at("Property_Area_Urban"))

	var hot float64
	for _, x := range v.Values[8:] {
		hot += x
	}
	assert.Equal(t, 6.0, hot, "exactly one column per categorical field")
}

func TestEncode_ThreePlusHasOwnColumn(t *testing.T) {
	enc := MustNewEncoder(DefaultTable)
	f := models.DefaultApplication()
	f.Dependents = models.DependentsThreePlus
	v := enc.Encode(f)

	i3, _ := DefaultTable.Index("Dependents_3+")
	i2, _ := DefaultTable.Index("Dependents_2")
	assert.Equal(t, 1.0, v.Values[i3])
	assert.Equal(t, 0.0, v.Values[i2])
}

func TestEncode_Deterministic(t *testing.T) {
	enc := MustNewEncoder(DefaultTable)
	f := models.DefaultApplication()
	f.Married = models.Yes
	f.CoapplicantIncome = 1508

	first := enc.Encode(f)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, enc.Encode(f))
	}
}

func TestValidate_Defaults(t *testing.T) {
	f, err := NewValidator().Validate(validBody(t, nil))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultApplication(), f)
}

func TestValidate_NumericStrings(t *testing.T) {
	f, err := NewValidator().Validate(validBody(t, map[string]interface{}{
		"ApplicantIncome":  " 4583.5 ",
		"Loan_Amount_Term": "360",
		"Credit_History":   0,
		"Dependents":       "3+",
	}))
	require.NoError(t, err)
	assert.Equal(t, 4583.5, f.ApplicantIncome)
	assert.Equal(t, 360, f.LoanAmountTerm)
	assert.Equal(t, 0, f.CreditHistory)
	assert.Equal(t, models.DependentsThreePlus, f.Dependents)
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
		field     string
		code      string
	}{
		{"unknown gender", map[string]interface{}{"Gender": "Other"}, "Gender", validation.CodeInvalidEnumValue},
		{"dependents three", map[string]interface{}{"Dependents": "3"}, "Dependents", validation.CodeInvalidEnumValue},
		{"missing property area", map[string]interface{}{"Property_Area": nil}, "Property_Area", validation.CodeRequiredFieldMissing},
		{"extra field", map[string]interface{}{"Age": 30}, "Age", validation.CodeExtraField},
		{"boolean income", map[string]interface{}{"ApplicantIncome": true}, "ApplicantIncome", validation.CodeInvalidType},
		{"garbage income", map[string]interface{}{"ApplicantIncome": "lots"}, "ApplicantIncome", CodeNotNumeric},
		{"nan income", map[string]interface{}{"CoapplicantIncome": "NaN"}, "CoapplicantIncome", CodeNotFinite},
		{"infinite loan", map[string]interface{}{"LoanAmount": "Inf"}, "LoanAmount", CodeNotFinite},
		{"overflow loan", map[string]interface{}{"LoanAmount": "1e400"}, "LoanAmount", CodeNotFinite},
		{"hex float income", map[string]interface{}{"ApplicantIncome": "0x1p4"}, "ApplicantIncome", CodeNotNumeric},
		{"digit separators", map[string]interface{}{"LoanAmount": "1_000"}, "LoanAmount", CodeNotNumeric},
		{"negative income", map[string]interface{}{"ApplicantIncome": -1}, "ApplicantIncome", validation.CodeMinimumViolation},
		{"zero term", map[string]interface{}{"Loan_Amount_Term": 0}, "Loan_Amount_Term", validation.CodeMinimumViolation},
		{"negative term", map[string]interface{}{"Loan_Amount_Term": -12}, "Loan_Amount_Term", validation.CodeMinimumViolation},
		{"fractional term", map[string]interface{}{"Loan_Amount_Term": 12.5}, "Loan_Amount_Term", CodeNotInteger},
		{"credit history two", map[string]interface{}{"Credit_History": "2"}, "Credit_History", validation.CodeInvalidEnumValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator().Validate(validBody(t, tt.overrides))
			require.Error(t, err)
			codes := fieldCodes(t, err)
			assert.Equal(t, tt.code, codes[tt.field], "codes: %v", codes)
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	_, err := NewValidator().Validate(validBody(t, map[string]interface{}{
		"Gender":           "Other",
		"Loan_Amount_Term": 0,
		"LoanAmount":       "abc",
	}))
	require.Error(t, err)

	stdErr, _ := apperrors.As(err)
	names := make([]string, 0, len(stdErr.Fields))
	for _, f := range stdErr.Fields {
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{"Gender", "LoanAmount", "Loan_Amount_Term"}, names)
}

func TestValidate_Malformed(t *testing.T) {
	for _, body := range []string{"", "not json", "[1,2]", `"x"`, `{"Gender":`} {
		_, err := NewValidator().Validate([]byte(body))
		require.Error(t, err, body)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMalformedPayload), body)
	}
}
