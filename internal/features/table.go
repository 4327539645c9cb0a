// internal/features/table.go
package features

import (
	"fmt"

	"loan-sanction/internal/models"
)

// Field names as they appear on the wire and in encoded column names.
const (
	FieldGender            = "Gender"
	FieldMarried           = "Married"
	FieldDependents        = "Dependents"
	FieldEducation         = "Education"
	FieldSelfEmployed      = "Self_Employed"
	FieldApplicantIncome   = "ApplicantIncome"
	FieldCoapplicantIncome = "CoapplicantIncome"
	FieldLoanAmount        = "LoanAmount"
	FieldLoanAmountTerm    = "Loan_Amount_Term"
	FieldCreditHistory     = "Credit_History"
	FieldPropertyArea      = "Property_Area"
)

// Engineered columns derived from the raw numerics.
const (
	ColumnTotalIncome   = "TotalIncome"
	ColumnEMI           = "EMI"
	ColumnBalanceIncome = "Balance_Income"
)

// Categorical is a categorical field with its labels in declared order. A label's
// position is its ordinal code.
type Categorical struct {
	Field  string
	Labels []string
}

// Table fixes the column layout of encoded vectors. A model is only valid for the
// table version it was trained against.
type Table struct {
	version     string
	numeric     []string
	categorical []Categorical
	columns     []string
	index       map[string]int
	codes       map[string]map[string]int
}

// NewTable builds a table. One-hot columns are named <Field>_<Label> and follow the
// numeric columns.
func NewTable(version string, numeric []string, categorical []Categorical) (*Table, error) {
	if version == "" {
		return nil, fmt.Errorf("table version is required")
	}

	t := &Table{
		version:     version,
		numeric:     append([]string(nil), numeric...),
		categorical: make([]Categorical, 0, len(categorical)),
		index:       make(map[string]int),
		codes:       make(map[string]map[string]int),
	}

	add := func(col string) error {
		if _, dup := t.index[col]; dup {
			return fmt.Errorf("duplicate column %q", col)
		}
		t.index[col] = len(t.columns)
		t.columns = append(t.columns, col)
		return nil
	}

	for _, col := range numeric {
		if err := add(col); err != nil {
			return nil, err
		}
	}
	for _, c := range categorical {
		if len(c.Labels) == 0 {
			return nil, fmt.Errorf("categorical field %q has no labels", c.Field)
		}
		codes := make(map[string]int, len(c.Labels))
		for code, label := range c.Labels {
			if _, dup := codes[label]; dup {
				return nil, fmt.Errorf("field %q declares label %q twice", c.Field, label)
			}
			codes[label] = code
			if err := add(ColumnName(c.Field, label)); err != nil {
				return nil, err
			}
		}
		t.codes[c.Field] = codes
		t.categorical = append(t.categorical, Categorical{Field: c.Field, Labels: append([]string(nil), c.Labels...)})
	}

	return t, nil
}

func mustTable(version string, numeric []string, categorical []Categorical) *Table {
	t, err := NewTable(version, numeric, categorical)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable is encoding v1, the layout the shipped model was trained on.
var DefaultTable = mustTable("v1",
	[]string{
		FieldApplicantIncome,
		FieldCoapplicantIncome,
		FieldLoanAmount,
		FieldLoanAmountTerm,
		FieldCreditHistory,
		ColumnTotalIncome,
		ColumnEMI,
		ColumnBalanceIncome,
	},
	[]Categorical{
		{Field: FieldGender, Labels: []string{string(models.GenderFemale), string(models.GenderMale)}},
		{Field: FieldMarried, Labels: []string{string(models.No), string(models.Yes)}},
		{Field: FieldDependents, Labels: []string{
			string(models.DependentsZero),
			string(models.DependentsOne),
			string(models.DependentsTwo),
			string(models.DependentsThreePlus),
		}},
		{Field: FieldEducation, Labels: []string{string(models.EducationGraduate), string(models.EducationNotGraduate)}},
		{Field: FieldSelfEmployed, Labels: []string{string(models.No), string(models.Yes)}},
		{Field: FieldPropertyArea, Labels: []string{
			string(models.PropertyAreaRural),
			string(models.PropertyAreaSemiurban),
			string(models.PropertyAreaUrban),
		}},
	},
)

// ColumnName returns the one-hot column for a categorical label.
func ColumnName(field, label string) string {
	return field + "_" + label
}

func (t *Table) Version() string { return t.version }

// Columns returns a copy of the column names in vector order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) Width() int { return len(t.columns) }

// Index returns the vector position of a column.
func (t *Table) Index(column string) (int, bool) {
	i, ok := t.index[column]
	return i, ok
}

// Code returns the ordinal code of a categorical label.
func (t *Table) Code(field, label string) (int, bool) {
	codes, ok := t.codes[field]
	if !ok {
		return 0, false
	}
	code, ok := codes[label]
	return code, ok
}

// Labels returns the declared labels of a categorical field.
func (t *Table) Labels(field string) []string {
	for _, c := range t.categorical {
		if c.Field == field {
			return append([]string(nil), c.Labels...)
		}
	}
	return nil
}
