// internal/features/encoder.go
package features

import (
	"fmt"

	"loan-sanction/internal/models"
)

// Vector is an encoded feature row. Values follow the column order of the table
// named by Version.
type Vector struct {
	Version string
	Values  []float64
}

var numericColumns = map[string]func(models.ApplicantFeatures) float64{
	FieldApplicantIncome:   func(f models.ApplicantFeatures) float64 { return f.ApplicantIncome },
	FieldCoapplicantIncome: func(f models.ApplicantFeatures) float64 { return f.CoapplicantIncome },
	FieldLoanAmount:        func(f models.ApplicantFeatures) float64 { return f.LoanAmount },
	FieldLoanAmountTerm:    func(f models.ApplicantFeatures) float64 { return float64(f.LoanAmountTerm) },
	FieldCreditHistory:     func(f models.ApplicantFeatures) float64 { return float64(f.CreditHistory) },
	ColumnTotalIncome:      totalIncome,
	ColumnEMI:              emi,
	ColumnBalanceIncome: func(f models.ApplicantFeatures) float64 {
		// LoanAmount is in thousands, income is not.
		return totalIncome(f) - emi(f)*1000
	},
}

var categoricalFields = map[string]func(models.ApplicantFeatures) string{
	FieldGender:       func(f models.ApplicantFeatures) string { return string(f.Gender) },
	FieldMarried:      func(f models.ApplicantFeatures) string { return string(f.Married) },
	FieldDependents:   func(f models.ApplicantFeatures) string { return string(f.Dependents) },
	FieldEducation:    func(f models.ApplicantFeatures) string { return string(f.Education) },
	FieldSelfEmployed: func(f models.ApplicantFeatures) string { return string(f.SelfEmployed) },
	FieldPropertyArea: func(f models.ApplicantFeatures) string { return string(f.PropertyArea) },
}

func totalIncome(f models.ApplicantFeatures) float64 {
	return f.ApplicantIncome + f.CoapplicantIncome
}

func emi(f models.ApplicantFeatures) float64 {
	if f.LoanAmountTerm <= 0 {
		return 0
	}
	return f.LoanAmount / float64(f.LoanAmountTerm)
}

type categoricalSlot struct {
	field  string
	label  func(models.ApplicantFeatures) string
	offset int
}

// Encoder turns validated features into vectors for one table.
type Encoder struct {
	table       *Table
	numeric     []func(models.ApplicantFeatures) float64
	categorical []categoricalSlot
}

// NewEncoder binds every table column to an extractor. It fails for tables naming
// columns this package does not know how to compute.
func NewEncoder(table *Table) (*Encoder, error) {
	e := &Encoder{table: table}

	for _, col := range table.numeric {
		fn, ok := numericColumns[col]
		if !ok {
			return nil, fmt.Errorf("no extractor for numeric column %q", col)
		}
		e.numeric = append(e.numeric, fn)
	}

	for _, c := range table.categorical {
		fn, ok := categoricalFields[c.Field]
		if !ok {
			return nil, fmt.Errorf("no extractor for categorical field %q", c.Field)
		}
		offset, _ := table.Index(ColumnName(c.Field, c.Labels[0]))
		e.categorical = append(e.categorical, categoricalSlot{field: c.Field, label: fn, offset: offset})
	}

	return e, nil
}

// MustNewEncoder is NewEncoder for tables known to be complete, such as DefaultTable.
func MustNewEncoder(table *Table) *Encoder {
	e, err := NewEncoder(table)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Encoder) Table() *Table { return e.table }

// Encode is total over validated features and allocates a fresh vector per call.
func (e *Encoder) Encode(f models.ApplicantFeatures) Vector {
	values := make([]float64, e.table.Width())

	for i, fn := range e.numeric {
		values[i] = fn(f)
	}
	for _, slot := range e.categorical {
		if code, ok := e.table.Code(slot.field, slot.label(f)); ok {
			values[slot.offset+code] = 1
		}
	}

	return Vector{Version: e.table.Version(), Values: values}
}
