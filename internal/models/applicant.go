// internal/models/applicant.go
package models

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

type YesNo string

const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

type Dependents string

const (
	DependentsZero      Dependents = "0"
	DependentsOne       Dependents = "1"
	DependentsTwo       Dependents = "2"
	DependentsThreePlus Dependents = "3+"
)

type Education string

const (
	EducationGraduate    Education = "Graduate"
	EducationNotGraduate Education = "Not Graduate"
)

type PropertyArea string

const (
	PropertyAreaUrban     PropertyArea = "Urban"
	PropertyAreaSemiurban PropertyArea = "Semiurban"
	PropertyAreaRural     PropertyArea = "Rural"
)

// ApplicantFeatures is a validated loan application. Values are only produced by the
// feature validator, so every enum holds a declared label and every number is finite.
type ApplicantFeatures struct {
	Gender            Gender       `json:"Gender"`
	Married           YesNo        `json:"Married"`
	Dependents        Dependents   `json:"Dependents"`
	Education         Education    `json:"Education"`
	SelfEmployed      YesNo        `json:"Self_Employed"`
	ApplicantIncome   float64      `json:"ApplicantIncome"`
	CoapplicantIncome float64      `json:"CoapplicantIncome"`
	LoanAmount        float64      `json:"LoanAmount"` // thousands of currency units
	LoanAmountTerm    int          `json:"Loan_Amount_Term"`
	CreditHistory     int          `json:"Credit_History"`
	PropertyArea      PropertyArea `json:"Property_Area"`
}

// DefaultApplication mirrors the browser form's initial state.
func DefaultApplication() ApplicantFeatures {
	return ApplicantFeatures{
		Gender:            GenderMale,
		Married:           No,
		Dependents:        DependentsZero,
		Education:         EducationGraduate,
		SelfEmployed:      No,
		ApplicantIncome:   5000,
		CoapplicantIncome: 0,
		LoanAmount:        150,
		LoanAmountTerm:    360,
		CreditHistory:     1,
		PropertyArea:      PropertyAreaUrban,
	}
}
