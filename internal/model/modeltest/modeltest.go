// Package modeltest provides a small deterministic forest and classifier stubs for tests.
package modeltest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"loan-sanction/internal/model"
	"loan-sanction/pkg/artifact"
)

// Expected outputs of Forest for the default application.
const (
	DefaultApprovalProbability = 2.15 / 3
	NoCreditRejectProbability  = 0.7
)

// Forest returns a three tree forest over encoding v1. The default application is
// approved with probability 0.7167; without credit history it is rejected with 0.7.
func Forest() *artifact.Artifact {
	return &artifact.Artifact{
		FormatVersion:   artifact.FormatVersion,
		Name:            "loan-sanction-rf",
		Version:         "test-1",
		EncodingVersion: "v1",
		Classes:         []string{"N", "Y"},
		FeatureNames: []string{
			"Credit_History", "ApplicantIncome", "CoapplicantIncome", "LoanAmount",
			"Loan_Amount_Term", "TotalIncome", "EMI", "Balance_Income", "Gender_Male",
			"Married_Yes", "Dependents_3+", "Education_Graduate", "Self_Employed_Yes",
			"Property_Area_Semiurban", "Property_Area_Urban",
		},
		Trees: []artifact.Tree{
			{
				Feature:       []int{0, -2, 7, -2, -2},
				Threshold:     []float64{0.5, -2, 2500, -2, -2},
				ChildrenLeft:  []int{1, -1, 3, -1, -1},
				ChildrenRight: []int{2, -1, 4, -1, -1},
				Value:         [][]float64{{38, 62}, {17, 3}, {21, 59}, {9, 11}, {12, 48}},
			},
			{
				Feature:       []int{0, -2, 13, -2, -2},
				Threshold:     []float64{0.5, -2, 0.5, -2, -2},
				ChildrenLeft:  []int{1, -1, 3, -1, -1},
				ChildrenRight: []int{2, -1, 4, -1, -1},
				Value:         [][]float64{{36, 54}, {18, 2}, {18, 52}, {15, 35}, {3, 17}},
			},
			{
				Feature:       []int{5, 3, -2, -2, 9, -2, -2},
				Threshold:     []float64{3000, 100, -2, -2, 0.5, -2, -2},
				ChildrenLeft:  []int{1, 2, -1, -1, 5, -1, -1},
				ChildrenRight: []int{4, 3, -1, -1, 6, -1, -1},
				Value:         [][]float64{{27, 53}, {10, 10}, {4, 6}, {6, 4}, {17, 43}, {7, 13}, {10, 30}},
			},
		},
	}
}

// JSON returns the serialized Forest.
func JSON(t testing.TB) []byte {
	t.Helper()
	data, err := json.Marshal(Forest())
	require.NoError(t, err)
	return data
}

// WriteForest stores Forest in a temp dir and returns its path.
func WriteForest(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loan_rf_test.json")
	require.NoError(t, os.WriteFile(path, JSON(t), 0o600))
	return path
}

// Stub is a Classifier with canned behavior.
type Stub struct {
	ModelInfo model.Info
	Labels    []string
	Features  []string
	Proba     []float64
	Err       error
	Panic     bool
	Calls     atomic.Int32
}

func (s *Stub) Info() model.Info       { return s.ModelInfo }
func (s *Stub) Classes() []string      { return s.Labels }
func (s *Stub) FeatureNames() []string { return s.Features }

func (s *Stub) PredictProba(x []float64) ([]float64, error) {
	s.Calls.Add(1)
	if s.Panic {
		panic("stub classifier panic")
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]float64(nil), s.Proba...), nil
}

// Source serves a fixed artifact or error.
type Source struct {
	Artifact *artifact.Artifact
	Err      error
}

func (s *Source) Fetch(_ context.Context) (*artifact.Artifact, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Artifact, nil
}

func (s *Source) String() string { return "stub" }
