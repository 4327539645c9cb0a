// internal/inference/shaper.go
package inference

import (
	"math"

	"loan-sanction/internal/models"
)

const (
	MessageApproved = "Congratulations! Based on the provided details, your loan is likely to be sanctioned."
	MessageRejected = "Unfortunately, based on the provided details, the loan is likely to be rejected."
)

// DefaultPrecision is the number of decimals the browser form displays.
const DefaultPrecision = 2

// Shaper turns an engine decision into the response body.
type Shaper struct {
	scale float64
}

func NewShaper(precision int) *Shaper {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &Shaper{scale: math.Pow(10, float64(precision))}
}

func (s *Shaper) Shape(decision models.Decision, probability float64) models.PredictionResult {
	if math.IsNaN(probability) {
		probability = 0
	}
	probability = math.Min(1, math.Max(0, probability))

	result := models.PredictionResult{
		Status:     models.DecisionRejected,
		Confidence: math.Round(probability*s.scale) / s.scale,
		Message:    MessageRejected,
	}
	if decision.Approved() {
		result.Status = models.DecisionApproved
		result.Message = MessageApproved
	}
	return result
}
