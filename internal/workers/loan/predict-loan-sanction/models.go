// internal/workers/loan/predict-loan-sanction/models.go
package predictloansanction

import "encoding/json"

// Input carries the same JSON object the HTTP API accepts.
type Input struct {
	Application json.RawMessage `json:"application"`
}

type Output struct {
	LoanStatus      string  `json:"loanStatus"`
	Confidence      float64 `json:"confidence"`
	Message         string  `json:"message"`
	ModelVersion    string  `json:"modelVersion"`
	EncodingVersion string  `json:"encodingVersion"`
}
