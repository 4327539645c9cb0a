// internal/models/prediction.go
package models

// Decision is the binary loan outcome. Its value is the wire status.
type Decision string

const (
	DecisionApproved Decision = "Y"
	DecisionRejected Decision = "N"
)

// Approved reports whether the decision sanctions the loan.
func (d Decision) Approved() bool {
	return d == DecisionApproved
}

func (d Decision) String() string {
	if d.Approved() {
		return "Approved"
	}
	return "Rejected"
}

// PredictionResult is the response body of the predict API. It is built once per
// request and never stored.
type PredictionResult struct {
	Status     Decision `json:"status"`
	Confidence float64  `json:"confidence"`
	Message    string   `json:"message"`
}

// PredictionMeta identifies the model and encoding that produced a result.
type PredictionMeta struct {
	ModelVersion    string `json:"modelVersion"`
	EncodingVersion string `json:"encodingVersion"`
}
