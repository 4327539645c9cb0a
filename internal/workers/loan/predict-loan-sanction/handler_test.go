package predictloansanction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-sanction/internal/common/config"
	"loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/features"
	"loan-sanction/internal/inference"
	"loan-sanction/internal/model"
	"loan-sanction/internal/model/modeltest"
	"loan-sanction/internal/models"
)

// ==========================
// Mock Predictor
// ==========================

type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, raw []byte) (*inference.Prediction, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.Prediction), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createJobVariables(t *testing.T, application interface{}) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"application": application,
		"applicantId": "A-1001",
	})
	require.NoError(t, err)
	return string(data)
}

func newTestHandler(t *testing.T, p Predictor) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{Predictor: p, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return h
}

func newRealPredictor(t *testing.T) *inference.Predictor {
	t.Helper()
	e := inference.NewEngine(features.DefaultTable, logger.NewNoOpLogger())
	require.NoError(t, e.Load(context.Background(), model.NewFileSource(modeltest.WriteForest(t))))
	return inference.NewPredictor(features.MustNewEncoder(features.DefaultTable), e, inference.NewShaper(inference.DefaultPrecision), logger.NewNoOpLogger())
}

// ==========================
// Handler Creation Tests
// ==========================

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "defaults",
			opts: HandlerOptions{Predictor: &MockPredictor{}, Logger: logger.NewNoOpLogger()},
		},
		{
			name:    "missing predictor",
			opts:    HandlerOptions{Logger: logger.NewNoOpLogger()},
			wantErr: "predictor is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				Config:    &Config{Enabled: true, MaxJobsActive: 1},
				Predictor: &MockPredictor{},
			},
			wantErr: "timeout must be positive",
		},
		{
			name: "invalid max jobs",
			opts: HandlerOptions{
				Config:    &Config{Enabled: true, Timeout: time.Second},
				Predictor: &MockPredictor{},
			},
			wantErr: "max_jobs_active must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultConfig(), h.Config())
		})
	}
}

func TestConfigFromWorker(t *testing.T) {
	cfg := ConfigFromWorker(config.WorkerConfig{Enabled: true, MaxJobsActive: 4, Timeout: 2500})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 4, cfg.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)

	cfg = ConfigFromWorker(config.WorkerConfig{})
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultConfig().MaxJobsActive, cfg.MaxJobsActive)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := ParseInput(createJobVariables(t, models.DefaultApplication()))
	require.NoError(t, err)

	var f models.ApplicantFeatures
	require.NoError(t, json.Unmarshal(input.Application, &f))
	assert.Equal(t, models.DefaultApplication(), f)
}

func TestParseInput_Errors(t *testing.T) {
	tests := []struct {
		name      string
		variables string
	}{
		{"not json", "{"},
		{"missing application", `{"applicantId":"A-1"}`},
		{"null application", `{"application":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput(tt.variables)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeMalformedPayload))
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_MapsPrediction(t *testing.T) {
	p := &MockPredictor{}
	raw := json.RawMessage(`{"Gender":"Male"}`)
	p.On("Predict", mock.Anything, []byte(raw)).Return(&inference.Prediction{
		Result: models.PredictionResult{
			Status:     models.DecisionApproved,
			Confidence: 0.81,
			Message:    inference.MessageApproved,
		},
		Meta: models.PredictionMeta{ModelVersion: "1.0.0", EncodingVersion: "v1"},
	}, nil)

	out, err := newTestHandler(t, p).Execute(context.Background(), &Input{Application: raw})
	require.NoError(t, err)

	assert.Equal(t, &Output{
		LoanStatus:      "Y",
		Confidence:      0.81,
		Message:         inference.MessageApproved,
		ModelVersion:    "1.0.0",
		EncodingVersion: "v1",
	}, out)
	p.AssertExpectations(t)
}

func TestHandler_Execute_PropagatesStandardErrors(t *testing.T) {
	p := &MockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.NewModelUnavailableError(nil))

	_, err := newTestHandler(t, p).Execute(context.Background(), &Input{Application: json.RawMessage(`{}`)})
	require.Error(t, err)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeModelUnavailable, stdErr.Code)

	bpmn := errors.ConvertToBPMNError(stdErr)
	assert.Equal(t, "PREDICTION_MODEL_UNAVAILABLE", bpmn.Code)
	assert.True(t, errors.ShouldRetry(stdErr, 3))
}

func TestHandler_Execute_WithModel(t *testing.T) {
	h := newTestHandler(t, newRealPredictor(t))

	input, err := ParseInput(createJobVariables(t, models.DefaultApplication()))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Y", out.LoanStatus)
	assert.Equal(t, 0.72, out.Confidence)
	assert.Equal(t, inference.MessageApproved, out.Message)
	assert.Equal(t, "test-1", out.ModelVersion)
	assert.Equal(t, "v1", out.EncodingVersion)
}

func TestHandler_Execute_InvalidApplicationThrowsBusinessError(t *testing.T) {
	h := newTestHandler(t, newRealPredictor(t))

	app := map[string]interface{}{"Gender": "Other"}
	input, err := ParseInput(createJobVariables(t, app))
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), input)
	require.Error(t, err)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
	assert.NotEmpty(t, stdErr.Fields)
	assert.False(t, errors.ShouldRetry(stdErr, 3))
	assert.Equal(t, "LOAN_APPLICATION_INVALID", errors.ConvertToBPMNError(stdErr).Code)
}
