// internal/workers/loan/predict-loan-sanction/handler.go
package predictloansanction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/metrics"
	"loan-sanction/internal/inference"
)

const TaskType = "predict-loan-sanction"

// Predictor is the inference pipeline shared with the HTTP API.
type Predictor interface {
	Predict(ctx context.Context, raw []byte) (*inference.Prediction, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	predictor    Predictor
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	Config    *Config
	Predictor Predictor
	Logger    logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Predictor == nil {
		return nil, fmt.Errorf("%s: predictor is required", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		logger:       log,
		predictor:    opts.Predictor,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Config() *Config { return h.config }

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx = inference.ContextWithRequestID(ctx, fmt.Sprintf("job-%d", job.GetKey()))

	h.logger.Info("Processing loan sanction job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := ParseInput(job.GetVariables())
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeExternalService)).Inc()
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// ParseInput extracts the `application` variable from a job's variable document.
func ParseInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewMalformedPayloadError(fmt.Sprintf("job variables: %v", err))
	}
	trimmed := bytes.TrimSpace(input.Application)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.NewMalformedPayloadError("job variable 'application' is missing")
	}
	return &input, nil
}

// Execute scores one application. Errors are *errors.StandardError values.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	pred, err := h.predictor.Predict(ctx, input.Application)
	if err != nil {
		return nil, err
	}
	return &Output{
		LoanStatus:      string(pred.Result.Status),
		Confidence:      pred.Result.Confidence,
		Message:         pred.Result.Message,
		ModelVersion:    pred.Meta.ModelVersion,
		EncodingVersion: pred.Meta.EncodingVersion,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	h.logger.Info("Loan sanction job completed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"loanStatus":   output.LoanStatus,
		"confidence":   output.Confidence,
		"modelVersion": output.ModelVersion,
	})
	return nil
}
