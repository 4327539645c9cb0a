// internal/inference/predictor.go
package inference

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/metrics"
	"loan-sanction/internal/features"
	"loan-sanction/internal/models"
)

// Prediction is a shaped result plus the versions that produced it.
type Prediction struct {
	Result models.PredictionResult
	Meta   models.PredictionMeta
}

// Recorder receives one call per prediction outcome.
type Recorder interface {
	RecordPrediction(ctx context.Context, status string, duration time.Duration)
}

// Predictor runs the full pipeline: validate, encode, score, shape. Applicant data
// never leaves the call; only the outcome is logged.
type Predictor struct {
	validator *features.Validator
	encoder   *features.Encoder
	engine    *Engine
	shaper    *Shaper
	logger    logger.Logger
	tracer    trace.Tracer
	recorder  Recorder
}

type Option func(*Predictor)

func WithTracer(t trace.Tracer) Option {
	return func(p *Predictor) { p.tracer = t }
}

func WithRecorder(r Recorder) Option {
	return func(p *Predictor) { p.recorder = r }
}

func NewPredictor(encoder *features.Encoder, engine *Engine, shaper *Shaper, log logger.Logger, opts ...Option) *Predictor {
	p := &Predictor{
		validator: features.NewValidator(),
		encoder:   encoder,
		engine:    engine,
		shaper:    shaper,
		logger:    log,
		tracer:    noop.NewTracerProvider().Tracer("inference"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Predictor) Engine() *Engine { return p.engine }

// Predict scores a raw JSON application. While the model is not loaded every call
// fails with MODEL_UNAVAILABLE, whatever the payload.
func (p *Predictor) Predict(ctx context.Context, raw []byte) (*Prediction, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "inference.Predict")
	defer span.End()

	pred, err := p.predict(ctx, span, raw)
	elapsed := time.Since(start)
	metrics.PredictionDuration.Observe(elapsed.Seconds())

	if err != nil {
		stdErr := apperrors.Normalize(err)
		metrics.PredictionFailures.WithLabelValues(string(stdErr.Code)).Inc()
		span.SetStatus(codes.Error, string(stdErr.Code))
		span.SetAttributes(attribute.String("error.code", string(stdErr.Code)))
		p.record(ctx, string(stdErr.Code), elapsed)
		p.logFailure(ctx, stdErr)
		return nil, stdErr
	}

	status := string(pred.Result.Status)
	metrics.PredictionsTotal.WithLabelValues(status).Inc()
	span.SetAttributes(
		attribute.String("prediction.status", status),
		attribute.Float64("prediction.confidence", pred.Result.Confidence),
	)
	p.record(ctx, status, elapsed)

	p.logger.Info("Prediction completed", map[string]interface{}{
		"requestId":       RequestIDFromContext(ctx),
		"status":          status,
		"confidence":      pred.Result.Confidence,
		"modelVersion":    pred.Meta.ModelVersion,
		"encodingVersion": pred.Meta.EncodingVersion,
		"durationMs":      elapsed.Milliseconds(),
	})
	return pred, nil
}

func (p *Predictor) predict(ctx context.Context, span trace.Span, raw []byte) (*Prediction, error) {
	if !p.engine.Ready() {
		return nil, apperrors.NewModelUnavailableError(p.engine.LoadError())
	}

	f, err := p.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	span.AddEvent("validated")

	v := p.encoder.Encode(f)
	span.AddEvent("encoded", trace.WithAttributes(attribute.String("encoding.version", v.Version)))

	decision, probability, err := p.engine.Predict(ctx, v)
	if err != nil {
		return nil, err
	}

	info := p.engine.Info()
	return &Prediction{
		Result: p.shaper.Shape(decision, probability),
		Meta: models.PredictionMeta{
			ModelVersion:    info.Version,
			EncodingVersion: v.Version,
		},
	}, nil
}

func (p *Predictor) record(ctx context.Context, status string, d time.Duration) {
	if p.recorder != nil {
		p.recorder.RecordPrediction(ctx, status, d)
	}
}

func (p *Predictor) logFailure(ctx context.Context, stdErr *apperrors.StandardError) {
	fields := map[string]interface{}{
		"requestId": RequestIDFromContext(ctx),
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	}
	switch apperrors.Kind(stdErr.Code) {
	case apperrors.KindValidation:
		fields["invalidFields"] = len(stdErr.Fields)
		p.logger.Debug("Prediction rejected", fields)
	case apperrors.KindInternal:
		p.logger.Error("Prediction failed", fields)
	default:
		p.logger.Warn("Prediction failed", fields)
	}
}

type requestIDKey struct{}

// ContextWithRequestID tags ctx so log lines can be correlated across transports.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
