// internal/inference/engine.go
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/metrics"
	"loan-sanction/internal/features"
	"loan-sanction/internal/model"
	"loan-sanction/internal/models"
)

// State is the engine lifecycle. It only ever moves from Uninitialized to Ready.
type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// probabilityTolerance absorbs float error in averaged tree distributions.
const probabilityTolerance = 1e-9

var approvedLabels = map[string]struct{}{
	"Y":        {},
	"YES":      {},
	"1":        {},
	"APPROVED": {},
}

// NormalizeClass maps a model class label onto a decision.
func NormalizeClass(label string) models.Decision {
	if _, ok := approvedLabels[strings.ToUpper(strings.TrimSpace(label))]; ok {
		return models.DecisionApproved
	}
	return models.DecisionRejected
}

// Engine scores encoded vectors with one model loaded exactly once. After Load the
// engine is read-only and safe for concurrent Predict calls.
type Engine struct {
	table  *features.Table
	logger logger.Logger

	state   atomic.Int32
	once    sync.Once
	loadErr error

	classifier model.Classifier
	projection []int
	decisions  []models.Decision
}

func NewEngine(table *features.Table, log logger.Logger) *Engine {
	metrics.ModelReady.Set(0)
	return &Engine{table: table, logger: log}
}

// Load fetches the artifact from src and installs it. Only the first call of Load or
// Use has any effect; a failed first load leaves the engine Uninitialized for good.
func (e *Engine) Load(ctx context.Context, src model.Source) error {
	return e.init(func() (model.Classifier, error) {
		a, err := src.Fetch(ctx)
		if err != nil {
			return nil, apperrors.NewModelUnavailableError(fmt.Errorf("fetch %s: %w", src, err))
		}
		ens, err := model.NewEnsemble(a)
		if err != nil {
			return nil, apperrors.NewArtifactInvalidError(err.Error())
		}
		return ens, nil
	})
}

// Use installs an already constructed classifier.
func (e *Engine) Use(c model.Classifier) error {
	return e.init(func() (model.Classifier, error) { return c, nil })
}

var errAlreadyInitialized = errors.New("engine already initialized")

func (e *Engine) init(build func() (model.Classifier, error)) error {
	ran := false
	e.once.Do(func() {
		ran = true
		e.loadErr = e.install(build)
		if e.loadErr != nil {
			e.logger.Error("Model load failed", map[string]interface{}{"error": e.loadErr.Error()})
			return
		}
		info := e.classifier.Info()
		metrics.ModelReady.Set(1)
		metrics.ModelInfo.WithLabelValues(info.Name, info.Version, info.EncodingVersion).Set(1)
		e.logger.Info("Model loaded", map[string]interface{}{
			"model":           info.Name,
			"modelVersion":    info.Version,
			"encodingVersion": info.EncodingVersion,
			"features":        len(e.projection),
		})
	})
	if !ran {
		if e.loadErr != nil {
			return e.loadErr
		}
		return errAlreadyInitialized
	}
	return e.loadErr
}

func (e *Engine) install(build func() (model.Classifier, error)) error {
	c, err := build()
	if err != nil {
		return err
	}

	info := c.Info()
	if info.EncodingVersion != e.table.Version() {
		return apperrors.NewEncodingMismatchError(e.table.Version(), info.EncodingVersion)
	}

	classes := c.Classes()
	if len(classes) != 2 {
		return apperrors.NewArtifactInvalidError(fmt.Sprintf("binary classifier required, got %d classes", len(classes)))
	}
	decisions := []models.Decision{NormalizeClass(classes[0]), NormalizeClass(classes[1])}
	if decisions[0] == decisions[1] {
		return apperrors.NewArtifactInvalidError(fmt.Sprintf("classes %q do not contain one approved and one rejected label", classes))
	}

	names := c.FeatureNames()
	if len(names) == 0 {
		return apperrors.NewArtifactInvalidError("model declares no features")
	}
	projection := make([]int, len(names))
	for i, name := range names {
		idx, ok := e.table.Index(name)
		if !ok {
			return apperrors.NewArtifactInvalidError(fmt.Sprintf("feature %q is not produced by encoding %s", name, e.table.Version()))
		}
		projection[i] = idx
	}

	e.classifier = c
	e.projection = projection
	e.decisions = decisions
	e.state.Store(int32(StateReady))
	return nil
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Ready() bool {
	return e.State() == StateReady
}

// LoadError returns why the engine is not Ready, if a load was attempted.
func (e *Engine) LoadError() error {
	if e.Ready() {
		return nil
	}
	return e.loadErr
}

// Info describes the loaded model. It is the zero value until Ready.
func (e *Engine) Info() model.Info {
	if !e.Ready() {
		return model.Info{}
	}
	return e.classifier.Info()
}

// Predict returns the decision and the probability of that decision.
func (e *Engine) Predict(ctx context.Context, v features.Vector) (d models.Decision, p float64, err error) {
	if !e.Ready() {
		return "", 0, apperrors.NewModelUnavailableError(e.loadErr)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, apperrors.NewRequestTimeoutError(err)
	}
	if v.Version != e.table.Version() {
		return "", 0, apperrors.NewInferenceFailedError(fmt.Sprintf("vector encoding %q, model expects %q", v.Version, e.table.Version()))
	}
	if len(v.Values) != e.table.Width() {
		return "", 0, apperrors.NewInferenceFailedError(fmt.Sprintf("vector has %d values, want %d", len(v.Values), e.table.Width()))
	}

	x := make([]float64, len(e.projection))
	for i, idx := range e.projection {
		val := v.Values[idx]
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", 0, apperrors.NewInferenceFailedError(fmt.Sprintf("non-finite value in column %d", idx))
		}
		x[i] = val
	}

	proba, err := e.score(x)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, apperrors.NewRequestTimeoutError(err)
	}

	best := 0
	for k := 1; k < len(proba); k++ {
		if proba[k] > proba[best] {
			best = k
		}
	}
	return e.decisions[best], math.Min(1, math.Max(0, proba[best])), nil
}

func (e *Engine) score(x []float64) (proba []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			proba = nil
			err = apperrors.NewInferenceFailedError(fmt.Sprintf("classifier panic: %v", r))
		}
	}()

	proba, err = e.classifier.PredictProba(x)
	if err != nil {
		return nil, apperrors.NewInferenceFailedError(err.Error())
	}
	if len(proba) != len(e.decisions) {
		return nil, apperrors.NewInferenceFailedError(fmt.Sprintf("classifier returned %d probabilities", len(proba)))
	}
	for _, p := range proba {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < -probabilityTolerance || p > 1+probabilityTolerance {
			return nil, apperrors.NewInferenceFailedError(fmt.Sprintf("classifier returned invalid probability %v", p))
		}
	}
	return proba, nil
}
