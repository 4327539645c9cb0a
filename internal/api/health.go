// internal/api/health.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loan-sanction/internal/inference"
	"loan-sanction/internal/model"
)

// ModelStatus is the engine surface the health endpoints read.
type ModelStatus interface {
	State() inference.State
	Info() model.Info
}

// Pinger is an optional dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	model      ModelStatus
	encoding   string
	components map[string]Pinger
}

// NewHealthHandler reports the model state plus one entry per named dependency.
func NewHealthHandler(m ModelStatus, encodingVersion string, components map[string]Pinger) *HealthHandler {
	return &HealthHandler{model: m, encoding: encodingVersion, components: components}
}

type HealthStatus struct {
	Status          string            `json:"status"`
	Model           string            `json:"model"`
	ModelVersion    string            `json:"modelVersion,omitempty"`
	EncodingVersion string            `json:"encodingVersion"`
	Components      map[string]string `json:"components"`
}

// Health handles GET /health. It is a liveness probe: the process answers 200 even
// without a model so it is not restarted into the same failed load.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{"model": h.model.State().String()}
	for name, dep := range h.components {
		if err := dep.Ping(ctx); err != nil {
			components[name] = "error: " + err.Error()
		} else {
			components[name] = "ok"
		}
	}

	c.JSON(http.StatusOK, HealthStatus{
		Status:          "healthy",
		Model:           h.model.State().String(),
		ModelVersion:    h.model.Info().Version,
		EncodingVersion: h.encoding,
		Components:      components,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.model.State() != inference.StateReady {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "model not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "modelVersion": h.model.Info().Version})
}
