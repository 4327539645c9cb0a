// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/internal/inference"
)

// PredictService is the inference pipeline as seen by transports.
type PredictService interface {
	Predict(ctx context.Context, raw []byte) (*inference.Prediction, error)
}

type PredictHandler struct {
	service  PredictService
	maxBytes int64
}

func NewPredictHandler(service PredictService, maxBytes int64) *PredictHandler {
	return &PredictHandler{service: service, maxBytes: maxBytes}
}

// Predict handles POST /predict
func (h *PredictHandler) Predict(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperrors.NewPayloadTooLargeError(h.maxBytes))
			return
		}
		respondError(c, apperrors.NewMalformedPayloadError(err.Error()))
		return
	}

	pred, err := h.service.Predict(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header(HeaderModelVersion, pred.Meta.ModelVersion)
	c.Header(HeaderEncodingVersion, pred.Meta.EncodingVersion)
	c.JSON(http.StatusOK, pred.Result)
}
