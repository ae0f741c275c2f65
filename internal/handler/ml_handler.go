package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/internal/service/ml"
)

// MLHandler serves model training and prediction.
type MLHandler struct {
	svc *ml.Service
}

// NewMLHandler creates an MLHandler.
func NewMLHandler(svc *ml.Service) *MLHandler {
	return &MLHandler{svc: svc}
}

// Train fits a random forest on a dataset.
func (h *MLHandler) Train(c *gin.Context) {
	var req ml.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Train(c.Request.Context(), c.Param("dataset_id"), req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// Predict runs a trained model on one sample.
func (h *MLHandler) Predict(c *gin.Context) {
	var req ml.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	prediction, err := h.svc.Predict(c.Request.Context(), c.Param("model_id"), req.Features)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, prediction)
}

// ListModels lists the trained models.
func (h *MLHandler) ListModels(c *gin.Context) {
	Success(c, gin.H{"models": h.svc.ListModels(c.Request.Context())})
}

// GetModel returns the metadata of one model.
func (h *MLHandler) GetModel(c *gin.Context) {
	info, err := h.svc.GetModel(c.Request.Context(), c.Param("model_id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, info)
}
