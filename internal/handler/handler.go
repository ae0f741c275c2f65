// Package handler implements the HTTP endpoints of the API on gin.
package handler

import (
	"github.com/YuminosukeSato/mlapi/internal/service/dataset"
	"github.com/YuminosukeSato/mlapi/internal/service/ml"
)

// Handlers groups every endpoint handler.
type Handlers struct {
	System   *SystemHandler
	Analysis *AnalysisHandler
	ML       *MLHandler
}

// NewHandlers creates all handlers.
func NewHandlers(version string, maxUploadBytes int64, datasets *dataset.Service, models *ml.Service) *Handlers {
	return &Handlers{
		System:   NewSystemHandler(version),
		Analysis: NewAnalysisHandler(datasets, maxUploadBytes),
		ML:       NewMLHandler(models),
	}
}
