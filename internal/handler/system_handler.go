package handler

import (
	"github.com/gin-gonic/gin"
)

// SystemHandler serves the root and health endpoints.
type SystemHandler struct {
	version string
}

// NewSystemHandler creates a SystemHandler reporting version.
func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{version: version}
}

// Root greets the caller.
func (h *SystemHandler) Root(c *gin.Context) {
	Success(c, gin.H{
		"message": "Welcome to ML & Data Analysis API",
		"version": h.version,
	})
}

// Health reports liveness.
func (h *SystemHandler) Health(c *gin.Context) {
	Success(c, gin.H{"status": "ok"})
}
