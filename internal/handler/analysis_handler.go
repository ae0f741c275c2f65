package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/internal/service/analysis"
	"github.com/YuminosukeSato/mlapi/internal/service/dataset"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// AnalysisHandler serves dataset upload and analysis.
type AnalysisHandler struct {
	svc            *dataset.Service
	maxUploadBytes int64
}

// NewAnalysisHandler creates an AnalysisHandler. Request bodies larger than
// maxUploadBytes are rejected; zero disables the limit.
func NewAnalysisHandler(svc *dataset.Service, maxUploadBytes int64) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Upload registers the CSV file of the multipart field "file".
func (h *AnalysisHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Detail: "File too large"})
			return
		}
		BadRequest(c, "No file uploaded")
		return
	}

	f, err := fh.Open()
	if err != nil {
		Error(c, errors.Wrap(err, "failed to open upload"))
		return
	}
	defer f.Close()

	ds, summary, err := h.svc.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"message":    "Dataset uploaded successfully",
		"dataset_id": ds.ID,
		"analysis":   summary,
	})
}

// ListDatasets lists the uploaded datasets.
func (h *AnalysisHandler) ListDatasets(c *gin.Context) {
	Success(c, gin.H{"datasets": h.svc.List(c.Request.Context())})
}

// Summary returns the analysis of a dataset.
func (h *AnalysisHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context(), c.Param("dataset_id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, summary)
}

// Histogram returns the bins and counts of a numeric column.
func (h *AnalysisHandler) Histogram(c *gin.Context) {
	hist, err := h.svc.Histogram(c.Request.Context(), c.Param("dataset_id"), c.Param("column"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, hist)
}

// HistogramPlot renders the histogram of a numeric column as PNG.
func (h *AnalysisHandler) HistogramPlot(c *gin.Context) {
	hist, err := h.svc.Histogram(c.Request.Context(), c.Param("dataset_id"), c.Param("column"))
	if err != nil {
		Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := analysis.RenderHistogram(hist, &buf); err != nil {
		Error(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
