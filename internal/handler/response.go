package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// BadRequest writes a 400 response.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: msg})
}

// Error maps err to a status code by its kind: not found is 404, invalid
// input is 400 and anything else is 500. Server errors are attached to the
// gin context so the logging middleware records them.
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: notFoundDetail(err)})
	case errors.IsInvalidInput(err):
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
	}
}

func notFoundDetail(err error) string {
	var nf *errors.NotFoundError
	if errors.As(err, &nf) {
		return nf.Resource + " not found"
	}
	return err.Error()
}
