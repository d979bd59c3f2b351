// Package handlers implements the versioned HTTP API over the analysis
// service. Handlers translate between transport and application types; no
// business rules live here.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vantagelab/termlens/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error to its HTTP status via the error
// code taxonomy. Server-side causes are masked; the code alone is enough for
// a client to act on.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal error"
	}
	c.JSON(status, ErrorResponse{Code: code.String(), Message: message})
}
