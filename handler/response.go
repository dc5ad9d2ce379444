package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/altovisual/artist-management-sub002/middleware"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
	"github.com/altovisual/artist-management-sub002/service"
)

// ErrorResponse is the error envelope of every API endpoint
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Code      string `json:"code"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError converts err into the envelope with the status of its kind
func writeError(c *gin.Context, err error) {
	pe := service.AsPipelineError(err)

	resp := ErrorResponse{
		Error:     pe.Message,
		Details:   pe.Details,
		Code:      string(pe.Kind),
		Data:      pe.Data,
		RequestID: middleware.GetRequestID(c),
	}
	if resp.Error == "" {
		resp.Error = string(pe.Kind)
	}
	if pe.Kind == service.KindInternal {
		logger.Error(c.Request.Context(), "request failed", "error", err)
		if resp.Details == "" && pe.Err != nil {
			resp.Details = pe.Err.Error()
		}
	}
	c.JSON(pe.Status(), resp)
}

// badRequest writes a 400 envelope for malformed input
func badRequest(c *gin.Context, msg, details string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     msg,
		Details:   details,
		Code:      "bad_request",
		RequestID: middleware.GetRequestID(c),
	})
}
