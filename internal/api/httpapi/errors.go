package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"road-inspector/internal/domain/entity"
)

// errorKind код вида ошибки в теле ответа
func errorKind(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, entity.ErrDecode):
		return http.StatusBadRequest, "decode_failure"
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, entity.ErrInference):
		return http.StatusInternalServerError, "inference_failure"
	case errors.Is(err, entity.ErrStorage):
		return http.StatusInternalServerError, "storage_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError отвечает {"error": ..., "kind": ...}. Сообщение отдаётся как есть.
func writeError(c *gin.Context, err error) {
	status, kind := errorKind(err)
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "validation_error"})
}
