// Package respond writes JSON bodies and translates application errors into HTTP responses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
)

// Error codes carried in the error envelope.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "INVALID_STATE"
	CodeBadRequest   = "BAD_REQUEST"
	CodeInternal     = "INTERNAL"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NoContent writes 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes the envelope for err. Errors that are not application errors, and data-access
// failures, become a generic 500 and are logged.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code, msg := classify(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
	JSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: CodeBadRequest, Message: msg}})
}

// Status returns the HTTP status Error would write for err.
func Status(err error) int {
	status, _, _ := classify(err)
	return status
}

func classify(err error) (int, string, string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
	switch appErr.Kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, CodeUnauthorized, appErr.Error()
	case apperr.KindTokenVerify:
		return http.StatusUnauthorized, CodeUnauthorized, "invalid token"
	case apperr.KindTokenExpired:
		return http.StatusUnauthorized, CodeTokenExpired, "token expired"
	case apperr.KindNotFound:
		return http.StatusNotFound, CodeNotFound, appErr.Error()
	case apperr.KindInvalidState:
		return http.StatusConflict, CodeConflict, appErr.Error()
	case apperr.KindForbidden:
		return http.StatusForbidden, CodeForbidden, appErr.Error()
	case apperr.KindValidation:
		return http.StatusBadRequest, CodeBadRequest, appErr.Error()
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}
