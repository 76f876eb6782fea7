package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/models"
	"chatllm-backend/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errEmptyBody = errors.New("empty request body")

// decodeJSON reads the body into dst and runs struct validation. An empty
// body is reported as errEmptyBody so callers with all-optional payloads can
// accept it.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "Field is required"
		case "email":
			fields[fe.Field()] = "Invalid email format"
		default:
			fields[fe.Field()] = "Invalid value"
		}
	}
	return &services.ValidationError{Fields: fields}
}

// writeDecodeError answers a body that failed decoding or validation.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", vErr.Fields, r))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		validationErr   *services.ValidationError
		conflictErr     *services.ConflictError
		notFoundErr     *services.NotFoundError
		unauthorizedErr *services.UnauthorizedError
		inferenceErr    *services.InferenceError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &conflictErr):
		// Duplicate registration is a client error in this API, not 409.
		writeJSON(w, http.StatusBadRequest, errorResp("CONFLICT", conflictErr.Message, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.Is(err, middleware.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Could not validate credentials", r))
	case errors.As(err, &unauthorizedErr):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorizedErr.Message, r))
	case errors.As(err, &inferenceErr):
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, errorResp("AI_TIMEOUT", "Timed out waiting for AI response", r))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", "Failed to get AI response", r))
	default:
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(middleware.RequestIDHeader)),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
