package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/models"
	"chatllm-backend/internal/services"
)

const maxMessageLimit = 100

type ConversationHandler struct {
	svc              *services.ConversationService
	inferenceTimeout time.Duration
	logger           *zap.Logger
}

func NewConversationHandler(svc *services.ConversationService, inferenceTimeout time.Duration, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{svc: svc, inferenceTimeout: inferenceTimeout, logger: logger}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeDecodeError(w, r, err)
		return
	}

	conv, err := h.svc.Create(r.Context(), middleware.GetUser(r.Context()), req.Title)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.svc.List(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

func (h *ConversationHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req models.UpdateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	conv, err := h.svc.Rename(r.Context(), middleware.GetUser(r.Context()), id, *req.Title)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	limit := services.DefaultMessageLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMessageLimit {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"limit": "Must be an integer between 1 and 100"}, r))
			return
		}
		limit = n
	}

	var before *time.Time
	if raw := q.Get("before_timestamp"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"before_timestamp": "Must be an ISO 8601 timestamp"}, r))
			return
		}
		before = &t
	}

	messages, err := h.svc.GetMessages(r.Context(), middleware.GetUser(r.Context()), id, before, limit)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *ConversationHandler) Converse(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req models.ConverseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.inferenceTimeout)
	defer cancel()

	reply, err := h.svc.Converse(ctx, middleware.GetUser(r.Context()), id, *req.Content)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ConverseResponse{
		Content:   reply.Content,
		Role:      reply.Role,
		Timestamp: reply.Timestamp,
	})
}

func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return uuid.Nil, false
	}
	return id, true
}

// parseTimestamp accepts RFC 3339 and zone-less ISO timestamps, the latter
// read as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", raw, time.UTC)
}
