package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/senyabanana/proposal-service/internal/models"
)

// partialAcceptanceBody - тело ответа при незавершенном каскаде принятия.
type partialAcceptanceBody struct {
	Kind    models.ErrorKind               `json:"kind"`
	Reason  string                         `json:"reason"`
	Details *models.PartialAcceptanceError `json:"details"`
}

// SendJSON отправляет значение в формате JSON с кодом statusCode.
func SendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	SendJSON(w, statusCode, models.ErrorResponse{
		StatusCode: statusCode,
		Kind:       kindForStatus(statusCode),
		Message:    message,
	})
}

// SendError отправляет ошибку сервиса и возвращает код ответа.
// Ошибки без класса отдаются как 500 с сообщением fallback.
func SendError(w http.ResponseWriter, err error, fallback string) int {
	var partial *models.PartialAcceptanceError
	if errors.As(err, &partial) {
		SendJSON(w, http.StatusInternalServerError, partialAcceptanceBody{
			Kind:    models.KindPartialAcceptance,
			Reason:  "proposal was accepted but the acceptance did not complete, retry to resume",
			Details: partial,
		})
		return http.StatusInternalServerError
	}
	if resp, ok := models.AsErrorResponse(err); ok {
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		SendJSON(w, status, resp)
		return status
	}
	SendJSON(w, http.StatusInternalServerError, models.ErrorResponse{Message: fallback})
	return http.StatusInternalServerError
}

func kindForStatus(statusCode int) models.ErrorKind {
	switch statusCode {
	case http.StatusBadRequest:
		return models.KindBadRequest
	case http.StatusForbidden:
		return models.KindForbidden
	case http.StatusNotFound:
		return models.KindNotFound
	case http.StatusConflict:
		return models.KindConflict
	case http.StatusUnprocessableEntity:
		return models.KindValidation
	}
	return ""
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	}

	return limit, offset, nil
}
