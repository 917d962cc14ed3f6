package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/senyabanana/proposal-service/internal/auth"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/utils"
)

// base - общие зависимости обработчиков.
type base struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

func (b base) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), b.Timeout)
}

// actor возвращает участника запроса. Без участника отвечает 401.
func (b base) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "user is not authenticated")
		return models.Actor{}, false
	}
	return actor, true
}

// fail отправляет ошибку сервиса и пишет одну строку лога.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := utils.SendError(w, err, fallback)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	}
	if resp, ok := models.AsErrorResponse(err); ok {
		attrs = append(attrs, slog.String("kind", string(resp.Kind)))
	}
	var partial *models.PartialAcceptanceError
	switch {
	case errors.As(err, &partial):
		attrs = append(attrs, slog.String("kind", string(models.KindPartialAcceptance)), slog.String("operation_id", partial.OperationID))
		b.Logger.Error("request failed", attrs...)
	case status >= http.StatusInternalServerError:
		b.Logger.Error("request failed", attrs...)
	default:
		b.Logger.Info("request rejected", attrs...)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
