package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/senyabanana/proposal-service/internal/utils"
)

// Pinger проверяет доступность зависимости, например пула базы данных.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHandler обрабатывает GET запрос к /api/ping. Если задан db,
// ответ "ok" означает, что база данных доступна.
func PingHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.Error("database ping failed", slog.Any("error", err))
				utils.SendErrorResponse(w, http.StatusServiceUnavailable, "database is unavailable")
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write ping response", slog.Any("error", err))
		}
	}
}
