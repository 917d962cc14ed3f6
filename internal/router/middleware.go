package router

import (
	"net/http"
	"strings"
	"sync"

	"github.com/senyabanana/proposal-service/internal/auth"
	"github.com/senyabanana/proposal-service/internal/utils"

	"golang.org/x/time/rate"
)

// authenticate проверяет токен из заголовка Authorization и кладет участника в контекст.
func authenticate(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			utils.SendErrorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		actor, err := auth.ValidateToken(strings.TrimSpace(token), secret)
		if err != nil {
			utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

// limiters хранит ограничитель частоты запросов для каждого участника.
type limiters struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	byKey map[string]*rate.Limiter
}

func newLimiters(rps float64, burst int) *limiters {
	if burst <= 0 {
		burst = 1
	}
	return &limiters{rps: rate.Limit(rps), burst: burst, byKey: make(map[string]*rate.Limiter)}
}

func (l *limiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.byKey[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.byKey[key] = lim
	}
	return lim
}

// rateLimit отвечает 429, если участник превысил лимит. Нулевой rps отключает лимит.
func rateLimit(l *limiters, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		actor, _ := auth.ActorFromContext(r.Context())
		if !l.get(actor.UserID).Allow() {
			w.Header().Set("Retry-After", "1")
			utils.SendErrorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
