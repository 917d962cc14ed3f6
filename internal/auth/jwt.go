package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims - содержимое токена участника.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken выпускает токен для участника.
func GenerateToken(actor models.Actor, secretKey string, ttl time.Duration) (string, error) {
	if !actor.Role.Valid() {
		return "", fmt.Errorf("cannot issue token for role %q", actor.Role)
	}
	now := time.Now()
	claims := &Claims{
		UserID: actor.UserID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   actor.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// ValidateToken проверяет подпись и срок токена и возвращает участника.
func ValidateToken(tokenString, secretKey string) (models.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return models.Actor{}, errors.New("invalid JWT")
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return models.Actor{}, errors.New("token has no user id or role")
	}
	return models.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}

type actorKey struct{}

// WithActor сохраняет участника в контексте запроса.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext возвращает участника, положенного WithActor.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}
