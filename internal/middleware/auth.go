// Package middleware содержит HTTP-обёртки сервиса: аутентификацию, проверку ролей,
// ограничение частоты запросов, журналирование и метрики.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userKey contextKey = "user"

// Claims - поля токена доступа.
type Claims struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext достаёт пользователя, положенного Authenticate.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// Authenticator проверяет токены HS256.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator создаёт Authenticator с общим секретом.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken подписывает токен для пользователя.
func (a *Authenticator) IssueToken(user models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken проверяет подпись и срок действия токена.
func (a *Authenticator) ParseToken(tokenString string) (models.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.User{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" || claims.Role == "" {
		return models.User{}, errors.New("token has no subject or role")
	}
	return models.User{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// Authenticate пропускает только запросы с действительным Bearer-токеном.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			utils.SendErrorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		user, err := a.ParseToken(token)
		if err != nil {
			utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRoles пропускает пользователей с одной из ролей. Администратор проходит всегда.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "authorization required")
				return
			}
			if !user.HasRole(roles...) {
				utils.SendErrorResponse(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
