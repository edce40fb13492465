package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/carelane/governor/utils"
)

// actorContextKey is the context key for the authenticated actor id
type actorContextKey struct{}

// ActorMiddleware identifies the human actor behind approval resolutions.
// Tokens are HMAC-signed bearer JWTs whose subject is the actor id; full IdP
// integration lives outside this service.
type ActorMiddleware struct {
	signingKey []byte
	logger     *zap.Logger
}

// NewActorMiddleware creates a new actor middleware. An empty signing key
// disables verification and trusts the X-Actor-ID header (development only).
func NewActorMiddleware(signingKey string, logger *zap.Logger) *ActorMiddleware {
	return &ActorMiddleware{
		signingKey: []byte(signingKey),
		logger:     logger,
	}
}

// RequireActor is a middleware that requires an identified actor
func (m *ActorMiddleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.actorFromRequest(r)
		if err != nil {
			m.logger.Warn("actor identification failed", zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Missing or invalid actor credentials")
			return
		}

		ctx := WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFromRequest extracts and verifies the actor identity
func (m *ActorMiddleware) actorFromRequest(r *http.Request) (string, error) {
	if len(m.signingKey) == 0 {
		actor := r.Header.Get("X-Actor-ID")
		if actor == "" {
			return "", fmt.Errorf("missing X-Actor-ID header")
		}
		return actor, nil
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("missing bearer token")
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token missing subject claim")
	}
	return subject, nil
}

// WithActor stores the actor id in the context
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActorFromContext returns the authenticated actor id, if any
func GetActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
