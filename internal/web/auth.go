package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/config"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/utils"
)

// TokenIntrospectionRequest represents the payload sent to the introspection endpoint
type TokenIntrospectionRequest struct {
	IdentityProvider string `json:"identity_provider"`
	Token            string `json:"token"`
}

// TokenIntrospectionResponse represents the response from the introspection endpoint
type TokenIntrospectionResponse struct {
	Active bool                   `json:"active"`
	Claims map[string]interface{} `json:"claims,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// identClaims are checked in order for the caller's identity
var identClaims = []string{"NAVident", "navident", "nav_ident", "preferred_username", "sub", "upn"}

type subjectKey struct{}

// SubjectFromContext returns the authenticated identity stored by RequireAuth
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey{}).(string)
	return subject
}

// AuthMiddleware authenticates admin requests with bearer tokens and
// authorizes them with an authz decision point
type AuthMiddleware struct {
	introspectionEndpoint string
	identityProvider      string
	authorizer            authz.Authorizer
	client                *resty.Client
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(cfg config.AuthConfig, authorizer authz.Authorizer) *AuthMiddleware {
	identityProvider := cfg.IdentityProvider
	if identityProvider == "" {
		identityProvider = "azuread"
	}

	return &AuthMiddleware{
		introspectionEndpoint: cfg.IntrospectionEndpoint,
		identityProvider:      identityProvider,
		authorizer:            authorizer,
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// RequireAuth is a middleware that validates Bearer tokens and stores the caller's identity in the request context
func (auth *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.introspectionEndpoint == "" {
			logging.Warn().Msg("TOKEN_INTROSPECTION_ENDPOINT not configured - admin access disabled")
			http.Error(w, "Authentication not configured", http.StatusServiceUnavailable)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Bearer token required", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			http.Error(w, "Token cannot be empty", http.StatusUnauthorized)
			return
		}

		valid, subject, err := auth.validateToken(r.Context(), token)
		if err != nil {
			logging.Error().Err(err).Msg("Token validation error")
			http.Error(w, "Token validation failed", http.StatusInternalServerError)
			return
		}

		if !valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
	}
}

// Require authenticates the request and checks that the caller may perform action on object
func (auth *AuthMiddleware) Require(object, action string, next http.HandlerFunc) http.HandlerFunc {
	return auth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		subject := SubjectFromContext(r.Context())

		allowed, err := auth.authorizer.Enforce(subject, object, action)
		if err != nil {
			logging.Error().Err(err).Msg("Authorization error")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !allowed {
			logging.Warn().
				Str("subject", utils.SanitizeLogString(subject)).
				Str("object", object).
				Str("action", action).
				Msg("Access denied")
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}

		next(w, r)
	})
}

// validateToken validates the token with the introspection endpoint and returns the caller's identity
func (auth *AuthMiddleware) validateToken(ctx context.Context, token string) (bool, string, error) {
	var introspection TokenIntrospectionResponse
	resp, err := auth.client.R().
		SetContext(ctx).
		SetBody(TokenIntrospectionRequest{
			IdentityProvider: auth.identityProvider,
			Token:            token,
		}).
		SetResult(&introspection).
		ForceContentType("application/json").
		Post(auth.introspectionEndpoint)
	if err != nil {
		return false, "", fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return false, "", fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode())
	}

	if introspection.Error != "" {
		return false, "", errors.New("introspection error: " + introspection.Error)
	}

	if !introspection.Active {
		return false, "", nil
	}

	subject := identFromClaims(introspection.Claims)
	if subject == "" {
		logging.Warn().Int("claims", len(introspection.Claims)).Msg("No identity found in token claims")
	}
	return true, subject, nil
}

// identFromClaims returns the first non-empty string claim naming the caller
func identFromClaims(claims map[string]interface{}) string {
	for _, name := range identClaims {
		if value, ok := claims[name].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
