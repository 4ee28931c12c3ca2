package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"walletnotify/internal/httputil"
	"walletnotify/internal/logger"
	"walletnotify/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user's ID
	UserIDKey contextKey = "user_id"
)

var errNoVerificationKey = errors.New("no token verification key configured")

// AuthConfig selects how bearer tokens are verified. Precedence is JWKS,
// then PublicKey, then Secret.
type AuthConfig struct {
	// JWKS resolves signing keys from a remote key set by "kid".
	JWKS      jwt.Keyfunc
	Secret    string
	PublicKey *rsa.PublicKey
	Issuer    string
	Audience  string
}

// NewJWKSKeyfunc loads the key set at jwksURL and refreshes it in the
// background until ctx is done. Unknown key ids trigger a rate-limited refetch.
func NewJWKSKeyfunc(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("load jwks %s: %w", jwksURL, err)
	}
	return k.Keyfunc, nil
}

// ParseRSAPublicKey accepts a PEM key, with literal "\n" sequences
// expanded so the key can live on one env line.
func ParseRSAPublicKey(raw string) (*rsa.PublicKey, error) {
	return jwt.ParseRSAPublicKeyFromPEM([]byte(strings.ReplaceAll(raw, `\n`, "\n")))
}

// AuthMiddleware creates a middleware that validates JWT tokens
// Checks the Authorization header first, then the "token" query parameter
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	switch {
	case cfg.JWKS != nil:
		opts = append(opts, jwt.WithValidMethods([]string{
			"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512", "EdDSA",
		}))
	case cfg.PublicKey != nil:
		opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	default:
		opts = append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if cfg.JWKS != nil {
			return cfg.JWKS(token)
		}
		if cfg.PublicKey != nil {
			return cfg.PublicKey, nil
		}
		if cfg.Secret != "" {
			return []byte(cfg.Secret), nil
		}
		return nil, errNoVerificationKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)

			if tokenString == "" {
				httputil.WriteUnauthorizedWithCode(w, model.CodeAuthRequired, "Missing authentication token")
				return
			}

			// Parse and validate token
			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, keyFunc)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				if errors.Is(err, errNoVerificationKey) {
					logger.From(r.Context()).Error("Auth FAILED: no verification key configured")
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}
			if !token.Valid {
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			userID, err := claims.GetSubject()
			if err != nil || userID == "" {
				httputil.WriteUnauthorizedWithCode(w, model.CodeAuthNoUserID, "Authenticated user has no identifier")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	// Expected format: "Bearer <token>"
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// EventSource and similar clients cannot set headers.
	return r.URL.Query().Get("token")
}

// GetUserIDFromContext extracts the user ID from the request context
// Returns the user ID and true if found, or "" and false if not found
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
