package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

const firebaseIssuerPrefix = "https://securetoken.google.com/"

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier turns a bearer token into the authenticated user's ID.
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
}

// FirebaseVerifier checks Firebase Auth ID tokens against Google's published signing keys.
type FirebaseVerifier struct {
	keyFunc   jwt.Keyfunc
	projectID string
	jwks      *keyfunc.JWKS
}

// NewFirebaseVerifier downloads the JWKS and keeps it refreshed in the background.
func NewFirebaseVerifier(jwksURL, projectID string) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firebase project ID is empty")
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshUnknownKID: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	v := newFirebaseVerifier(jwks.Keyfunc, projectID)
	v.jwks = jwks
	return v, nil
}

func newFirebaseVerifier(kf jwt.Keyfunc, projectID string) *FirebaseVerifier {
	return &FirebaseVerifier{keyFunc: kf, projectID: projectID}
}

func (v *FirebaseVerifier) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(firebaseIssuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return sub, nil
}

// Close stops the background JWKS refresh.
func (v *FirebaseVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func AuthMiddleware(verifier TokenVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				logger.Error().Msg("Token verifier not configured")
				http.Error(w, "authentication unavailable", http.StatusInternalServerError)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Error().Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Error().Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			userID, err := verifier.VerifyToken(parts[1])
			if err != nil {
				logger.Error().Err(err).Msg("Invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			// Embed user ID into request context
			ctx := context.WithValue(r.Context(), UserContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
