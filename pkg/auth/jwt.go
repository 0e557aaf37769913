// Package auth validates bearer tokens for the operator API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apphttp "github.com/tablepilot/platform-sync/pkg/app/http"
	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// OperatorValidator validates HS256 operator tokens issued out of band
// (CI, runbooks). The /ops endpoints are internal; a shared secret is
// sufficient and avoids a JWKS dependency.
type OperatorValidator struct {
	secret []byte
	issuer string
}

// NewOperatorValidator creates a validator for the given shared secret.
// Issuer is optional; when set, tokens must carry a matching iss claim.
func NewOperatorValidator(secret, issuer string) *OperatorValidator {
	return &OperatorValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and validates a token string and returns its claims.
func (v *OperatorValidator) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("operator auth not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware rejects requests without a valid operator bearer token.
func (v *OperatorValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(ErrMissingToken, "missing bearer token"))
			return
		}

		if _, err := v.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid bearer token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
