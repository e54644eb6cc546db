package middleware

import (
	"context"
	"fmt"
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/utils"
)

// AuthConfig holds the HS256 token settings for mutating routes.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// EnsureValidToken returns a middleware that rejects requests without a
// valid bearer token. With no secret configured it lets every request
// through.
func EnsureValidToken(cfg AuthConfig, log zerolog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.Secret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set, write routes are unauthenticated")
		return func(next http.Handler) http.Handler { return next }, nil
	}

	keyFunc := func(context.Context) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}
	var audience []string
	if cfg.Audience != "" {
		audience = []string{cfg.Audience}
	}
	jwtValidator, err := validator.New(keyFunc, validator.HS256, cfg.Issuer, audience)
	if err != nil {
		return nil, fmt.Errorf("set up jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("jwt validation failed")
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized, "Failed to validate JWT.", nil, http.StatusUnauthorized))
	}
	mw := jwtmiddleware.New(jwtValidator.ValidateToken, jwtmiddleware.WithErrorHandler(errorHandler))
	return mw.CheckJWT, nil
}

// Subject returns the subject of the validated token on the request, if any.
func Subject(r *http.Request) string {
	claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok {
		return ""
	}
	return claims.RegisteredClaims.Subject
}
