package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/utils"
)

type contextKey string

const identityKey contextKey = "identity"

type Authenticator struct {
	Verifier Verifier
	Logger   *logger.Logger
}

func NewAuthenticator(v Verifier, log *logger.Logger) *Authenticator {
	return &Authenticator{Verifier: v, Logger: log}
}

// Require rejects requests without a valid bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		if err != nil {
			a.Logger.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			utils.WriteError(w, apperr.New(apperr.CodeUnauthorized, apperr.KindUnauthorized, "Sign in to continue"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
	})
}

// Optional attaches the caller's identity when a valid token is present and
// lets anonymous requests through. A token that is present but invalid is
// still rejected.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		switch {
		case errors.Is(err, ErrMissingToken):
			next.ServeHTTP(w, r)
		case err != nil:
			a.Logger.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			utils.WriteError(w, apperr.New(apperr.CodeUnauthorized, apperr.KindUnauthorized, "Your session is not valid"))
		default:
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		}
	})
}

func (a *Authenticator) identify(r *http.Request) (*Identity, error) {
	raw, err := ExtractTokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	return a.Verifier.Verify(r.Context(), raw)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if id, ok := IdentityFrom(ctx); ok {
		return id.UserID
	}
	return ""
}
