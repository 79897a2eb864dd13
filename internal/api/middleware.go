package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"marketplace-catalog-service/internal/auth"
)

type ctxKey int

const (
	claimsCtxKey ctxKey = iota
	tokenCtxKey
)

// Response messages for credential failures. These strings are part of the
// API contract with existing clients.
const (
	msgMalformedHeader = "Invalid Authorization header format."
	msgInvalidToken    = "Invalid or expired token."
	msgWrongTokenType  = "Token is not an access token."
	msgAuthRequired    = "Authentication required."
)

// bearerAuth extracts and verifies a bearer credential when one is present.
// No Authorization header means anonymous access: reads stay open to
// anonymous callers, and mutating handlers reject requests without claims.
// A header that is present but malformed or unverifiable is always a 401.
func (h *HTTPHandler) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			respondWithError(w, http.StatusUnauthorized, msgMalformedHeader)
			return
		}

		claims, err := h.verifier.Verify(parts[1])
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrWrongTokenType):
				respondWithError(w, http.StatusUnauthorized, msgWrongTokenType)
			case errors.Is(err, auth.ErrMalformedToken):
				respondWithError(w, http.StatusUnauthorized, msgMalformedHeader)
			default:
				respondWithError(w, http.StatusUnauthorized, msgInvalidToken)
			}
			return
		}

		ctx := context.WithValue(r.Context(), claimsCtxKey, claims)
		ctx = context.WithValue(ctx, tokenCtxKey, parts[1])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromContext returns the verified claims, or nil for anonymous
// requests.
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsCtxKey).(*auth.Claims)
	return claims
}

// tokenFromContext returns the raw bearer credential so it can be forwarded
// to the shop directory unchanged.
func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenCtxKey).(string)
	return token
}
