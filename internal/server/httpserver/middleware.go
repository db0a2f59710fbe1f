package httpserver

import (
	"net/http"
	"strings"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/netx"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
)

// expiredTokenMessage tells clients to refresh rather than log in again.
const expiredTokenMessage = "access token expired"

// originIP records the caller address for revocation audit. When the router
// trusts proxy headers it runs after middleware.RealIP and sees their value.
func originIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := netx.WithOriginIP(r.Context(), netx.RequestIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerAuth verifies the access token and stores the principal in the
// request context.
func bearerAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing token")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0]+" ", common.BearerPrefix) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			claims, err := tokens.Verify(strings.TrimSpace(parts[1]))
			if auth.IsExpired(err) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", expiredTokenMessage)
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", common.ErrInvalidToken.Error())
				return
			}

			ctx := auth.NewContext(r.Context(), auth.PrincipalFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
