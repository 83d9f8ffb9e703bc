package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	pkgAuth "github.com/angelmondragon/coachledger-backend/pkg/auth"
	"github.com/angelmondragon/coachledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

// Auth verifies the bearer token issued by the platform auth service and
// seeds the request context with the caller identity. Tokens are trusted once
// the signature checks out.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, verifierErr := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifierErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, verifierErr, "token verifier"))
				return
			}
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(header)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID()
			ctx := WithIdentity(r.Context(), userID, claims.Role, claims.CoachID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if claims.CoachID != uuid.Nil {
					ctx = logg.WithCoachID(ctx, claims.CoachID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
