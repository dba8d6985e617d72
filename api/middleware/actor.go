package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Amrkhafagii/mealverse-backend/api/responses"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
	deviceIDHeader  = "X-Device-Id"
)

// Actor seeds the request context from the gateway-injected actor headers.
// Token verification happens upstream; this service trusts the headers the
// edge proxy forwards.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if rawID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor identity"))
				return
			}
			actorID, err := uuid.Parse(rawID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id"))
				return
			}

			role, err := enums.ParseActor(strings.TrimSpace(r.Header.Get(actorRoleHeader)))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor role"))
				return
			}

			ctx := WithUserID(r.Context(), actorID.String())
			ctx = WithRole(ctx, string(role))
			if deviceID := strings.TrimSpace(r.Header.Get(deviceIDHeader)); deviceID != "" {
				ctx = WithDeviceID(ctx, deviceID)
			}

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    actorID.String(),
					"actor_role": string(role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose context role does not match.
func RequireRole(role enums.Actor, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != string(role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
