package controllers

import (
	"net/http"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/api/validators"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

func AdminSettingsGet(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		current, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

// AdminSettingsUpdate writes a complete new settings version. version and updated_at
// in the body are ignored.
func AdminSettingsUpdate(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var next settings.Settings
		if err := validators.DecodeJSONBody(r, &next); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), next, actorID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
