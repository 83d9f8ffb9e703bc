package controllers

import (
	"net/http"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/internal/balance"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

// Balance returns incoming, outgoing, available, reserved and spendable totals.
// Optional from/to query params bound the incoming/outgoing window.
func Balance(svc balance.Service, scope CoachScope, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
			return
		}
		coachID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		period, err := parsePeriod(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Get(r.Context(), coachID, period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
