package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/internal/commissions"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

type commissionSummarizer interface {
	Summary(ctx context.Context, coachID uuid.UUID, period ledger.Period) (*commissions.Summary, error)
}

// CommissionSummary aggregates settled commission income per level.
func CommissionSummary(svc commissionSummarizer, scope CoachScope, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission engine unavailable"))
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

		summary, err := svc.Summary(r.Context(), coachID, period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
