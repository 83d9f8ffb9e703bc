package controllers

import (
	"net/http"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/api/validators"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/pagination"
)

// TransactionList pages through a coach's ledger newest first.
// Filters: type and status (comma separated), direction, from, to, limit, cursor.
func TransactionList(svc ledger.Service, scope CoachScope, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		coachID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), ledger.ListParams{
			CoachID: coachID,
			Filters: filters,
			Params:  pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// TransactionDetail returns one row owned by the scoped coach.
func TransactionDetail(svc ledger.Service, scope CoachScope, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		coachID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Get(r.Context(), coachID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func parseListFilters(r *http.Request) (ledger.ListFilters, error) {
	var filters ledger.ListFilters
	for _, raw := range validators.ParseQueryList(r, "type") {
		t, err := enums.ParseTransactionType(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		filters.Types = append(filters.Types, t)
	}
	for _, raw := range validators.ParseQueryList(r, "status") {
		s, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Statuses = append(filters.Statuses, s)
	}
	if raw := r.URL.Query().Get("direction"); raw != "" {
		d, err := enums.ParseTransactionDirection(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid direction filter")
		}
		filters.Direction = d
	}
	period, err := parsePeriod(r)
	if err != nil {
		return filters, err
	}
	filters.Period = period
	return filters, nil
}
