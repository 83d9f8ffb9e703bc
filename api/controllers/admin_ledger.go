package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/api/validators"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/sales"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/events"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const maxReasonLength = 500

type saleCompleter interface {
	Complete(ctx context.Context, input sales.Input) (*sales.Result, error)
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,money"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

type adjustRequest struct {
	CoachID    string          `json:"coach_id" validate:"required,uuid"`
	Direction  string          `json:"direction" validate:"required,oneof=incoming outgoing"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0,money"`
	Reason     string          `json:"reason" validate:"required,max=500"`
	OriginalID *string         `json:"original_id" validate:"omitempty,uuid"`
}

// AdminCompleteSale records a sale through the same path as the Pub/Sub consumer.
// The body is the sale.completed event payload; used for backfills and replays.
func AdminCompleteSale(svc saleCompleter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		var event events.SaleCompleted
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := sales.FromEvent(event)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Complete(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// AdminSaleCost shows a sale next to the commissions it paid out.
func AdminSaleCost(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		saleID, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cost, err := svc.SaleCost(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cost)
	}
}

// AdminRefund reverses part or all of a settled incoming row.
func AdminRefund(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		originalID, err := validators.ParseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body refundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Refund(r.Context(), ledger.RefundInput{
			OriginalID:     originalID,
			Amount:         body.Amount,
			Reason:         validators.SanitizeString(body.Reason, maxReasonLength),
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// AdminAdjust books a manual credit or debit against a coach.
func AdminAdjust(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coachID, err := uuid.Parse(body.CoachID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coach_id"))
			return
		}
		direction, err := enums.ParseTransactionDirection(body.Direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid direction"))
			return
		}
		input := ledger.AdjustInput{
			CoachID:        coachID,
			Direction:      direction,
			Amount:         body.Amount,
			Reason:         validators.SanitizeString(body.Reason, maxReasonLength),
			IdempotencyKey: idempotencyKey(r),
		}
		if body.OriginalID != nil {
			originalID, err := uuid.Parse(*body.OriginalID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid original_id"))
				return
			}
			input.OriginalID = &originalID
		}

		entry, err := svc.Adjust(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
