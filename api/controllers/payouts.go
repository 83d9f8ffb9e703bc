package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/api/validators"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/payouts"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const maxNarrationInput = 120

type payoutRequester interface {
	RequestPayout(ctx context.Context, input payouts.RequestInput) (*ledger.Entry, error)
}

type payoutCanceller interface {
	Cancel(ctx context.Context, coachID, payoutID uuid.UUID) (*ledger.Entry, error)
}

type payoutReconciler interface {
	Reconcile(ctx context.Context, payoutID uuid.UUID) (*ledger.Entry, error)
}

type identityProvisioner interface {
	ProvisionIdentity(ctx context.Context, coachID uuid.UUID) (*payouts.IdentityResult, error)
}

type transactionReader interface {
	Get(ctx context.Context, coachID, id uuid.UUID) (*ledger.Entry, error)
}

type payoutRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"gt=0,money"`
	Instant   bool            `json:"instant"`
	Narration string          `json:"narration" validate:"max=120"`
}

// RequestPayout debits the caller's spendable balance and submits the transfer.
// The Idempotency-Key header, when present, doubles as the ledger idempotency key.
func RequestPayout(svc payoutRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		coachID, err := FromToken()(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RequestPayout(r.Context(), payouts.RequestInput{
			CoachID:        coachID,
			Amount:         body.Amount,
			Narration:      validators.SanitizeString(body.Narration, maxNarrationInput),
			Instant:        body.Instant,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// CancelPayout cancels a payout of the caller that has not reached the gateway yet.
func CancelPayout(svc payoutCanceller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		coachID, err := FromToken()(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Cancel(r.Context(), coachID, payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// ReconcilePayout refreshes a payout from the gateway. With a non-nil reader the payout
// must belong to the scoped coach; admin routes pass nil.
func ReconcilePayout(svc payoutReconciler, reader transactionReader, scope CoachScope, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if reader != nil && scope != nil {
			coachID, err := scope(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if _, err := reader.Get(r.Context(), coachID, payoutID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		entry, err := svc.Reconcile(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// ProvisionIdentity registers the caller's destination with the gateway. An already
// active identity is echoed back without a gateway call.
func ProvisionIdentity(svc identityProvisioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		coachID, err := FromToken()(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ProvisionIdentity(r.Context(), coachID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.AlreadyProvisioned {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
