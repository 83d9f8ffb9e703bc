package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	"github.com/angelmondragon/coachledger-backend/api/validators"
	"github.com/angelmondragon/coachledger-backend/internal/coaches"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

type destinationRequest struct {
	Method            string `json:"method" validate:"required,oneof=upi bank"`
	UPIID             string `json:"upi_id" validate:"required_if=Method upi,omitempty,max=100"`
	BankHolderName    string `json:"bank_holder_name" validate:"required_if=Method bank,omitempty,max=120"`
	BankIFSC          string `json:"bank_ifsc" validate:"required_if=Method bank,omitempty,len=11"`
	BankAccountNumber string `json:"bank_account_number" validate:"required_if=Method bank,omitempty,min=6,max=20"`
}

type coachSyncRequest struct {
	SponsorID   *string `json:"sponsor_id" validate:"omitempty,uuid"`
	DisplayName string  `json:"display_name" validate:"max=200"`
	Email       *string `json:"email" validate:"omitempty,email"`
}

// CoachProfile returns the scoped coach with a masked destination.
func CoachProfile(svc coaches.Service, scope CoachScope, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coach service unavailable"))
			return
		}
		coachID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Get(r.Context(), coachID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// UpdateDestination stores the caller's UPI or bank destination.
func UpdateDestination(svc coaches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coach service unavailable"))
			return
		}
		coachID, err := FromToken()(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body destinationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePayoutMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
			return
		}

		profile, err := svc.UpdateDestination(r.Context(), coachID, coaches.DestinationInput{
			Method:            method,
			UPIID:             strings.TrimSpace(body.UPIID),
			BankHolderName:    validators.SanitizeString(body.BankHolderName, 120),
			BankIFSC:          strings.ToUpper(strings.TrimSpace(body.BankIFSC)),
			BankAccountNumber: strings.TrimSpace(body.BankAccountNumber),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// AdminSyncCoach upserts the coach read model from the platform's user directory.
func AdminSyncCoach(svc coaches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coach service unavailable"))
			return
		}
		coachID, err := validators.ParseUUIDParam(r, "coachId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body coachSyncRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := coaches.SyncInput{
			ID:          coachID,
			DisplayName: validators.SanitizeString(body.DisplayName, 200),
			Email:       body.Email,
		}
		if body.SponsorID != nil {
			sponsorID, err := uuid.Parse(*body.SponsorID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sponsor_id"))
				return
			}
			input.SponsorID = &sponsorID
		}

		profile, err := svc.Sync(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
