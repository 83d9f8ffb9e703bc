package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/api/middleware"
	"github.com/angelmondragon/coachledger-backend/api/validators"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

// CoachScope resolves which coach a request reads or acts on.
type CoachScope func(r *http.Request) (uuid.UUID, error)

// FromToken scopes the request to the authenticated coach.
func FromToken() CoachScope {
	return func(r *http.Request) (uuid.UUID, error) {
		id, ok := middleware.CoachIDFromContext(r.Context())
		if !ok {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "coach context missing")
		}
		return id, nil
	}
}

// FromPath scopes the request to the coach named in the URL. Admin routes only.
func FromPath(param string) CoachScope {
	return func(r *http.Request) (uuid.UUID, error) {
		return validators.ParseUUIDParam(r, param)
	}
}

func parsePeriod(r *http.Request) (ledger.Period, error) {
	from, err := validators.ParseQueryTime(r, "from")
	if err != nil {
		return ledger.Period{}, err
	}
	to, err := validators.ParseQueryTime(r, "to")
	if err != nil {
		return ledger.Period{}, err
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return ledger.Period{}, pkgerrors.New(pkgerrors.CodeValidation, "to must be after from")
	}
	return ledger.Period{From: from, To: to}, nil
}

func actorID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(middleware.UserIDFromContext(r.Context())))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}
