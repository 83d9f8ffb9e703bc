package controllers

import (
	"net/http"

	"github.com/angelmondragon/coachledger-backend/api/middleware"
	"github.com/angelmondragon/coachledger-backend/api/responses"
)

// PingResponse echoes the identity a route group resolved for the caller.
type PingResponse struct {
	Scope   string `json:"scope"`
	Status  string `json:"status"`
	UserID  string `json:"user_id,omitempty"`
	Role    string `json:"role,omitempty"`
	CoachID string `json:"coach_id,omitempty"`
}

// Ping lets clients check their token against a route group without touching the ledger.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := PingResponse{
			Scope:  scope,
			Status: "ok",
			UserID: middleware.UserIDFromContext(ctx),
			Role:   string(middleware.RoleFromContext(ctx)),
		}
		if coachID, ok := middleware.CoachIDFromContext(ctx); ok {
			resp.CoachID = coachID.String()
		}
		responses.WriteSuccess(w, resp)
	}
}
