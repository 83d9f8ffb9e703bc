package payouts

import (
	"context"

	"github.com/angelmondragon/coachledger-backend/pkg/payoutgateway"
)

// Gateway is the payout provider. *payoutgateway.Client implements it.
type Gateway interface {
	ProvisionIdentity(ctx context.Context, req payoutgateway.IdentityRequest) (payoutgateway.Identity, error)
	SubmitPayout(ctx context.Context, req payoutgateway.PayoutRequest) (payoutgateway.Payout, error)
	FetchStatus(ctx context.Context, payoutID string) (payoutgateway.Payout, error)
}

var _ Gateway = (*payoutgateway.Client)(nil)
