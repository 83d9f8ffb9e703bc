package payoutgateway

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

// IdentityRequest describes the payee to register with the gateway.
type IdentityRequest struct {
	ReferenceID string
	Name        string
	Email       string
	UPIAddress  string
	Bank        *BankAccount
}

// BankAccount is a bank transfer destination.
type BankAccount struct {
	HolderName    string `json:"name"`
	IFSC          string `json:"ifsc"`
	AccountNumber string `json:"account_number"`
}

// Identity holds the ids issued for a payee.
type Identity struct {
	ContactID     string
	FundAccountID string
}

// PayoutRequest is one transfer to a provisioned fund account. Amount is in minor units.
type PayoutRequest struct {
	FundAccountID  string
	AmountMinor    int64
	Currency       string
	Mode           string
	Narration      string
	ReferenceID    string
	IdempotencyKey string
}

// Payout is the gateway's view of a transfer.
type Payout struct {
	ID                  string
	Status              string
	AmountMinor         int64
	SettlementReference string
	FailureReason       string
}

type contactResponse struct {
	ID string `json:"id"`
}

type fundAccountResponse struct {
	ID string `json:"id"`
}

type payoutResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	UTR           string `json:"utr"`
	FailureReason string `json:"failure_reason"`
	StatusDetails *struct {
		Description string `json:"description"`
		Reason      string `json:"reason"`
	} `json:"status_details"`
}

func (p payoutResponse) toPayout() Payout {
	out := Payout{
		ID:                  p.ID,
		Status:              strings.ToLower(strings.TrimSpace(p.Status)),
		AmountMinor:         p.Amount,
		SettlementReference: p.UTR,
		FailureReason:       p.FailureReason,
	}
	if out.FailureReason == "" && p.StatusDetails != nil {
		out.FailureReason = p.StatusDetails.Description
	}
	return out
}

// ProvisionIdentity creates a contact and a fund account bound to the destination.
// It is not safe to blind-retry: a repeated call may create a second contact.
func (c *Client) ProvisionIdentity(ctx context.Context, req IdentityRequest) (Identity, error) {
	if strings.TrimSpace(req.UPIAddress) == "" && req.Bank == nil {
		return Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "payout destination is required")
	}

	var contact contactResponse
	if err := c.do(ctx, http.MethodPost, "/v1/contacts", map[string]any{
		"name":         req.Name,
		"email":        req.Email,
		"type":         "vendor",
		"reference_id": req.ReferenceID,
	}, nil, &contact); err != nil {
		return Identity{}, err
	}

	body := map[string]any{"contact_id": contact.ID}
	if req.Bank != nil {
		body["account_type"] = "bank_account"
		body["bank_account"] = req.Bank
	} else {
		body["account_type"] = "vpa"
		body["vpa"] = map[string]string{"address": strings.TrimSpace(req.UPIAddress)}
	}

	var fund fundAccountResponse
	if err := c.do(ctx, http.MethodPost, "/v1/fund_accounts", body, nil, &fund); err != nil {
		return Identity{}, err
	}
	return Identity{ContactID: contact.ID, FundAccountID: fund.ID}, nil
}

// SubmitPayout asks the gateway to transfer money to a fund account. ReferenceID and
// IdempotencyKey let the gateway deduplicate retried submissions.
func (c *Client) SubmitPayout(ctx context.Context, req PayoutRequest) (Payout, error) {
	if req.AmountMinor <= 0 {
		return Payout{}, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers[idempotencyHeader] = req.IdempotencyKey
	}

	var resp payoutResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", map[string]any{
		"account_number":       c.accountNumber,
		"fund_account_id":      req.FundAccountID,
		"amount":               req.AmountMinor,
		"currency":             req.Currency,
		"mode":                 req.Mode,
		"purpose":              "payout",
		"queue_if_low_balance": true,
		"reference_id":         req.ReferenceID,
		"narration":            req.Narration,
	}, headers, &resp); err != nil {
		return Payout{}, err
	}
	return resp.toPayout(), nil
}

// FetchStatus reads the current state of a payout.
func (c *Client) FetchStatus(ctx context.Context, payoutID string) (Payout, error) {
	if strings.TrimSpace(payoutID) == "" {
		return Payout{}, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	var resp payoutResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payouts/"+pathEscape(payoutID), nil, nil, &resp); err != nil {
		return Payout{}, err
	}
	return resp.toPayout(), nil
}
