package enums

import "strings"

// GatewayPayoutStatus is the raw status string reported by the payout gateway.
type GatewayPayoutStatus string

const (
	GatewayStatusQueued     GatewayPayoutStatus = "queued"
	GatewayStatusPending    GatewayPayoutStatus = "pending"
	GatewayStatusScheduled  GatewayPayoutStatus = "scheduled"
	GatewayStatusProcessing GatewayPayoutStatus = "processing"
	GatewayStatusProcessed  GatewayPayoutStatus = "processed"
	GatewayStatusCompleted  GatewayPayoutStatus = "completed"
	GatewayStatusPaid       GatewayPayoutStatus = "paid"
	GatewayStatusReversed   GatewayPayoutStatus = "reversed"
	GatewayStatusFailed     GatewayPayoutStatus = "failed"
	GatewayStatusCancelled  GatewayPayoutStatus = "cancelled"
	GatewayStatusRejected   GatewayPayoutStatus = "rejected"
)

// LedgerStatus maps a gateway status onto the ledger state machine.
// ok is false for statuses the ledger does not recognise.
func (g GatewayPayoutStatus) LedgerStatus() (status TransactionStatus, ok bool) {
	switch GatewayPayoutStatus(strings.ToLower(strings.TrimSpace(string(g)))) {
	case GatewayStatusProcessed, GatewayStatusQueued, GatewayStatusPending,
		GatewayStatusProcessing, GatewayStatusScheduled:
		return TransactionStatusProcessing, true
	case GatewayStatusReversed, GatewayStatusFailed, GatewayStatusCancelled, GatewayStatusRejected:
		return TransactionStatusFailed, true
	case GatewayStatusCompleted, GatewayStatusPaid:
		return TransactionStatusCompleted, true
	}
	return "", false
}
