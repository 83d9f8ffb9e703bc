package enums

import "fmt"

// TransactionStatus tracks a ledger row through its lifecycle.
type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusProcessing        TransactionStatus = "processing"
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusFailed            TransactionStatus = "failed"
	TransactionStatusCancelled         TransactionStatus = "cancelled"
	TransactionStatusRefunded          TransactionStatus = "refunded"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusCancelled,
	TransactionStatusRefunded,
	TransactionStatusPartiallyRefunded,
}

// forward transitions reachable through normal processing
var statusTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusProcessing,
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusProcessing: {
		TransactionStatusCompleted,
		TransactionStatusFailed,
	},
}

// reversal transitions, only applied together with a new refund/adjustment row
var reversalTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusCompleted: {
		TransactionStatusRefunded,
		TransactionStatusPartiallyRefunded,
	},
	TransactionStatusPartiallyRefunded: {
		TransactionStatusRefunded,
		TransactionStatusPartiallyRefunded,
	},
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the row may only change through an explicit reversal.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal forward move from s.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return containsStatus(statusTransitions[s], next)
}

// CanReverseTo reports whether a reversal may move s to next.
func (s TransactionStatus) CanReverseTo(next TransactionStatus) bool {
	return containsStatus(reversalTransitions[s], next)
}

func containsStatus(list []TransactionStatus, target TransactionStatus) bool {
	for _, candidate := range list {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
