package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/enums"
)

// Coach is the ledger's read model of a coach: sponsor pointer plus payout wiring.
// Profile data lives with the coaching platform; only what the ledger needs is mirrored here.
type Coach struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SponsorID   *uuid.UUID        `gorm:"column:sponsor_id;type:uuid"`
	DisplayName string            `gorm:"column:display_name;not null;default:''"`
	Email       *string           `gorm:"column:email"`
	Destination PayoutDestination `gorm:"embedded;embeddedPrefix:payout_"`
	Identity    PayoutIdentity    `gorm:"embedded;embeddedPrefix:payout_identity_"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coach) TableName() string { return "coaches" }

func (c *Coach) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PayoutDestination is where the coach wants money sent.
type PayoutDestination struct {
	Method            *enums.PayoutMethod `gorm:"column:method"`
	UPIID             *string             `gorm:"column:upi_id"`
	BankHolderName    *string             `gorm:"column:bank_holder_name"`
	BankIFSC          *string             `gorm:"column:bank_ifsc"`
	BankAccountNumber *string             `gorm:"column:bank_account_number"`
}

// IsComplete reports whether every field the configured method needs is present.
func (d PayoutDestination) IsComplete() bool {
	if d.Method == nil {
		return false
	}
	switch *d.Method {
	case enums.PayoutMethodUPI:
		return nonBlank(d.UPIID)
	case enums.PayoutMethodBank:
		return nonBlank(d.BankHolderName) && nonBlank(d.BankIFSC) && nonBlank(d.BankAccountNumber)
	}
	return false
}

// Masked renders the destination for snapshots and logs without exposing full numbers.
func (d PayoutDestination) Masked() string {
	if d.Method == nil {
		return ""
	}
	switch *d.Method {
	case enums.PayoutMethodUPI:
		if d.UPIID == nil {
			return "upi"
		}
		handle, provider, found := strings.Cut(*d.UPIID, "@")
		if !found {
			return "upi:" + maskTail(handle, 2)
		}
		return "upi:" + maskTail(handle, 2) + "@" + provider
	case enums.PayoutMethodBank:
		acct := ""
		if d.BankAccountNumber != nil {
			acct = maskTail(*d.BankAccountNumber, 4)
		}
		ifsc := ""
		if d.BankIFSC != nil {
			ifsc = *d.BankIFSC
		}
		return "bank:" + ifsc + ":" + acct
	}
	return ""
}

// PayoutIdentity holds the ids the gateway issued for the coach.
type PayoutIdentity struct {
	ExternalContactID     *string    `gorm:"column:contact_id"`
	ExternalFundAccountID *string    `gorm:"column:fund_account_id"`
	IsActive              bool       `gorm:"column:active;not null;default:false"`
	ProvisionedAt         *time.Time `gorm:"column:provisioned_at"`
}

// Ready reports whether payouts may be submitted against the identity.
func (i PayoutIdentity) Ready() bool {
	return i.IsActive && nonBlank(i.ExternalContactID) && nonBlank(i.ExternalFundAccountID)
}

func nonBlank(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

func maskTail(v string, keep int) string {
	runes := []rune(strings.TrimSpace(v))
	if len(runes) <= keep {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-keep) + string(runes[len(runes)-keep:])
}
