package coaches

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

var (
	upiPattern  = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)
	ifscPattern = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	acctPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
)

// Service manages the coach read model and payout destinations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)
	Sync(ctx context.Context, input SyncInput) (*Profile, error)
	UpdateDestination(ctx context.Context, coachID uuid.UUID, input DestinationInput) (*Profile, error)
}

// SyncInput mirrors a coach from the platform into the ledger.
type SyncInput struct {
	ID          uuid.UUID
	SponsorID   *uuid.UUID
	DisplayName string
	Email       *string
}

// DestinationInput is a requested payout destination.
type DestinationInput struct {
	Method            enums.PayoutMethod
	UPIID             string
	BankHolderName    string
	BankIFSC          string
	BankAccountNumber string
}

// Profile is the API view of a coach. Destinations are always masked.
type Profile struct {
	ID                uuid.UUID           `json:"id"`
	SponsorID         *uuid.UUID          `json:"sponsor_id,omitempty"`
	DisplayName       string              `json:"display_name"`
	PayoutMethod      *enums.PayoutMethod `json:"payout_method,omitempty"`
	PayoutDestination string              `json:"payout_destination,omitempty"`
	IdentityActive    bool                `json:"payout_identity_active"`
	ProvisionedAt     *time.Time          `json:"payout_identity_provisioned_at,omitempty"`
}

// ToProfile converts a stored coach into its API view.
func ToProfile(c models.Coach) Profile {
	return Profile{
		ID:                c.ID,
		SponsorID:         c.SponsorID,
		DisplayName:       c.DisplayName,
		PayoutMethod:      c.Destination.Method,
		PayoutDestination: c.Destination.Masked(),
		IdentityActive:    c.Identity.Ready(),
		ProvisionedAt:     c.Identity.ProvisionedAt,
	}
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds a coaches service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coaches repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	coach, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	profile := ToProfile(*coach)
	return &profile, nil
}

func (s *service) Sync(ctx context.Context, input SyncInput) (*Profile, error) {
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	if input.SponsorID != nil && *input.SponsorID == input.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach cannot sponsor itself")
	}
	coach := &models.Coach{
		ID:          input.ID,
		SponsorID:   input.SponsorID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Email:       input.Email,
	}
	if err := s.repo.Upsert(ctx, coach); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync coach")
	}
	return s.Get(ctx, input.ID)
}

func (s *service) UpdateDestination(ctx context.Context, coachID uuid.UUID, input DestinationInput) (*Profile, error) {
	dest, err := input.toModel()
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDestination(ctx, coachID, dest); err != nil {
		return nil, mapLookupError(err)
	}
	ctx = s.logger.WithFields(ctx, map[string]any{
		"coach_id":    coachID.String(),
		"destination": dest.Masked(),
	})
	s.logger.Info(ctx, "payout destination updated; identity deactivated")
	return s.Get(ctx, coachID)
}

func (in DestinationInput) toModel() (models.PayoutDestination, error) {
	problems := map[string]string{}
	method := in.Method
	dest := models.PayoutDestination{Method: &method}

	switch method {
	case enums.PayoutMethodUPI:
		upi := strings.TrimSpace(in.UPIID)
		if !upiPattern.MatchString(upi) {
			problems["upi_id"] = "must look like handle@provider"
		}
		dest.UPIID = &upi
	case enums.PayoutMethodBank:
		holder := strings.TrimSpace(in.BankHolderName)
		ifsc := strings.ToUpper(strings.TrimSpace(in.BankIFSC))
		acct := strings.TrimSpace(in.BankAccountNumber)
		if holder == "" {
			problems["bank_holder_name"] = "required"
		}
		if !ifscPattern.MatchString(ifsc) {
			problems["bank_ifsc"] = "invalid IFSC"
		}
		if !acctPattern.MatchString(acct) {
			problems["bank_account_number"] = "must be 9 to 18 digits"
		}
		dest.BankHolderName, dest.BankIFSC, dest.BankAccountNumber = &holder, &ifsc, &acct
	default:
		problems["method"] = "must be upi or bank"
	}

	if len(problems) > 0 {
		return models.PayoutDestination{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payout destination").WithDetails(problems)
	}
	return dest, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coach not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coach")
}
