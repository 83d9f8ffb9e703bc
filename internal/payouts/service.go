package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/internal/balance"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
	"github.com/angelmondragon/coachledger-backend/pkg/payoutgateway"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

const defaultGatewayTimeout = 15 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CoachStore is the slice of the coaches repository payouts need.
type CoachStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coach, error)
	SaveIdentity(ctx context.Context, id uuid.UUID, identity models.PayoutIdentity) error
}

// Service orchestrates payee provisioning, payout submission and reconciliation.
type Service interface {
	ProvisionIdentity(ctx context.Context, coachID uuid.UUID) (*IdentityResult, error)
	RequestPayout(ctx context.Context, input RequestInput) (*ledger.Entry, error)
	Reconcile(ctx context.Context, payoutID uuid.UUID) (*ledger.Entry, error)
	Cancel(ctx context.Context, coachID, payoutID uuid.UUID) (*ledger.Entry, error)
	InFlight(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
}

// RequestInput asks for a payout of Amount from the coach's spendable balance.
type RequestInput struct {
	CoachID        uuid.UUID
	Amount         decimal.Decimal
	Narration      string
	Instant        bool
	IdempotencyKey string
}

// IdentityResult reports the gateway ids for a coach. AlreadyProvisioned is set
// when an active identity existed and no gateway call was made.
type IdentityResult struct {
	CoachID            uuid.UUID  `json:"coach_id"`
	ContactID          string     `json:"contact_id"`
	FundAccountID      string     `json:"fund_account_id"`
	ProvisionedAt      *time.Time `json:"provisioned_at,omitempty"`
	AlreadyProvisioned bool       `json:"already_provisioned"`
}

// ServiceParams wires the payout orchestrator.
type ServiceParams struct {
	Ledger         ledger.Repository
	Coaches        CoachStore
	Settings       settings.Provider
	Gateway        Gateway
	Locker         Locker
	Tx             txRunner
	Logger         *logger.Logger
	Metrics        *metrics.LedgerMetrics
	GatewayTimeout time.Duration
	Currency       enums.Currency
	Now            func() time.Time
}

type service struct {
	ledger   ledger.Repository
	coaches  CoachStore
	settings settings.Provider
	gateway  Gateway
	locker   Locker
	tx       txRunner
	logger   *logger.Logger
	metrics  *metrics.LedgerMetrics
	timeout  time.Duration
	currency enums.Currency
	now      func() time.Time
}

// NewService validates dependencies and builds the orchestrator.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.Coaches == nil:
		return nil, fmt.Errorf("coach store required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings provider required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payout gateway required")
	case params.Locker == nil:
		return nil, fmt.Errorf("payout locker required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.GatewayTimeout <= 0 {
		params.GatewayTimeout = defaultGatewayTimeout
	}
	if params.Currency == "" {
		params.Currency = enums.BaseCurrency
	}
	if !params.Currency.Payable() {
		return nil, fmt.Errorf("payouts cannot be disbursed in %s", params.Currency)
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		ledger:   params.Ledger,
		coaches:  params.Coaches,
		settings: params.Settings,
		gateway:  params.Gateway,
		locker:   params.Locker,
		tx:       params.Tx,
		logger:   params.Logger,
		metrics:  params.Metrics,
		timeout:  params.GatewayTimeout,
		currency: params.Currency,
		now:      func() time.Time { return params.Now().UTC() },
	}, nil
}

func (s *service) ProvisionIdentity(ctx context.Context, coachID uuid.UUID) (*IdentityResult, error) {
	coach, err := s.coaches.FindByID(ctx, coachID)
	if err != nil {
		return nil, coachLookupError(err)
	}
	if coach.Identity.Ready() {
		return &IdentityResult{
			CoachID:            coach.ID,
			ContactID:          *coach.Identity.ExternalContactID,
			FundAccountID:      *coach.Identity.ExternalFundAccountID,
			ProvisionedAt:      coach.Identity.ProvisionedAt,
			AlreadyProvisioned: true,
		}, nil
	}
	if !coach.Destination.IsComplete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout destination missing or incomplete")
	}

	req := identityRequest(coach)
	ctx = s.logger.WithFields(ctx, map[string]any{
		"coach_id":    coach.ID.String(),
		"destination": coach.Destination.Masked(),
	})

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	identity, err := s.gateway.ProvisionIdentity(callCtx, req)
	cancel()
	s.metrics.ObserveGateway("provision_identity", time.Since(started), err)
	if err != nil {
		s.logger.Error(ctx, "payout identity provisioning failed", err)
		return nil, gatewayError(err, "provision payout identity")
	}

	now := s.now()
	record := models.PayoutIdentity{
		ExternalContactID:     &identity.ContactID,
		ExternalFundAccountID: &identity.FundAccountID,
		IsActive:              true,
		ProvisionedAt:         &now,
	}
	if err := s.coaches.SaveIdentity(ctx, coach.ID, record); err != nil {
		// the gateway already holds the contact; log the ids so support can re-link them
		s.logger.Error(s.logger.WithFields(ctx, map[string]any{
			"contact_id":      identity.ContactID,
			"fund_account_id": identity.FundAccountID,
		}), "persisting payout identity failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout identity")
	}
	s.logger.Info(ctx, "payout identity provisioned")

	return &IdentityResult{
		CoachID:       coach.ID,
		ContactID:     identity.ContactID,
		FundAccountID: identity.FundAccountID,
		ProvisionedAt: &now,
	}, nil
}

func identityRequest(coach *models.Coach) payoutgateway.IdentityRequest {
	name := strings.TrimSpace(coach.DisplayName)
	req := payoutgateway.IdentityRequest{
		ReferenceID: strings.ReplaceAll(coach.ID.String(), "-", ""),
	}
	if coach.Email != nil {
		req.Email = *coach.Email
	}
	switch *coach.Destination.Method {
	case enums.PayoutMethodUPI:
		req.UPIAddress = *coach.Destination.UPIID
	case enums.PayoutMethodBank:
		req.Bank = &payoutgateway.BankAccount{
			HolderName:    *coach.Destination.BankHolderName,
			IFSC:          *coach.Destination.BankIFSC,
			AccountNumber: *coach.Destination.BankAccountNumber,
		}
		if name == "" {
			name = *coach.Destination.BankHolderName
		}
	}
	if name == "" {
		name = "Coach " + req.ReferenceID[:8]
	}
	req.Name = name
	return req
}

func (s *service) RequestPayout(ctx context.Context, input RequestInput) (*ledger.Entry, error) {
	if input.CoachID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	amount := types.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(cfg.MinimumPayoutAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount is below the minimum payout").
			WithDetails(map[string]string{"minimum_payout_amount": cfg.MinimumPayoutAmount.StringFixed(2)})
	}
	fee := decimal.Zero
	if input.Instant {
		if amount.LessThan(cfg.Payout.InstantMin) || amount.GreaterThan(cfg.Payout.InstantMax) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount is outside the instant payout range").
				WithDetails(map[string]string{
					"instant_min": cfg.Payout.InstantMin.StringFixed(2),
					"instant_max": cfg.Payout.InstantMax.StringFixed(2),
				})
		}
		fee = cfg.Payout.InstantFee
		if !amount.GreaterThan(fee) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not cover the instant payout fee")
		}
	}

	if input.IdempotencyKey != "" {
		if existing, err := s.findByKey(ctx, s.ledger, input.CoachID, input.IdempotencyKey); err != nil || existing != nil {
			return existing, err
		}
	}

	coach, err := s.coaches.FindByID(ctx, input.CoachID)
	if err != nil {
		return nil, coachLookupError(err)
	}
	if !coach.Identity.Ready() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout identity not provisioned")
	}

	release, err := s.locker.Lock(ctx, coach.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = s.logger.WithCoachID(ctx, coach.ID.String())

	row, echoed, err := s.reserve(ctx, coach, amount, fee, input)
	if err != nil {
		return nil, err
	}
	if echoed {
		return echo(row)
	}
	ctx = s.logger.WithTransactionID(ctx, row.ID.String())

	return s.submit(ctx, coach, row, amount.Sub(fee))
}

// reserve checks the spendable balance and inserts the pending payout row in one unit.
func (s *service) reserve(ctx context.Context, coach *models.Coach, amount, fee decimal.Decimal, input RequestInput) (*models.Transaction, bool, error) {
	var (
		row    *models.Transaction
		echoed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ledger.WithTx(tx)

		if input.IdempotencyKey != "" {
			existing, err := repo.FindByIdempotencyKey(ctx, coach.ID, input.IdempotencyKey)
			if err == nil {
				if !existing.Type.IsPayout() {
					return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for another operation")
				}
				row, echoed = existing, true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
			}
		}

		snapshot, err := balance.Compute(ctx, repo, coach.ID)
		if err != nil {
			return err
		}
		if snapshot.Spendable.LessThan(amount) {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance for payout")
		}

		row = s.newPayoutRow(coach, amount, fee, input)
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, db.ConstraintIdempotencyKey) {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicateOperation, err, "payout already requested")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout row")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeDuplicateOperation) && input.IdempotencyKey != "" {
			existing, findErr := s.ledger.FindByIdempotencyKey(ctx, coach.ID, input.IdempotencyKey)
			if findErr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}
	if !echoed {
		s.metrics.PayoutStatus(string(enums.TransactionStatusPending))
	}
	return row, echoed, nil
}

func (s *service) newPayoutRow(coach *models.Coach, amount, fee decimal.Decimal, input RequestInput) *models.Transaction {
	now := s.now()
	method := *coach.Destination.Method
	mode := enums.ModeFor(method, input.Instant)
	destination := coach.Destination.Masked()
	reference := ReferenceID(now, coach.ID)
	narration := Narration(input.Narration)

	row := &models.Transaction{
		CoachID:     coach.ID,
		Direction:   enums.DirectionOutgoing,
		Type:        enums.TransactionTypePayoutProcessing,
		GrossAmount: amount,
		NetAmount:   amount,
		Currency:    s.currency,
		Fees:        models.Fees{PayoutFee: fee},
		Status:      enums.TransactionStatusPending,
		Payout: models.PayoutInfo{
			Method:      &method,
			Destination: &destination,
			IsInstant:   input.Instant,
			ReferenceID: &reference,
			Narration:   &narration,
			Mode:        &mode,
		},
		TransactionDate: now,
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		row.IdempotencyKey = &key
	}
	return row
}

// submit calls the gateway for a pending row. Every exit leaves the row either
// processing (accepted) or failed with a reason.
func (s *service) submit(ctx context.Context, coach *models.Coach, row *models.Transaction, transfer decimal.Decimal) (*ledger.Entry, error) {
	minor, err := types.ToMinorUnits(transfer)
	if err != nil {
		s.fail(ctx, row, "payout request could not be built: "+err.Error())
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build payout request")
	}

	req := payoutgateway.PayoutRequest{
		FundAccountID:  *coach.Identity.ExternalFundAccountID,
		AmountMinor:    minor,
		Currency:       string(row.Currency),
		Mode:           string(*row.Payout.Mode),
		Narration:      *row.Payout.Narration,
		ReferenceID:    *row.Payout.ReferenceID,
		IdempotencyKey: *row.Payout.ReferenceID,
	}

	initiatedAt := s.now()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	result, err := s.gateway.SubmitPayout(callCtx, req)
	cancel()
	s.metrics.ObserveGateway("submit_payout", time.Since(started), err)

	if err != nil {
		reason := payoutgateway.Reason(err)
		s.fail(ctx, row, reason)
		s.logger.Error(ctx, "payout submission failed", err)
		return nil, gatewayError(err, "submit payout").WithDetails(map[string]string{
			"transaction_id": row.ID.String(),
			"failure_reason": reason,
		})
	}

	changes := map[string]any{
		"status":                enums.TransactionStatusProcessing,
		"payout_external_id":    result.ID,
		"payout_gateway_status": result.Status,
		"payout_initiated_at":   initiatedAt,
	}
	ok, err := s.ledger.Transition(ctx, row.ID, enums.TransactionStatusPending, changes)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("payout row left pending state during submission")
		}
		// the gateway accepted the transfer; keep the external id in the logs for reconciliation
		s.logger.Error(s.logger.WithField(ctx, "external_payout_id", result.ID), "recording payout acceptance failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout acceptance")
	}
	s.metrics.PayoutStatus(string(enums.TransactionStatusProcessing))
	s.logger.Info(s.logger.WithField(ctx, "external_payout_id", result.ID), "payout submitted")

	stored, err := s.ledger.FindByID(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
	}
	if next, known := enums.GatewayPayoutStatus(result.Status).LedgerStatus(); known && next != stored.Status {
		stored, err = s.apply(ctx, stored, result, next)
		if err != nil {
			return nil, err
		}
	}
	entry := ledger.ToEntry(*stored)
	return &entry, nil
}

func (s *service) fail(ctx context.Context, row *models.Transaction, reason string) {
	now := s.now()
	changes := map[string]any{
		"status":                enums.TransactionStatusFailed,
		"type":                  enums.TransactionTypePayoutFailed,
		"payout_failure_reason": reason,
		"payout_failed_at":      now,
	}
	ok, err := s.ledger.Transition(ctx, row.ID, enums.TransactionStatusPending, changes)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("payout row left pending state")
		}
		s.logger.Error(ctx, "marking payout failed did not apply", err)
		return
	}
	s.metrics.PayoutStatus(string(enums.TransactionStatusFailed))
}

func (s *service) Reconcile(ctx context.Context, payoutID uuid.UUID) (*ledger.Entry, error) {
	row, err := s.ledger.FindByID(ctx, payoutID)
	if err != nil {
		return nil, payoutLookupError(err)
	}
	if !row.Type.IsPayout() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a payout")
	}
	if row.Status.IsTerminal() {
		entry := ledger.ToEntry(*row)
		return &entry, nil
	}
	if row.Payout.ExternalPayoutID == nil || *row.Payout.ExternalPayoutID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout has not been accepted by the gateway")
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"coach_id":           row.CoachID.String(),
		"transaction_id":     row.ID.String(),
		"external_payout_id": *row.Payout.ExternalPayoutID,
	})

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	result, err := s.gateway.FetchStatus(callCtx, *row.Payout.ExternalPayoutID)
	cancel()
	s.metrics.ObserveGateway("fetch_status", time.Since(started), err)
	if err != nil {
		return nil, gatewayError(err, "fetch payout status")
	}

	next, known := enums.GatewayPayoutStatus(result.Status).LedgerStatus()
	if !known {
		s.logger.Warn(s.logger.WithField(ctx, "gateway_status", result.Status), "unrecognised gateway payout status; left unchanged")
		entry := ledger.ToEntry(*row)
		return &entry, nil
	}

	updated, err := s.apply(ctx, row, result, next)
	if err != nil {
		return nil, err
	}
	entry := ledger.ToEntry(*updated)
	return &entry, nil
}

// apply moves row to next using the gateway's view. Same-status and illegal moves are no-ops.
func (s *service) apply(ctx context.Context, row *models.Transaction, result payoutgateway.Payout, next enums.TransactionStatus) (*models.Transaction, error) {
	if next == row.Status || !row.Status.CanTransitionTo(next) {
		if row.Payout.GatewayStatus == nil || *row.Payout.GatewayStatus != result.Status {
			_, err := s.ledger.Transition(ctx, row.ID, row.Status, map[string]any{"payout_gateway_status": result.Status})
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record gateway status")
			}
			status := result.Status
			row.Payout.GatewayStatus = &status
		}
		return row, nil
	}

	now := s.now()
	changes := map[string]any{
		"status":                next,
		"payout_gateway_status": result.Status,
	}
	switch next {
	case enums.TransactionStatusCompleted:
		changes["type"] = enums.TransactionTypePayoutCompleted
		changes["payout_completed_at"] = now
		if result.SettlementReference != "" {
			changes["payout_settlement_reference"] = result.SettlementReference
		}
		if settled := types.FromMinorUnits(result.AmountMinor); result.AmountMinor > 0 && !settled.Equal(transferAmount(row)) {
			s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
				"settled_amount":  settled.StringFixed(2),
				"transfer_amount": transferAmount(row).StringFixed(2),
			}), "gateway settled a different amount than requested")
		}
	case enums.TransactionStatusFailed:
		reason := result.FailureReason
		if reason == "" {
			reason = "payout " + strings.ToLower(result.Status)
		}
		changes["type"] = enums.TransactionTypePayoutFailed
		changes["payout_failure_reason"] = reason
		changes["payout_failed_at"] = now
	}

	ok, err := s.ledger.Transition(ctx, row.ID, row.Status, changes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payout status")
	}
	if ok {
		s.metrics.PayoutStatus(string(next))
		s.logger.Info(s.logger.WithField(ctx, "status", string(next)), "payout status reconciled")
	}
	updated, err := s.ledger.FindByID(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
	}
	return updated, nil
}

// Cancel aborts a payout that never reached the gateway. A non-nil coachID restricts
// the lookup to that coach's payouts.
func (s *service) Cancel(ctx context.Context, coachID, payoutID uuid.UUID) (*ledger.Entry, error) {
	row, err := s.ledger.FindByID(ctx, payoutID)
	if err != nil {
		return nil, payoutLookupError(err)
	}
	if coachID != uuid.Nil && row.CoachID != coachID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	if !row.Type.IsPayout() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a payout")
	}

	release, err := s.locker.Lock(ctx, row.CoachID)
	if err != nil {
		return nil, err
	}
	defer release()

	ok, err := s.ledger.Transition(ctx, row.ID, enums.TransactionStatusPending, map[string]any{
		"status": enums.TransactionStatusCancelled,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payout")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending payouts can be cancelled")
	}
	s.metrics.PayoutStatus(string(enums.TransactionStatusCancelled))

	updated, err := s.ledger.FindByID(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
	}
	entry := ledger.ToEntry(*updated)
	return &entry, nil
}

// InFlight lists processing payouts submitted more than olderThan ago, oldest first.
func (s *service) InFlight(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.ledger.ListPayouts(ctx, []enums.TransactionStatus{enums.TransactionStatusProcessing}, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list in-flight payouts")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (s *service) findByKey(ctx context.Context, repo ledger.Repository, coachID uuid.UUID, key string) (*ledger.Entry, error) {
	existing, err := repo.FindByIdempotencyKey(ctx, coachID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	if !existing.Type.IsPayout() {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for another operation")
	}
	return echo(existing)
}

// echo answers a repeated idempotency key. Only a payout that is still alive or
// settled is handed back; a failed or cancelled one is reported so the caller
// can retry under a new key.
func echo(row *models.Transaction) (*ledger.Entry, error) {
	switch row.Status {
	case enums.TransactionStatusFailed, enums.TransactionStatusCancelled:
		details := map[string]string{
			"transaction_id": row.ID.String(),
			"status":         string(row.Status),
		}
		if row.Payout.FailureReason != nil {
			details["failure_reason"] = *row.Payout.FailureReason
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeDuplicateOperation, "payout for this idempotency key is %s; retry with a new key", row.Status).
			WithDetails(details)
	}
	entry := ledger.ToEntry(*row)
	return &entry, nil
}

// transferAmount is what the gateway was asked to move: the debit less the instant fee.
func transferAmount(row *models.Transaction) decimal.Decimal {
	return row.NetAmount.Sub(row.Fees.PayoutFee)
}

func gatewayError(err error, msg string) *pkgerrors.Error {
	if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeGateway {
		return coded
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, msg)
}

func coachLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coach not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coach")
}

func payoutLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
}
