package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	pkgpagination "github.com/angelmondragon/coachledger-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	Repository
	row     *models.Transaction
	findErr error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.row == nil || f.row.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.row, nil
}

func newSQLiteService(t *testing.T) (Service, Repository) {
	t.Helper()
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client, nil)
	require.NoError(t, err)
	return svc, repo
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, stubTxRunner{}, nil); err == nil {
		t.Fatal("expected repository required error")
	}
	if _, err := NewService(&fakeRepository{}, nil, nil); err == nil {
		t.Fatal("expected tx runner required error")
	}
}

func TestGetHidesOtherCoachesRows(t *testing.T) {
	row := incoming(uuid.New(), "10", enums.TransactionStatusCompleted)
	row.ID = uuid.New()
	svc, _ := NewService(&fakeRepository{row: row}, stubTxRunner{}, nil)

	if _, err := svc.Get(context.Background(), uuid.New(), row.ID); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign coach, got %v", err)
	}
	got, err := svc.Get(context.Background(), row.CoachID, row.ID)
	if err != nil {
		t.Fatalf("get own row: %v", err)
	}
	if got.ID != row.ID {
		t.Fatalf("unexpected row %s", got.ID)
	}
	if _, err := svc.Get(context.Background(), uuid.Nil, row.ID); err != nil {
		t.Fatalf("admin lookup should not be scoped: %v", err)
	}
}

func TestGetWrapsStorageFailure(t *testing.T) {
	svc, _ := NewService(&fakeRepository{findErr: errors.New("boom")}, stubTxRunner{}, nil)
	if _, err := svc.Get(context.Background(), uuid.Nil, uuid.New()); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	coach := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		row := incoming(coach, "1", enums.TransactionStatusCompleted)
		require.NoError(t, repo.Create(ctx, row))
		ids = append(ids, row.ID)
	}
	require.NoError(t, repo.Create(ctx, incoming(uuid.New(), "1", enums.TransactionStatusCompleted)))

	first, err := svc.List(ctx, ListParams{CoachID: coach, Params: pkgpagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, ids[4], first.Items[0].ID)
	assert.Equal(t, ids[3], first.Items[1].ID)

	second, err := svc.List(ctx, ListParams{CoachID: coach, Params: pkgpagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, ids[2], second.Items[0].ID)

	third, err := svc.List(ctx, ListParams{CoachID: coach, Params: pkgpagination.Params{Limit: 2, Cursor: second.NextCursor}})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Empty(t, third.NextCursor)
	assert.Equal(t, ids[0], third.Items[0].ID)
}

func TestListFiltersByType(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	coach := uuid.New()

	require.NoError(t, repo.Create(ctx, incoming(coach, "1", enums.TransactionStatusCompleted)))
	adj := incoming(coach, "2", enums.TransactionStatusCompleted)
	adj.Type = enums.TransactionTypeAdjustment
	require.NoError(t, repo.Create(ctx, adj))

	page, err := svc.List(ctx, ListParams{CoachID: coach, Filters: ListFilters{Types: []enums.TransactionType{enums.TransactionTypeAdjustment}}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, adj.ID, page.Items[0].ID)

	_, err = svc.List(ctx, ListParams{CoachID: coach, Params: pkgpagination.Params{Cursor: "!!"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRefundPartialThenFull(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)

	sale := incoming(uuid.New(), "500", enums.TransactionStatusCompleted)
	require.NoError(t, repo.Create(ctx, sale))

	first, err := svc.Refund(ctx, RefundInput{OriginalID: sale.ID, Amount: dec("200"), Reason: "partial", IdempotencyKey: "r-1"})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionTypeRefund, first.Type)
	assert.Equal(t, enums.DirectionOutgoing, first.Direction)
	require.NotNil(t, first.ReversalOf)
	assert.Equal(t, sale.ID, *first.ReversalOf)

	original, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPartiallyRefunded, original.Status)

	echo, err := svc.Refund(ctx, RefundInput{OriginalID: sale.ID, Amount: dec("200"), Reason: "partial", IdempotencyKey: "r-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, echo.ID, "repeated key must echo the prior refund")

	_, err = svc.Refund(ctx, RefundInput{OriginalID: sale.ID, Amount: dec("300.01"), Reason: "too much"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Refund(ctx, RefundInput{OriginalID: sale.ID, Amount: dec("300"), Reason: "rest"})
	require.NoError(t, err)
	original, err = repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusRefunded, original.Status)

	_, err = svc.Refund(ctx, RefundInput{OriginalID: sale.ID, Amount: dec("1"), Reason: "again"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestRefundRejectsPendingAndOutgoing(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)

	pending := incoming(uuid.New(), "10", enums.TransactionStatusPending)
	require.NoError(t, repo.Create(ctx, pending))
	_, err := svc.Refund(ctx, RefundInput{OriginalID: pending.ID, Amount: dec("1"), Reason: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	out := incoming(uuid.New(), "10", enums.TransactionStatusCompleted)
	out.Direction = enums.DirectionOutgoing
	out.Type = enums.TransactionTypePayoutCompleted
	require.NoError(t, repo.Create(ctx, out))
	_, err = svc.Refund(ctx, RefundInput{OriginalID: out.ID, Amount: dec("1"), Reason: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Refund(ctx, RefundInput{OriginalID: uuid.New(), Amount: dec("1"), Reason: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestAdjustCreatesCompletedRow(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	coach := uuid.New()

	sale := incoming(coach, "10", enums.TransactionStatusCompleted)
	require.NoError(t, repo.Create(ctx, sale))

	entry, err := svc.Adjust(ctx, AdjustInput{
		CoachID:        coach,
		Direction:      enums.DirectionOutgoing,
		Amount:         dec("2.505"),
		Reason:         "chargeback fee",
		OriginalID:     &sale.ID,
		IdempotencyKey: "adj-1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, entry.Status)
	assert.True(t, entry.GrossAmount.Equal(dec("2.51")), "rounded amount %s", entry.GrossAmount)

	again, err := svc.Adjust(ctx, AdjustInput{CoachID: coach, Direction: enums.DirectionOutgoing, Amount: dec("2.51"), Reason: "chargeback fee", IdempotencyKey: "adj-1"})
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)

	_, err = svc.Adjust(ctx, AdjustInput{CoachID: uuid.New(), Direction: enums.DirectionIncoming, Amount: dec("1"), Reason: "x", OriginalID: &sale.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Adjust(ctx, AdjustInput{CoachID: coach, Direction: "sideways", Amount: dec("1"), Reason: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func commissionRow(coachID, saleID uuid.UUID, level int, amount string) *models.Transaction {
	row := incoming(coachID, amount, enums.TransactionStatusCompleted)
	row.Type = enums.TransactionTypeMLMCommission
	if level == 0 {
		row.Type = enums.TransactionTypeCommissionEarned
	}
	row.Commission = models.CommissionDetails{Level: &level, SourceTransactionID: &saleID}
	return row
}

func TestSaleCostLinesSaleUpWithCommissions(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)

	sale := incoming(uuid.New(), "1000", enums.TransactionStatusCompleted)
	sale.ID = uuid.New()
	sale.Fees = models.Fees{PlatformFee: dec("200"), GSTAmount: dec("180"), TaxAmount: dec("180")}
	sale.NetAmount = dec("620")
	require.NoError(t, repo.Create(ctx, sale))
	require.NoError(t, repo.Create(ctx, commissionRow(uuid.New(), sale.ID, 1, "100")))
	require.NoError(t, repo.Create(ctx, commissionRow(uuid.New(), sale.ID, 2, "50")))

	cost, err := svc.SaleCost(ctx, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, cost.Sale)
	assert.Len(t, cost.Commissions, 2)
	assert.True(t, cost.CommissionCost.Equal(dec("150")), "got %s", cost.CommissionCost)
	assert.True(t, cost.PlatformMargin.Equal(dec("50")), "got %s", cost.PlatformMargin)
	assert.True(t, cost.Sale.NetAmount.Add(cost.PlatformFee).Add(cost.Tax).Equal(dec("1000")))
}

func TestSaleCostAffiliateSaleHasNoSellerRow(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	saleID := uuid.New()
	require.NoError(t, repo.Create(ctx, commissionRow(uuid.New(), saleID, 0, "200")))

	cost, err := svc.SaleCost(ctx, saleID)
	require.NoError(t, err)
	assert.Nil(t, cost.Sale)
	assert.True(t, cost.CommissionCost.Equal(dec("200")))
	assert.True(t, cost.PlatformMargin.Equal(dec("-200")))

	_, err = svc.SaleCost(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
