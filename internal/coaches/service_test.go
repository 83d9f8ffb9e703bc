package coaches

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coachledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

func strPtr(v string) *string { return &v }

func newService(t *testing.T) (Service, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.New(t).DB())
	svc, err := NewService(repo, nil)
	require.NoError(t, err)
	return svc, repo
}

func TestSyncUpsertsAndKeepsPayoutWiring(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	id := uuid.New()
	sponsor := uuid.New()

	_, err := svc.Sync(ctx, SyncInput{ID: id, DisplayName: "Asha"})
	require.NoError(t, err)

	require.NoError(t, repo.SaveIdentity(ctx, id, models.PayoutIdentity{
		ExternalContactID:     strPtr("cont_1"),
		ExternalFundAccountID: strPtr("fa_1"),
		IsActive:              true,
	}))

	profile, err := svc.Sync(ctx, SyncInput{ID: id, SponsorID: &sponsor, DisplayName: "Asha K"})
	require.NoError(t, err)
	assert.Equal(t, "Asha K", profile.DisplayName)
	require.NotNil(t, profile.SponsorID)
	assert.Equal(t, sponsor, *profile.SponsorID)
	assert.True(t, profile.IdentityActive, "sync must not reset identity")

	got, err := repo.SponsorOf(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sponsor, *got)
}

func TestSyncRejectsSelfSponsor(t *testing.T) {
	svc, _ := newService(t)
	id := uuid.New()
	_, err := svc.Sync(context.Background(), SyncInput{ID: id, SponsorID: &id})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestUpdateDestinationDeactivatesIdentity(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	id := uuid.New()
	_, err := svc.Sync(ctx, SyncInput{ID: id, DisplayName: "Ravi"})
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, repo.SaveIdentity(ctx, id, models.PayoutIdentity{
		ExternalContactID:     strPtr("cont_1"),
		ExternalFundAccountID: strPtr("fa_1"),
		IsActive:              true,
		ProvisionedAt:         &now,
	}))

	profile, err := svc.UpdateDestination(ctx, id, DestinationInput{
		Method:            enums.PayoutMethodBank,
		BankHolderName:    "Ravi Kumar",
		BankIFSC:          "hdfc0001234",
		BankAccountNumber: "123456789012",
	})
	require.NoError(t, err)
	assert.False(t, profile.IdentityActive)
	assert.Equal(t, "bank:HDFC0001234:********9012", profile.PayoutDestination)

	coach, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, coach.Destination.IsComplete())
	assert.False(t, coach.Identity.Ready())
	require.NotNil(t, coach.Identity.ExternalContactID, "contact id is kept for audit")
}

func TestUpdateDestinationValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.UpdateDestination(ctx, uuid.New(), DestinationInput{Method: enums.PayoutMethodUPI, UPIID: "not-an-upi"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateDestination(ctx, uuid.New(), DestinationInput{Method: "cash"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateDestination(ctx, uuid.New(), DestinationInput{Method: enums.PayoutMethodUPI, UPIID: "asha@okbank"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListPayoutReadyPages(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	var ready []uuid.UUID
	for i := 0; i < 3; i++ {
		id := uuid.New()
		_, err := svc.Sync(ctx, SyncInput{ID: id})
		require.NoError(t, err)
		require.NoError(t, repo.SaveIdentity(ctx, id, models.PayoutIdentity{
			ExternalContactID:     strPtr("c"),
			ExternalFundAccountID: strPtr("f"),
			IsActive:              true,
		}))
		ready = append(ready, id)
	}
	_, err := svc.Sync(ctx, SyncInput{ID: uuid.New()})
	require.NoError(t, err)

	first, err := repo.ListPayoutReady(ctx, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	rest, err := repo.ListPayoutReady(ctx, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	seen := map[uuid.UUID]bool{first[0].ID: true, first[1].ID: true, rest[0].ID: true}
	for _, id := range ready {
		assert.True(t, seen[id])
	}
}
