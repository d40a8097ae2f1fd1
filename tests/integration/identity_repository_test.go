package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/identity"
)

func TestIdentityRepository_GetOrCreate(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := identity.NewRepository(infra.PostgresDB)

	ref, err := repo.GetOrCreate(ctx, "org-1", "whatsapp", "15550001111", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "15550001111", ref.Address)
	assert.Equal(t, "Ada", ref.DisplayName)

	again, err := repo.GetOrCreate(ctx, "org-1", "whatsapp", "15550001111", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, ref.ID, again.ID)
	assert.Equal(t, "Ada", again.DisplayName, "display name is written once")
}

func TestIdentityRepository_DistinctPerCarrier(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := identity.NewRepository(infra.PostgresDB)

	wa, err := repo.GetOrCreate(ctx, "org-1", "whatsapp", "15550001111", "Ada")
	require.NoError(t, err)
	sms, err := repo.GetOrCreate(ctx, "org-1", "smsgw", "15550001111", "Ada")
	require.NoError(t, err)

	assert.NotEqual(t, wa.ID, sms.ID)
}
