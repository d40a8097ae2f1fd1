package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/dedup"
)

func TestDedupRepository_SetNX(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	repo := dedup.NewRepository(infra.RedisClient)

	ok, err := repo.SetNX(ctx, "delivery:whatsapp:wamid.1", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetNX(ctx, "delivery:whatsapp:wamid.1", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, "delivery:whatsapp:wamid.1"))

	ok, err = repo.SetNX(ctx, "delivery:whatsapp:wamid.1", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDedupService_ClaimAndRelease(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	svc := dedup.NewService(
		dedup.NewRepository(infra.RedisClient),
		config.DeduplicationConfig{TTLSeconds: 60},
		createTestLogger(),
	)

	claimed, err := svc.Claim(ctx, "whatsapp", "wamid.9")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = svc.Claim(ctx, "whatsapp", "wamid.9")
	require.NoError(t, err)
	assert.False(t, claimed)

	svc.Release(ctx, "whatsapp", "wamid.9")

	claimed, err = svc.Claim(ctx, "whatsapp", "wamid.9")
	require.NoError(t, err)
	assert.True(t, claimed)
}
