package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/fragment"
)

func TestFragmentRepository_UpsertCompletes(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	repo := fragment.NewRepository(infra.RedisClient)

	parts, err := repo.Upsert(ctx, "fragments:smsgw:SM1", 2, 3, "second ", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, parts)

	parts, err = repo.Upsert(ctx, "fragments:smsgw:SM1", 1, 3, "first ", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, parts)

	parts, err = repo.Upsert(ctx, "fragments:smsgw:SM1", 3, 3, "third", time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{"first ", "second ", "third"}, parts)

	// The complete set stays stored, so redelivering the completing segment
	// after a downstream failure yields the parts again.
	parts, err = repo.Upsert(ctx, "fragments:smsgw:SM1", 3, 3, "third", time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{"first ", "second ", "third"}, parts)

	// Remove is the hand-off acknowledgement; after it a redelivered segment
	// starts a fresh set.
	require.NoError(t, repo.Remove(ctx, "fragments:smsgw:SM1"))
	parts, err = repo.Upsert(ctx, "fragments:smsgw:SM1", 1, 3, "first ", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, parts)
}

func TestFragmentRepository_DuplicateSegmentOverwrites(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	repo := fragment.NewRepository(infra.RedisClient)

	_, err := repo.Upsert(ctx, "fragments:smsgw:SM2", 1, 2, "a", time.Minute)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "fragments:smsgw:SM2", 1, 2, "A", time.Minute)
	require.NoError(t, err)

	parts, err := repo.Upsert(ctx, "fragments:smsgw:SM2", 2, 2, "b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "b"}, parts)
}

func TestFragmentRepository_ExpiredSets(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	repo := fragment.NewRepository(infra.RedisClient)

	_, err := repo.Upsert(ctx, "fragments:smsgw:SM3", 1, 2, "only", time.Second)
	require.NoError(t, err)

	keys, err := repo.ExpiredSets(ctx, time.Now().Add(-time.Minute), 100)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = repo.ExpiredSets(ctx, time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	require.Equal(t, []string{"fragments:smsgw:SM3"}, keys)

	// Removed from tracking: a second sweep finds nothing.
	keys, err = repo.ExpiredSets(ctx, time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
