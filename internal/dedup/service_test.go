package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/logger"
)

type fakeRepo struct {
	entries map[string]time.Duration
	setErr  error
	delErr  error
	deleted []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string]time.Duration)}
}

func (f *fakeRepo) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, exists := f.entries[key]; exists {
		return false, nil
	}
	f.entries[key] = ttl
	return true, nil
}

func (f *fakeRepo) Delete(_ context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.entries, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func TestClaimFirstDelivery(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, config.DeduplicationConfig{TTLSeconds: 60}, logger.NopLogger())

	claimed, err := svc.Claim(context.Background(), "whatsapp", "wamid.1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 60*time.Second, repo.entries["delivery:whatsapp:wamid.1"])
}

func TestClaimDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, config.DeduplicationConfig{TTLSeconds: 60}, logger.NopLogger())

	first, err := svc.Claim(context.Background(), "whatsapp", "wamid.1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := svc.Claim(context.Background(), "whatsapp", "wamid.1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestClaimSameIDDifferentCarriers(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, config.DeduplicationConfig{TTLSeconds: 60}, logger.NopLogger())

	a, err := svc.Claim(context.Background(), "whatsapp", "id-1")
	require.NoError(t, err)
	b, err := svc.Claim(context.Background(), "telegram", "id-1")
	require.NoError(t, err)
	assert.True(t, a)
	assert.True(t, b)
}

func TestClaimRedisError(t *testing.T) {
	repo := newFakeRepo()
	repo.setErr = errors.New("connection refused")
	svc := NewService(repo, config.DeduplicationConfig{TTLSeconds: 60}, logger.NopLogger())

	_, err := svc.Claim(context.Background(), "whatsapp", "wamid.1")
	assert.Error(t, err)
}

func TestReleaseAllowsRetry(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, config.DeduplicationConfig{TTLSeconds: 60}, logger.NopLogger())

	claimed, err := svc.Claim(context.Background(), "smsgw", "SM1")
	require.NoError(t, err)
	require.True(t, claimed)

	svc.Release(context.Background(), "smsgw", "SM1")

	again, err := svc.Claim(context.Background(), "smsgw", "SM1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestDefaultTTLApplied(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, config.DeduplicationConfig{}, logger.NopLogger())

	_, err := svc.Claim(context.Background(), "rcs", "r1")
	require.NoError(t, err)
	assert.Equal(t, 86400*time.Second, repo.entries["delivery:rcs:r1"])
}
