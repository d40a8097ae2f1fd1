package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/logger"
	"courier/pkg/models"
)

type fakeRepo struct {
	calls int
	err   error
}

func (f *fakeRepo) GetOrCreate(_ context.Context, orgID, carrierName, address, displayName string) (models.IdentityRef, error) {
	f.calls++
	if f.err != nil {
		return models.IdentityRef{}, f.err
	}
	return models.IdentityRef{
		ID:          "id-" + address,
		Address:     address,
		DisplayName: displayName,
	}, nil
}

func TestResolveWithoutCache(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil, logger.NopLogger())

	ref, err := svc.Resolve(context.Background(), "org-1", "whatsapp", "15559992222", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "id-15559992222", ref.ID)
	assert.Equal(t, "Ada", ref.DisplayName)
	assert.Equal(t, 1, repo.calls)
}

func TestResolveRepositoryError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection reset")}
	svc := NewService(repo, nil, logger.NopLogger())

	_, err := svc.Resolve(context.Background(), "org-1", "whatsapp", "1555", "")
	assert.Error(t, err)
}
