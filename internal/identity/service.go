package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/models"
)

const cacheTTL = 1 * time.Hour

// Service resolves contact identities with a cache-aside layer in front of
// Postgres. Cache failures degrade to the database, never to an error.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger logger.Logger
}

func NewService(repo Repository, cache *redis.Client, log logger.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: log}
}

func (s *Service) Resolve(ctx context.Context, orgID, carrierName, address, displayName string) (models.IdentityRef, error) {
	key := cacheKey(orgID, carrierName, address)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			var ref models.IdentityRef
			if jsonErr := json.Unmarshal([]byte(raw), &ref); jsonErr == nil {
				return ref, nil
			}
			// Unreadable entry: fall through and rewrite it.
		case !errors.Is(err, redis.Nil):
			s.logger.WarnwCtx(ctx, "Identity cache read failed", "key", key, "error", err)
		}
	}

	ref, err := s.repo.GetOrCreate(ctx, orgID, carrierName, address, displayName)
	if err != nil {
		return models.IdentityRef{}, err
	}

	if s.cache != nil {
		if data, jsonErr := json.Marshal(ref); jsonErr == nil {
			if err := s.cache.Set(ctx, key, data, cacheTTL).Err(); err != nil {
				s.logger.WarnwCtx(ctx, "Identity cache write failed", "key", key, "error", err)
			}
		}
	}
	return ref, nil
}

func cacheKey(orgID, carrierName, address string) string {
	return constants.CacheKeyPrefixIdentity + orgID + ":" + carrierName + ":" + address
}
