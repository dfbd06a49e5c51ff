//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"covenant/internal/ledger"
	platformredis "covenant/internal/platform/redis"
	"covenant/internal/vesting"
	"covenant/internal/vesting/cache"
	id "covenant/pkg/domain"
	"covenant/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *platformredis.Client
	cache  *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	cfg := s.redis.Config()
	client, err := platformredis.New(context.Background(), cfg)
	s.Require().NoError(err)
	s.Require().NotNil(client)
	s.client = client
	s.cache = cache.NewRedisCache(client, cfg.VestingCacheTTL)
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.client != nil {
		s.Require().NoError(s.client.Close())
	}
}

func (s *RedisCacheSuite) TestClientHealth() {
	s.Require().NoError(s.client.Health(context.Background()))
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestMissSetGetInvalidate() {
	ctx := context.Background()
	identityID := id.NewIdentityID()

	_, err := s.cache.Get(ctx, identityID)
	s.ErrorIs(err, vesting.ErrCacheMiss)

	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	status := &vesting.Status{
		IdentityID:    identityID,
		Spendable:     decimal.RequireFromString("0.9"),
		Locked:        decimal.RequireFromString("4.1"),
		Counter:       3,
		Target:        10,
		Strictness:    ledger.StrictnessStandard,
		LastEventDate: &day,
	}
	s.Require().NoError(s.cache.Set(ctx, status))

	got, err := s.cache.Get(ctx, identityID)
	s.Require().NoError(err)
	s.Equal(identityID, got.IdentityID)
	s.True(got.Spendable.Equal(status.Spendable))
	s.True(got.Locked.Equal(status.Locked))
	s.Equal(3, got.Counter)
	s.Require().NotNil(got.LastEventDate)
	s.True(got.LastEventDate.Equal(day))

	ttl, err := s.redis.Client.TTL(ctx, "covenant:vesting:"+identityID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.cache.Invalidate(ctx, identityID))
	_, err = s.cache.Get(ctx, identityID)
	s.ErrorIs(err, vesting.ErrCacheMiss)
}
