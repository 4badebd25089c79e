//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"storefront/internal/session/models"
	"storefront/internal/session/store"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
	"storefront/pkg/testutil/containers"
)

type RedisIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = store.NewRedis(s.redis.Client, time.Hour)
}

func (s *RedisIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestWATCHConflictDetection verifies that concurrent writers racing on the
// same version produce exactly one winner under real Redis WATCH semantics.
func (s *RedisIntegrationSuite) TestWATCHConflictDetection() {
	ctx := context.Background()
	sid := id.NewBrowserSessionID()
	base, err := s.store.Save(ctx, sid, models.Unknown(), 0)
	s.Require().NoError(err)

	const writers = 20
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Save(ctx, sid, models.Unauthenticated(time.Now()), base.Version)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(writers-1), conflicts.Load())

	got, err := s.store.Load(ctx, sid)
	s.Require().NoError(err)
	s.Equal(base.Version+1, got.Version)
}
