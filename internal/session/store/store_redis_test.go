package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

type RedisStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.store = NewRedis(s.client, 30*time.Minute)
}

func (s *RedisStoreSuite) TearDownTest() {
	_ = s.client.Close()
	s.mr.Close()
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	sid := id.NewBrowserSessionID()
	checked := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	state := models.Authenticated(models.User{ID: "u-1", Role: models.RoleAdmin, Email: "a@example.com"}, []string{"token=abc"}, checked)

	saved, err := s.store.Save(ctx, sid, state, 0)
	s.Require().NoError(err)
	s.Equal(uint64(1), saved.Version)

	got, err := s.store.Load(ctx, sid)
	s.Require().NoError(err)
	s.Equal(models.AuthStatusAuthenticated, got.AuthStatus)
	s.Require().NotNil(got.User)
	s.Equal(models.RoleAdmin, got.User.Role)
	s.Equal([]string{"token=abc"}, got.Credentials)
	s.True(checked.Equal(got.CheckedAt))
	s.Equal(uint64(1), got.Version)
}

func (s *RedisStoreSuite) TestLoad_NotFound() {
	_, err := s.store.Load(context.Background(), id.NewBrowserSessionID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSave_VersionConflict() {
	ctx := context.Background()
	sid := id.NewBrowserSessionID()

	first, err := s.store.Save(ctx, sid, models.Unknown(), 0)
	s.Require().NoError(err)

	_, err = s.store.Save(ctx, sid, models.Unknown(), 0)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.Save(ctx, sid, models.Unauthenticated(time.Now()), first.Version)
	s.Require().NoError(err)

	_, err = s.store.Save(ctx, sid, models.Unauthenticated(time.Now()), first.Version)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *RedisStoreSuite) TestSave_AppliesTTL() {
	ctx := context.Background()
	sid := id.NewBrowserSessionID()
	_, err := s.store.Save(ctx, sid, models.Unknown(), 0)
	s.Require().NoError(err)

	s.Equal(30*time.Minute, s.mr.TTL(sessionKey(sid)))

	s.mr.FastForward(31 * time.Minute)
	_, err = s.store.Load(ctx, sid)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestTouch_RefreshesTTL() {
	ctx := context.Background()
	sid := id.NewBrowserSessionID()
	_, err := s.store.Save(ctx, sid, models.Unknown(), 0)
	s.Require().NoError(err)

	s.mr.FastForward(20 * time.Minute)
	s.Require().NoError(s.store.Touch(ctx, sid))
	s.Equal(30*time.Minute, s.mr.TTL(sessionKey(sid)))

	s.mr.FastForward(20 * time.Minute)
	_, err = s.store.Load(ctx, sid)
	s.Require().NoError(err)

	s.Require().ErrorIs(s.store.Touch(ctx, id.NewBrowserSessionID()), sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	sid := id.NewBrowserSessionID()
	_, err := s.store.Save(ctx, sid, models.Unknown(), 0)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(ctx, sid))
	s.Require().NoError(s.store.Delete(ctx, sid))
	s.False(s.mr.Exists(sessionKey(sid)))
}

func (s *RedisStoreSuite) TestUnavailable() {
	s.mr.Close()
	_, err := s.store.Load(context.Background(), id.NewBrowserSessionID())
	s.Require().ErrorIs(err, sentinel.ErrUnavailable)
}
