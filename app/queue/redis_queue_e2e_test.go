//go:build e2e

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisQueueTestSuite struct {
	suite.Suite
	rc  *redis.Client
	key string
	q   *RedisQueue
}

func TestRedisQueueSuite(t *testing.T) {
	suite.Run(t, new(RedisQueueTestSuite))
}

func (s *RedisQueueTestSuite) SetupSuite() {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opt, err := redis.ParseURL(url)
	s.Require().NoError(err)
	s.rc = redis.NewClient(opt)

	if err := s.rc.Ping(context.Background()).Err(); err != nil {
		s.T().Skipf("redis not reachable: %v", err)
	}
}

func (s *RedisQueueTestSuite) TearDownSuite() {
	if s.rc != nil {
		_ = s.rc.Close()
	}
}

func (s *RedisQueueTestSuite) SetupTest() {
	s.key = "test:whatsapp_campaign_tasks:" + time.Now().Format("150405.000000")
	s.q = NewRedisQueue(s.rc, s.key)
}

func (s *RedisQueueTestSuite) TearDownTest() {
	s.rc.Del(context.Background(), s.key)
}

func (s *RedisQueueTestSuite) TestClaimHonoursDueTime() {
	ctx := context.Background()
	s.Require().NoError(s.q.Enqueue(ctx, NewSendTask(1, 1, 1), 0))
	s.Require().NoError(s.q.Enqueue(ctx, NewSendTask(1, 2, 1), time.Hour))

	n, err := s.q.Len(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	got, err := s.q.Claim(ctx, time.Now(), 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(uint(1), got[0].ContactID)

	got, err = s.q.Claim(ctx, time.Now(), 10)
	s.Require().NoError(err)
	s.Empty(got)

	got, err = s.q.Claim(ctx, time.Now().Add(2*time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(uint(2), got[0].ContactID)
}

func (s *RedisQueueTestSuite) TestClaimRespectsLimit() {
	ctx := context.Background()
	for i := uint(1); i <= 5; i++ {
		s.Require().NoError(s.q.Enqueue(ctx, NewSendTask(7, i, 1), 0))
	}

	got, err := s.q.Claim(ctx, time.Now(), 3)
	s.Require().NoError(err)
	s.Len(got, 3)

	n, err := s.q.Len(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}
