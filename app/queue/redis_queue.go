package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript atomically pops up to ARGV[2] members whose score is <= ARGV[1]
var claimScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
if #items > 0 then
	redis.call('ZREM', KEYS[1], unpack(items))
end
return items
`)

// RedisQueue stores tasks in a sorted set scored by due time in unix milliseconds
type RedisQueue struct {
	rc  *redis.Client
	key string
}

func NewRedisQueue(rc *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rc: rc, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	member, err := encodeTask(task)
	if err != nil {
		return err
	}
	due := time.Now().Add(delay).UnixMilli()
	if err := q.rc.ZAdd(ctx, q.key, redis.Z{Score: float64(due), Member: member}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task, err)
	}
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := claimScript.Run(ctx, q.rc, []string{q.key}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim tasks: %w", err)
	}

	tasks := make([]Task, 0, len(members))
	for _, m := range members {
		t, err := decodeTask(m)
		if err != nil {
			log.Printf("queue: dropping malformed task %q: %v", m, err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Len returns the number of tasks waiting, due or not
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rc.ZCard(ctx, q.key).Result()
}
