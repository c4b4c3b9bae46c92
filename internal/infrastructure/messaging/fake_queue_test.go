package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// memQueue is an in-process stand-in for the Redis lists a Queue touches
type memQueue struct {
	mu      sync.Mutex
	lists   map[string][]string
	expires map[string]time.Duration
	notify  chan struct{}
	pushErr error
}

func newMemQueue() *memQueue {
	return &memQueue{
		lists:   make(map[string][]string),
		expires: make(map[string]time.Duration),
		notify:  make(chan struct{}, 1024),
	}
}

func (q *memQueue) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		cmd.SetErr(q.pushErr)
		return cmd
	}
	for _, v := range values {
		switch val := v.(type) {
		case []byte:
			q.lists[key] = append(q.lists[key], string(val))
		case string:
			q.lists[key] = append(q.lists[key], val)
		}
	}
	cmd.SetVal(int64(len(q.lists[key])))
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return cmd
}

func (q *memQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	deadline := time.After(timeout)
	for {
		if key, val, ok := q.pop(keys); ok {
			cmd.SetVal([]string{key, val})
			return cmd
		}
		select {
		case <-ctx.Done():
			cmd.SetErr(ctx.Err())
			return cmd
		case <-deadline:
			cmd.SetErr(redis.Nil)
			return cmd
		case <-q.notify:
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (q *memQueue) pop(keys []string) (string, string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, k := range keys {
		if l := q.lists[k]; len(l) > 0 {
			q.lists[k] = l[1:]
			return k, l[0], true
		}
	}
	return "", "", false
}

func (q *memQueue) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	q.mu.Lock()
	q.expires[key] = expiration
	q.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (q *memQueue) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := q.lists[k]; ok {
			delete(q.lists, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func (q *memQueue) items(key string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.lists[key]...)
}

func (q *memQueue) ttl(key string) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.expires[key]
}
