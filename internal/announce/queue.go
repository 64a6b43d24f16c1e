package announce

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/metrics"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/obslog"
)

// Queue delivers announcements to the chat front end through a Redis
// list. The bot process pushes; the front end pops.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue connects to Redis and returns a queue on the given list key.
func NewQueue(redisURL, key string) (*Queue, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for announcement queue")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return NewQueueWithClient(rdb, key), nil
}

// NewQueueWithClient wraps an existing client, for tests.
func NewQueueWithClient(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

// Publish pushes a message onto the queue.
func (q *Queue) Publish(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return err
	}
	metrics.AnnouncementQueued()
	obslog.L().Debug("announce_queued",
		zap.String("id", msg.ID),
		zap.String("content", msg.Content),
	)
	return nil
}

// Next blocks up to timeout for the next message. Returns nil with no
// error when the queue stays empty.
func (q *Queue) Next(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value]
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (q *Queue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
