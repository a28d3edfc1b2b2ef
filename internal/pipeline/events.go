package pipeline

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// EventJobsLoaded is published after every successful run.
const EventJobsLoaded = "EVENT_JOBS_LOADED"

// EventPublisher delivers run notifications.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes on Redis pub/sub.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (r *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.rdb.Publish(ctx, channel, payload).Err()
}

// publishLoaded is non-fatal: a failed publish is only logged.
func (p *Pipeline) publishLoaded(ctx context.Context, rep *Report) {
	if p.events == nil {
		return
	}
	event, _ := json.Marshal(map[string]string{
		"type":   EventJobsLoaded,
		"runId":  rep.RunID,
		"loaded": strconv.Itoa(rep.Loaded),
	})
	if err := p.events.Publish(ctx, EventJobsLoaded, event); err != nil {
		p.log.Warn().Err(err).Msg("publish " + EventJobsLoaded + " failed")
	}
}
