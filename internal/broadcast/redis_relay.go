package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const EventsChannel = "inbox:events"

// RedisRelay shares events between instances. Send publishes a frame; Run
// subscribes and hands every frame, including this instance's own, to deliver.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: EventsChannel}
}

func (r *RedisRelay) Send(ctx context.Context, ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, frame).Err()
}

// Run blocks until ctx is done. It returns an error only when the initial
// subscription fails.
func (r *RedisRelay) Run(ctx context.Context, deliver func([]byte)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver([]byte(msg.Payload))
		}
	}
}
