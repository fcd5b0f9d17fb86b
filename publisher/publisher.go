// Package publisher pushes property records to a downstream stream as they
// are extracted.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/models"
)

// Publisher receives one record at a time.
type Publisher interface {
	// Publish sends rec for the run that searched location.
	Publish(ctx context.Context, location string, rec models.PropertyRecord) error

	// Close releases the connection.
	Close() error
}

// RedisPublisher appends records to a Redis stream. Each entry carries the
// search location, the listing link and the record as JSON.
type RedisPublisher struct {
	client    redis.Cmdable
	closer    func() error
	stream    string
	maxLength int64
}

// NewRedisPublisher connects to cfg.RedisAddr and checks the server answers.
func NewRedisPublisher(ctx context.Context, cfg config.PublisherConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("publisher: ping %s: %w", cfg.RedisAddr, err)
	}
	return newRedisPublisher(client, client.Close, cfg.Stream, cfg.StreamMaxLength), nil
}

func newRedisPublisher(client redis.Cmdable, closer func() error, stream string, maxLength int) *RedisPublisher {
	return &RedisPublisher{
		client:    client,
		closer:    closer,
		stream:    stream,
		maxLength: int64(maxLength),
	}
}

// Publish appends rec to the stream, trimming it approximately to the
// configured maximum length.
func (p *RedisPublisher) Publish(ctx context.Context, location string, rec models.PropertyRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("publisher: marshal record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"location": location,
			"link":     rec.Link,
			"record":   string(body),
		},
	}
	if p.maxLength > 0 {
		args.MaxLen = p.maxLength
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publisher: xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
