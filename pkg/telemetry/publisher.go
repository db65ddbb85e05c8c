// Package telemetry publishes Circle events to Redis as an optional,
// fire-and-forget live-dashboard sink for the device façade. Nothing is
// ever read back from Redis by the core driver: this is a write-only
// observability path, not a persistence layer.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/device"
)

// Publisher satisfies device.Observer, so it can be wired directly into
// Stick.SetObserver.
var _ device.Observer = (*Publisher)(nil)

// Publisher writes Circle events to Redis hashes keyed by SocketId and
// publishes the same events on a per-socket channel.
type Publisher struct {
	client *redis.Client
	ctx    context.Context
	logger *log.Logger
}

// New connects to addr and verifies reachability with a Ping.
func New(addr, password string, db int, logger *log.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{client: client, ctx: ctx, logger: logger}, nil
}

// Close releases the underlying Redis connection.
func (p *Publisher) Close() error { return p.client.Close() }

func (p *Publisher) key(socket codec.SocketId) string {
	return fmt.Sprintf("plugwise:circle:%s", socket)
}

// RelaySwitched records and publishes a relay-state transition.
func (p *Publisher) RelaySwitched(socket codec.SocketId, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	p.writeAndPublishString(socket, "relay", state)
}

// WattsRead records and publishes an instantaneous power reading.
func (p *Publisher) WattsRead(socket codec.SocketId, watts float64) {
	p.writeAndPublishString(socket, "watts", fmt.Sprintf("%.3f", watts))
}

// ClockRead records and publishes a clock-read/clock-set event as a unix
// timestamp.
func (p *Publisher) ClockRead(socket codec.SocketId, t time.Time) {
	p.writeAndPublishInt(socket, "clock", t.Unix())
}

func (p *Publisher) writeAndPublishString(socket codec.SocketId, field, value string) {
	key := p.key(socket)
	pipe := p.client.Pipeline()
	pipe.HSet(p.ctx, key, field, value)
	pipe.Publish(p.ctx, key, fmt.Sprintf("%s:%s", field, value))
	if _, err := pipe.Exec(p.ctx); err != nil {
		p.logger.Printf("telemetry: failed to publish %s for %s: %v", field, socket, err)
	}
}

func (p *Publisher) writeAndPublishInt(socket codec.SocketId, field string, value int64) {
	key := p.key(socket)
	pipe := p.client.Pipeline()
	pipe.HSet(p.ctx, key, field, value)
	pipe.Publish(p.ctx, key, fmt.Sprintf("%s:%d", field, value))
	if _, err := pipe.Exec(p.ctx); err != nil {
		p.logger.Printf("telemetry: failed to publish %s for %s: %v", field, socket, err)
	}
}
