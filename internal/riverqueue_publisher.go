package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// riverQueuePublisher enqueues events as River jobs. The client is
// insert-only; workers run in a separate process.
type riverQueuePublisher struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	cfg    RiverQueueConfig
}

// eventJobArgs carries the event payload into the jobs table. The job
// kind is configurable so multiple gateways can share one River schema.
type eventJobArgs struct {
	kind string

	Integration string          `json:"integration"`
	Provider    string          `json:"provider"`
	Name        string          `json:"name"`
	RequestID   string          `json:"request_id,omitempty"`
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
}

func (a eventJobArgs) Kind() string { return a.kind }

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &riverQueuePublisher{pool: pool, client: client, cfg: cfg}, nil
}

// Publish inserts one job per event.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, event Event) error {
	payload := event.RawPayload
	if len(payload) == 0 {
		encoded, err := json.Marshal(event)
		if err != nil {
			return err
		}
		payload = encoded
	}

	args := eventJobArgs{
		kind:        p.cfg.Kind,
		Integration: event.Integration,
		Provider:    event.Provider,
		Name:        event.Name,
		RequestID:   event.RequestID,
		Topic:       topic,
		Payload:     payload,
	}
	_, err := p.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       p.cfg.Queue,
		MaxAttempts: p.cfg.MaxAttempts,
		Priority:    p.cfg.Priority,
		Tags:        p.cfg.Tags,
	})
	return err
}

func (p *riverQueuePublisher) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// PublishForDrivers is a convenience method that calls Publish.
func (p *riverQueuePublisher) PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error {
	return p.Publish(ctx, topic, event)
}
