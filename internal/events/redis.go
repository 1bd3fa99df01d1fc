// Package events publishes pipeline stage transitions to a redis channel so
// other processes can follow a run while it executes.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
)

const DefaultChannel = "sensei:pipeline"

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// Event is the message body sent for every stage transition.
type Event struct {
	RunID    string             `json:"run_id"`
	Stage    pipeline.StageName `json:"stage"`
	Agent    string             `json:"agent"`
	Status   pipeline.Status    `json:"status"`
	Run      pipeline.Status    `json:"run_status"`
	Executor string             `json:"executor"`
	Error    string             `json:"error,omitempty"`
	At       string             `json:"at"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

type Publisher struct {
	client  publisher
	channel string
	log     *zap.Logger
}

func NewRedisPublisher(cfg RedisConfig, log *zap.Logger) (*Publisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newPublisher(client, cfg.Channel, log), nil
}

func newPublisher(client publisher, channel string, log *zap.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, channel: channel, log: log}
}

func (p *Publisher) Channel() string { return p.channel }

// StageChanged publishes the transition. Failures are logged and never
// interrupt the run.
func (p *Publisher) StageChanged(ctx context.Context, run pipeline.Run, stage pipeline.StageRecord) {
	payload, err := encode(run, stage)
	if err != nil {
		p.log.Warn("encode pipeline event", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.Warn("publish pipeline event",
			zap.String("run_id", run.ID),
			zap.String("stage", string(stage.Name)),
			zap.String("channel", p.channel),
			zap.Error(err),
		)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func encode(run pipeline.Run, stage pipeline.StageRecord) ([]byte, error) {
	at := stage.FinishedAt
	if at == "" {
		at = stage.StartedAt
	}
	if at == "" {
		at = run.UpdatedAt
	}
	return json.Marshal(Event{
		RunID:    run.ID,
		Stage:    stage.Name,
		Agent:    stage.Agent,
		Status:   stage.Status,
		Run:      run.Status,
		Executor: run.Executor,
		Error:    stage.Error,
		At:       at,
	})
}
