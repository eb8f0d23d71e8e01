package events

import (
	"context"
	"fmt"

	"media-artwork/internal/infrastructure/config"
	"media-artwork/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TrackChanged 換曲事件
type TrackChanged struct {
	TrackKey string `json:"track_key"`
}

// Handler 處理換曲事件
type Handler func(ctx context.Context, event TrackChanged) error

// Subscriber 從 Redis 頻道訂閱換曲事件
type Subscriber struct {
	client  *redis.Client
	channel string
	handler Handler
}

// NewSubscriber 創建訂閱者並測試連接
func NewSubscriber(ctx context.Context, cfg config.RedisConfig, handler Handler) (*Subscriber, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{
		client:  client,
		channel: cfg.Channel,
		handler: handler,
	}, nil
}

// Run 持續接收訊息直到 ctx 結束
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// 等待訂閱確認
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", s.channel, err)
	}
	common.LogInfo("Subscribed to artwork events", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatch(ctx, msg.Payload)
		}
	}
}

// dispatch 解析並處理單一訊息，錯誤只記錄不中斷
func (s *Subscriber) dispatch(ctx context.Context, payload string) {
	event, err := ParseTrackChanged(payload)
	if err != nil {
		common.LogWarn("Malformed artwork event",
			zap.String("channel", s.channel),
			zap.Error(err),
		)
		return
	}

	if err := s.handler(ctx, event); err != nil {
		common.LogError("Failed to handle artwork event",
			zap.String("channel", s.channel),
			zap.String("track_key", event.TrackKey),
			zap.Error(err),
		)
	}
}

// ParseTrackChanged 解析換曲事件，空 payload 視為強制清除
func ParseTrackChanged(payload string) (TrackChanged, error) {
	var event TrackChanged
	if payload == "" {
		return event, nil
	}
	if err := common.ParseJSONBytesStrict([]byte(payload), &event); err != nil {
		return TrackChanged{}, fmt.Errorf("invalid event payload: %w", err)
	}
	return event, nil
}

// Close 關閉 Redis 連接
func (s *Subscriber) Close() error {
	return s.client.Close()
}
