// Package event はドメインイベントの発行を提供する。
// ユーザー・シフト・マッチの作成と、マッチの採否決定をメッセージブローカーへ通知する。
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ルーティングキー
const (
	UserCreated  = "user.created"
	ShiftCreated = "shift.created"
	MatchCreated = "match.created"
	MatchDecided = "match.decided"
)

// Envelope はブローカーに送信するイベントの共通フォーマット。
type Envelope struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Data          any       `json:"data"`
}

// NewEnvelope はイベントIDと時刻を採番したEnvelopeを生成する。
// リクエストIDがコンテキストにあれば相関IDとして使用する。
func NewEnvelope(ctx context.Context, routingKey string, data any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     routingKey,
		CorrelationID: middleware.GetReqID(ctx),
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}
}

// Publisher はドメインイベント発行のインターフェース。
type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
	Close() error
}

// NoopPublisher はイベントを破棄するPublisher。ブローカー未設定時に使用する。
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }

// Emitter は発行失敗を呼び出し元に返さず、ログに記録するラッパー。
// 書き込みが完了した後の通知に使用する。
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
	onFailure func(routingKey string)
}

// NewEmitter はEmitterを生成する。onFailureはnilでもよい。
func NewEmitter(publisher Publisher, logger *slog.Logger, onFailure func(routingKey string)) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{publisher: publisher, logger: logger, onFailure: onFailure}
}

// Emit はイベントを発行する。失敗時はwarnログを出力する。
func (e *Emitter) Emit(ctx context.Context, routingKey string, data any) {
	if e == nil {
		return
	}
	if err := e.publisher.Publish(ctx, routingKey, data); err != nil {
		e.logger.Warn("event publish failed",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
		if e.onFailure != nil {
			e.onFailure(routingKey)
		}
	}
}

var _ Publisher = NoopPublisher{}
