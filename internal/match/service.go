// Package match はマッチ（応募）の採否決定を提供する。
package match

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lavoor/lavoor/internal/event"
	"github.com/lavoor/lavoor/internal/metrics"
	"github.com/lavoor/lavoor/internal/model"
	"github.com/lavoor/lavoor/internal/repository"
	"github.com/lavoor/lavoor/internal/timeutil"
)

// Store はServiceが使用するストア操作。
type Store interface {
	repository.Finder
	repository.Updater
}

// Service はマッチの採否決定を行う。
type Service struct {
	store   Store
	emitter *event.Emitter
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。emitterとmetricsはnilでもよい。
func NewService(store Store, emitter *event.Emitter, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Service{
		store:   store,
		emitter: emitter,
		metrics: m,
		now:     time.Now,
	}
}

// Decide はマッチの状態を accepted または rejected に更新し、更新後のマッチを返す。
// 決定済みのマッチに対しても上書きする。
func (s *Service) Decide(ctx context.Context, id, decision string) (model.Record, error) {
	status := model.MatchStatus(strings.TrimSpace(decision))
	if !status.IsDecision() {
		return nil, model.NewInvalidFieldError("decision", "accepted または rejected を指定してください")
	}

	existing, err := s.store.FindOne(ctx, model.CollectionMatches, model.Record{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	if existing == nil {
		return nil, model.NewNotFoundError("match", id)
	}

	updated, err := s.store.UpdateFields(ctx, model.CollectionMatches, id, model.Record{
		"status":    string(status),
		"updatedAt": timeutil.FormatTimestamp(s.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	// 参照から更新までの間に削除された
	if updated == nil {
		return nil, model.NewNotFoundError("match", id)
	}

	s.metrics.RecordMatchDecision(string(status))
	s.emitter.Emit(ctx, event.MatchDecided, updated)

	return updated, nil
}
