// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lavoor/lavoor/internal/event"
	"github.com/lavoor/lavoor/internal/metrics"
	"github.com/lavoor/lavoor/internal/middleware"
	"github.com/lavoor/lavoor/internal/model"
	"github.com/lavoor/lavoor/internal/repository"
	"github.com/lavoor/lavoor/internal/validation"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ストアと書き込み検証
	Store     repository.ResourceStore
	Validator *validation.Validator

	// マッチ採否決定
	MatchService MatchDecider

	// 作成イベントの発行。nilなら発行しない
	Emitter *event.Emitter

	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	MetricsHandler     http.Handler
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string

	// /health で返すサービス名
	ServiceName string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → CORS → SecurityHeaders
//	→ RateLimit → RequireCollection → Validator
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAPIError(w, model.NewNotFoundError("route", r.URL.Path))
	})

	resourceHandler := NewResourceHandler(deps.Store, deps.Emitter, logger)
	decisionHandler := NewDecisionHandler(deps.MatchService, logger)

	// --- 運用系のルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.Store, deps.ServiceName, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- リソースのルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/{collection}", func(r chi.Router) {
			r.Use(RequireCollection)
			r.Use(deps.Validator.Middleware)

			r.Get("/", resourceHandler.List)
			r.Post("/", resourceHandler.Create)

			r.Get("/{id}", resourceHandler.Get)
			r.Put("/{id}", resourceHandler.Replace)
			r.Patch("/{id}", resourceHandler.Update)
			r.Delete("/{id}", resourceHandler.Delete)

			// PATCH /matches/{id}/decision
			r.Patch("/{id}/decision", decisionHandler.Decide)
		})
	})

	return r
}
