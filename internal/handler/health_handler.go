package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lavoor/lavoor/internal/timeutil"
)

// healthPingTimeout はヘルスチェック時のストア疎通確認のタイムアウト。
const healthPingTimeout = 2 * time.Second

// Pinger はストアの疎通確認を行うインターフェース。
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthResponse は /health のレスポンス。
type healthResponse struct {
	OK        bool   `json:"ok"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	pinger  Pinger
	service string
	logger  *slog.Logger
	now     func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。pingerがnilの場合は常に正常を返す。
func NewHealthHandler(pinger Pinger, service string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		pinger:  pinger,
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// ServeHTTP はサービスの稼働状態を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		OK:        true,
		Service:   h.service,
		Timestamp: timeutil.FormatTimestamp(h.now()),
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("error", err.Error()))
			resp.OK = false
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
