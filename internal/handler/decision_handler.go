package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lavoor/lavoor/internal/middleware"
	"github.com/lavoor/lavoor/internal/model"
	"github.com/lavoor/lavoor/internal/validation"
)

// MatchDecider はマッチの採否決定を行うサービスのインターフェース。
type MatchDecider interface {
	Decide(ctx context.Context, id, decision string) (model.Record, error)
}

// DecisionHandler はマッチ採否決定のHTTPハンドラー。
type DecisionHandler struct {
	service MatchDecider
	logger  *slog.Logger
}

// NewDecisionHandler はDecisionHandlerを生成する。
func NewDecisionHandler(service MatchDecider, logger *slog.Logger) *DecisionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionHandler{service: service, logger: logger}
}

// Decide はマッチの状態を更新する。
// PATCH /matches/{id}/decision  body: {"decision": "accepted"|"rejected"}
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if collectionParam(r) != model.CollectionMatches {
		middleware.WriteAPIError(w, model.NewNotFoundError(collectionParam(r), chi.URLParam(r, "id")))
		return
	}

	body, ok := validation.RecordFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	// 文字列以外は不正な決定値として扱う
	decision, _ := body["decision"].(string)

	updated, err := h.service.Decide(r.Context(), chi.URLParam(r, "id"), decision)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
