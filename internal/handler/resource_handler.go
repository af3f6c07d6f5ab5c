package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lavoor/lavoor/internal/event"
	"github.com/lavoor/lavoor/internal/middleware"
	"github.com/lavoor/lavoor/internal/model"
	"github.com/lavoor/lavoor/internal/repository"
	"github.com/lavoor/lavoor/internal/validation"
)

// createdEvents は作成成功時に発行するイベントのルーティングキー。
var createdEvents = map[string]string{
	model.CollectionUsers:   event.UserCreated,
	model.CollectionShifts:  event.ShiftCreated,
	model.CollectionMatches: event.MatchCreated,
}

// conflictSubjects はストアの一意制約違反をConflictに変換する際の対象名。
var conflictSubjects = map[string]string{
	model.CollectionUsers:   "email",
	model.CollectionMatches: "duplicate-application",
}

// ResourceHandler は users、shifts、matches の汎用CRUDハンドラー。
// 書き込み系のボディはvalidation.Validatorが検証・補完済みのものを使用する。
type ResourceHandler struct {
	store   repository.ResourceStore
	emitter *event.Emitter
	logger  *slog.Logger
}

// NewResourceHandler はResourceHandlerを生成する。
func NewResourceHandler(store repository.ResourceStore, emitter *event.Emitter, logger *slog.Logger) *ResourceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceHandler{
		store:   store,
		emitter: emitter,
		logger:  logger,
	}
}

// collectionParam はパスの {collection} を小文字で返す。
func collectionParam(r *http.Request) string {
	return strings.ToLower(chi.URLParam(r, "collection"))
}

// RequireCollection は {collection} が定義済みのコレクションでなければ404を返すミドルウェア。
func RequireCollection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		collection := collectionParam(r)
		if !model.IsCollection(collection) {
			middleware.WriteAPIError(w, model.NewUnknownCollectionError(collection))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// List はドキュメント一覧を取得する。
// GET /{collection}?field=value&_sort=field&_order=asc|desc&_page=1&_limit=10
// ページング前の総件数を X-Total-Count ヘッダーに設定する。
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	collection := collectionParam(r)

	recs, total, err := h.store.List(r.Context(), collection, repository.NewListQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, recs)
}

// Get はドキュメントを1件取得する。
// GET /{collection}/{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	collection := collectionParam(r)
	id := chi.URLParam(r, "id")

	rec, err := h.store.FindOne(r.Context(), collection, model.Record{"id": id})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if rec == nil {
		middleware.WriteAPIError(w, model.NewNotFoundError(collection, id))
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Create はドキュメントを作成し、作成イベントを発行する。
// POST /{collection}
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	collection := collectionParam(r)

	rec, ok := validation.RecordFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	created, err := h.store.Insert(r.Context(), collection, rec)
	if err != nil {
		h.handleWriteError(w, r, collection, err)
		return
	}

	h.emitter.Emit(r.Context(), createdEvents[collection], eventPayload(collection, created))

	writeJSON(w, http.StatusCreated, created)
}

// Replace はドキュメント全体を置き換える。
// PUT /{collection}/{id}
func (h *ResourceHandler) Replace(w http.ResponseWriter, r *http.Request) {
	collection := collectionParam(r)
	id := chi.URLParam(r, "id")

	rec, ok := validation.RecordFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	replaced, err := h.store.Replace(r.Context(), collection, id, rec)
	if err != nil {
		h.handleWriteError(w, r, collection, err)
		return
	}
	if replaced == nil {
		middleware.WriteAPIError(w, model.NewNotFoundError(collection, id))
		return
	}

	writeJSON(w, http.StatusOK, replaced)
}

// Update はドキュメントのフィールドを部分更新する。
// PATCH /{collection}/{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	collection := collectionParam(r)
	id := chi.URLParam(r, "id")

	patch, ok := validation.RecordFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	updated, err := h.store.UpdateFields(r.Context(), collection, id, patch)
	if err != nil {
		h.handleWriteError(w, r, collection, err)
		return
	}
	if updated == nil {
		middleware.WriteAPIError(w, model.NewNotFoundError(collection, id))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete はドキュメントを削除する。
// DELETE /{collection}/{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	collection := collectionParam(r)
	id := chi.URLParam(r, "id")

	deleted, err := h.store.Delete(r.Context(), collection, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if !deleted {
		middleware.WriteAPIError(w, model.NewNotFoundError(collection, id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleWriteError はストアの一意制約違反をConflictとして返す。
func (h *ResourceHandler) handleWriteError(w http.ResponseWriter, r *http.Request, collection string, err error) {
	if errors.Is(err, repository.ErrDuplicateKey) {
		subject, ok := conflictSubjects[collection]
		if !ok {
			subject = "id"
		}
		h.logger.Info("write conflict",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, model.NewConflictError(subject))
		return
	}
	handleServiceError(w, r, h.logger, fmt.Errorf("failed to write %s: %w", collection, err))
}

// eventPayload はイベントに載せるデータを型付きモデルに変換する。
// 型が合わないフィールドを含む場合はドキュメントをそのまま使う。
func eventPayload(collection string, rec model.Record) any {
	var v any
	switch collection {
	case model.CollectionUsers:
		v = &model.User{}
	case model.CollectionShifts:
		v = &model.Shift{}
	case model.CollectionMatches:
		v = &model.Match{}
	default:
		return rec
	}
	if err := rec.Decode(v); err != nil {
		return rec
	}
	return v
}
