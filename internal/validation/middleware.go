// Package validation は書き込みリクエストの検証と既定値の補完を行うHTTPミドルウェアを提供する。
//
// POST /users、POST /shifts、POST /matches に対してリソースごとの規則を定義順に評価し、
// 最初に失敗した規則のエラーのみを返す。成功した場合は正規化済みのレコードを
// リクエストコンテキストに格納して後続のハンドラーに渡す。
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lavoor/lavoor/internal/metrics"
	"github.com/lavoor/lavoor/internal/middleware"
	"github.com/lavoor/lavoor/internal/model"
	"github.com/lavoor/lavoor/internal/repository"
	"github.com/lavoor/lavoor/internal/security"
	"github.com/lavoor/lavoor/internal/timeutil"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

type contextKey string

const recordKey contextKey = "validation_record"

// Validator は書き込みリクエストを検証するミドルウェア。
// 参照整合性と一意性の確認にはFinderのみを使用する。
type Validator struct {
	finder    repository.Finder
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time

	users   []Rule[UserInput]
	shifts  []Rule[ShiftInput]
	matches []Rule[MatchInput]
}

// Option はValidatorの設定を変更する。
type Option func(*Validator)

// WithMetrics は拒否数を記録するメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithClock はタイムスタンプに使用する現在時刻の取得関数を設定する。
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithSanitizer は自由記述フィールドのサニタイザーを設定する。
func WithSanitizer(s security.TextSanitizer) Option {
	return func(v *Validator) { v.sanitizer = s }
}

// New はValidatorを生成する。
func New(finder repository.Finder, opts ...Option) *Validator {
	v := &Validator{
		finder:    finder,
		sanitizer: security.NewTextSanitizer(),
		metrics:   metrics.NopCollector{},
		logger:    slog.Default(),
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.users = v.userRules()
	v.shifts = v.shiftRules()
	v.matches = v.matchRules()

	return v
}

// Middleware はPOST/PUT/PATCHのボディを1度だけデコードし、検証と補完を行ってから次のハンドラーを呼び出す。
// それ以外のメソッドはそのまま通過させる。
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBody(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		path := normalizePath(r.URL.Path)

		rec, err := decodeRecord(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			v.reject(w, r, path, model.NewInvalidRequestError())
			return
		}

		if err := v.Validate(r.Context(), r.Method, path, rec); err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				v.reject(w, r, path, apiErr)
				return
			}
			v.logger.Error("validation lookup failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), rec)))
	})
}

// Validate はタイムスタンプを付与し、作成リクエストであればリソースごとの規則を評価する。
// recは補完・正規化された値で更新される。pathは小文字化済みで末尾の"/"を含まないこと。
func (v *Validator) Validate(ctx context.Context, method, path string, rec model.Record) error {
	v.stampTimestamps(method, rec)

	if method != http.MethodPost {
		return nil
	}

	switch path {
	case "/" + model.CollectionUsers:
		in := v.parseUserInput(rec)
		if err := runRules(ctx, &in, v.users); err != nil {
			return err
		}
		in.apply(rec)
	case "/" + model.CollectionShifts:
		in := v.parseShiftInput(rec)
		if err := runRules(ctx, &in, v.shifts); err != nil {
			return err
		}
		in.apply(rec)
	case "/" + model.CollectionMatches:
		in := parseMatchInput(rec)
		if err := runRules(ctx, &in, v.matches); err != nil {
			return err
		}
		in.apply(rec)
	}

	return nil
}

// stampTimestamps は作成時に createdAt / updatedAt を補完し、更新時は updatedAt を上書きする。
func (v *Validator) stampTimestamps(method string, rec model.Record) {
	now := timeutil.FormatTimestamp(v.now())

	switch method {
	case http.MethodPost:
		if !truthy(rec["createdAt"]) {
			rec["createdAt"] = now
		}
		if !truthy(rec["updatedAt"]) {
			rec["updatedAt"] = rec["createdAt"]
		}
	case http.MethodPut, http.MethodPatch:
		rec["updatedAt"] = now
	}
}

func (v *Validator) reject(w http.ResponseWriter, r *http.Request, path string, apiErr *model.APIError) {
	v.metrics.RecordValidationRejection(collectionLabel(path), apiErr.Code)
	v.logger.Info("request rejected",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("code", apiErr.Code),
		slog.String("field", apiErr.Field),
	)
	middleware.WriteAPIError(w, apiErr)
}

// requireUser は指定ロールのユーザーが存在しない場合にInvalidReferenceを返す。
func (v *Validator) requireUser(ctx context.Context, id string, role model.Role, field string) error {
	user, err := v.finder.FindOne(ctx, model.CollectionUsers, model.Record{"id": id, "role": string(role)})
	if err != nil {
		return err
	}
	if user == nil {
		return model.NewInvalidReferenceError(field)
	}
	return nil
}

// requireAbsent は条件に一致するドキュメントが既にある場合にConflictを返す。
func (v *Validator) requireAbsent(ctx context.Context, collection string, match model.Record, subject string) error {
	existing, err := v.finder.FindOne(ctx, collection, match)
	if err != nil {
		return err
	}
	if existing != nil {
		return model.NewConflictError(subject)
	}
	return nil
}

// NewContext は検証済みレコードを格納したコンテキストを返す。
func NewContext(ctx context.Context, rec model.Record) context.Context {
	return context.WithValue(ctx, recordKey, rec)
}

// RecordFromContext はミドルウェアが格納した検証済みレコードを返す。
func RecordFromContext(ctx context.Context) (model.Record, bool) {
	rec, ok := ctx.Value(recordKey).(model.Record)
	return rec, ok
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func normalizePath(p string) string {
	p = strings.ToLower(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// collectionLabel はメトリクスのラベルに使うコレクション名をパスから取り出す。
func collectionLabel(path string) string {
	seg := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	if model.IsCollection(seg) {
		return seg
	}
	return "other"
}

// decodeRecord はボディをJSONオブジェクトとして読み込む。空のボディとnullは空のレコードとして扱う。
func decodeRecord(body io.Reader) (model.Record, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return model.Record{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch obj := v.(type) {
	case nil:
		return model.Record{}, nil
	case map[string]any:
		return model.Record(obj), nil
	default:
		return nil, errors.New("request body must be a JSON object")
	}
}
