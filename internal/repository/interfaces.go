// Package repository はデータ永続化のインターフェースを定義する。
// users、shifts、matches の各コレクションをJSONドキュメントとして保持する
// リソースストアを抽象化する。
package repository

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"

	"github.com/lavoor/lavoor/internal/model"
)

// ErrDuplicateKey はidまたは一意キーが既存ドキュメントと重複した場合に返される。
var ErrDuplicateKey = errors.New("duplicate key")

// defaultPageLimit は _page 指定時に _limit が省略された場合の件数。
const defaultPageLimit = 10

// UniqueKeys はコレクションごとの一意キー（フィールドの組）を定義する。
// 全フィールドが設定されているドキュメントのみが一意性の対象となる。
var UniqueKeys = map[string][][]string{
	model.CollectionUsers:   {{"email"}},
	model.CollectionMatches: {{"shiftId", "workerId"}},
}

// Finder は条件に一致するドキュメントを1件検索するインターフェース。
type Finder interface {
	// FindOne は match の全フィールドと値が一致する最初のドキュメントを返す。
	// 見つからない場合はnilを返す。
	FindOne(ctx context.Context, collection string, match model.Record) (model.Record, error)
}

// Lister はドキュメント一覧取得のインターフェース。
type Lister interface {
	// List はクエリ条件に一致するドキュメントと、ページング前の総件数を返す。
	List(ctx context.Context, collection string, q ListQuery) ([]model.Record, int, error)
}

// Inserter はドキュメント作成のインターフェース。
type Inserter interface {
	// Insert はドキュメントを作成する。idが未設定の場合はUUIDを採番する。
	// idまたは一意キーが重複する場合はErrDuplicateKeyを返す。
	Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error)
}

// Updater はドキュメントのフィールド単位更新のインターフェース。
type Updater interface {
	// UpdateFields は patch のフィールドを既存ドキュメントに上書きマージする。
	// 対象が存在しない場合はnilを返す。idは変更しない。
	UpdateFields(ctx context.Context, collection, id string, patch model.Record) (model.Record, error)
}

// ResourceStore はリソースストア全体のインターフェース。
type ResourceStore interface {
	Finder
	Lister
	Inserter
	Updater

	// Replace はドキュメント全体を置き換える。idは維持する。
	// 対象が存在しない場合はnilを返す。
	Replace(ctx context.Context, collection, id string, rec model.Record) (model.Record, error)

	// Delete はドキュメントを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, collection, id string) (bool, error)

	// Ping はストアが利用可能かどうかを確認する。
	Ping(ctx context.Context) error
}

// ListQuery は一覧取得の条件を表す。
type ListQuery struct {
	Filters map[string]string // フィールド名 -> 値（文字列表現で完全一致）
	Sort    string            // ソート対象フィールド
	Desc    bool              // trueなら降順
	Page    int               // 1始まりのページ番号。0ならページングしない
	Limit   int               // 取得件数。0なら制限しない
}

// NewListQuery はクエリ文字列から一覧取得条件を組み立てる。
// "_" で始まるキーは予約語（_sort, _order, _page, _limit）として扱い、
// それ以外はフィールドの等価フィルタとする。
func NewListQuery(values url.Values) ListQuery {
	q := ListQuery{Filters: make(map[string]string)}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "_sort":
			q.Sort = vals[0]
		case "_order":
			q.Desc = vals[0] == "desc"
		case "_page":
			q.Page = parsePositiveInt(vals[0])
		case "_limit":
			q.Limit = parsePositiveInt(vals[0])
		default:
			if len(key) > 0 && key[0] == '_' {
				continue
			}
			q.Filters[key] = vals[0]
		}
	}

	return q
}

// Window はページングを適用した offset と limit を返す。limitが0なら制限なし。
func (q ListQuery) Window() (offset, limit int) {
	limit = q.Limit
	if q.Page > 0 {
		if limit == 0 {
			limit = defaultPageLimit
		}
		offset = (q.Page - 1) * limit
	}
	return offset, limit
}

// filterKeys はフィルタのキーを決定的な順序で返す。
func (q ListQuery) filterKeys() []string {
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parsePositiveInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
