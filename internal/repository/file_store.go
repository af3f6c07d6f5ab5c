package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lavoor/lavoor/internal/model"
)

// FileStore はプロセス内に全ドキュメントを保持するリソースストア。
// pathが指定されている場合は更新のたびにJSONファイルへ書き出す。
// ファイル形式は {"users":[...],"shifts":[...],"matches":[...]}。
type FileStore struct {
	mu   sync.RWMutex
	path string
	data map[string][]model.Record

	newID func() string
}

// NewFileStore はFileStoreを生成する。
// pathのファイルが存在すれば読み込み、存在しなければ空のストアとして開始する。
// pathが空文字列の場合は永続化しない。
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		data:  make(map[string][]model.Record),
		newID: uuid.NewString,
	}
	for _, c := range model.Collections {
		s.data[c] = []model.Record{}
	}

	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var loaded map[string][]model.Record
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	for c, recs := range loaded {
		if recs == nil {
			recs = []model.Record{}
		}
		// idはInsertと同じく文字列で保持する
		for _, rec := range recs {
			if rec != nil && rec["id"] != nil {
				rec["id"] = rec.ID()
			}
		}
		s.data[c] = recs
	}

	return s, nil
}

// FindOne は match の全フィールドと値が一致する最初のドキュメントを返す。
func (s *FileStore) FindOne(ctx context.Context, collection string, match model.Record) (model.Record, error) {
	pred, err := normalize(match)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.data[collection] {
		if containsAll(rec, pred) {
			return rec.Clone(), nil
		}
	}
	return nil, nil
}

// List はフィルタ・ソート・ページングを適用したドキュメント一覧を返す。
func (s *FileStore) List(ctx context.Context, collection string, q ListQuery) ([]model.Record, int, error) {
	s.mu.RLock()
	matched := make([]model.Record, 0, len(s.data[collection]))
	for _, rec := range s.data[collection] {
		if matchesFilters(rec, q.Filters) {
			matched = append(matched, rec.Clone())
		}
	}
	s.mu.RUnlock()

	if q.Sort != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][q.Sort], matched[j][q.Sort])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(matched)
	offset, limit := q.Window()
	if offset >= total {
		return []model.Record{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	return matched[offset:end], total, nil
}

// Insert はドキュメントを作成する。
func (s *FileStore) Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	doc, err := normalize(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID() == "" {
		doc["id"] = s.newID()
	} else {
		doc["id"] = doc.ID()
	}

	recs := s.data[collection]
	if indexOf(recs, doc.ID()) >= 0 {
		return nil, fmt.Errorf("%s/%s: %w", collection, doc.ID(), ErrDuplicateKey)
	}
	if err := checkUnique(collection, recs, doc); err != nil {
		return nil, err
	}

	next := make([]model.Record, len(recs), len(recs)+1)
	copy(next, recs)
	next = append(next, doc)

	if err := s.commit(collection, next); err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// UpdateFields は patch のフィールドを既存ドキュメントに上書きマージする。
func (s *FileStore) UpdateFields(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	fields, err := normalize(patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.data[collection]
	idx := indexOf(recs, id)
	if idx < 0 {
		return nil, nil
	}

	merged := recs[idx].Clone()
	for k, v := range fields {
		merged[k] = v
	}
	merged["id"] = recs[idx]["id"]

	return s.replaceAt(collection, idx, merged)
}

// Replace はドキュメント全体を置き換える。
func (s *FileStore) Replace(ctx context.Context, collection, id string, rec model.Record) (model.Record, error) {
	doc, err := normalize(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.data[collection]
	idx := indexOf(recs, id)
	if idx < 0 {
		return nil, nil
	}
	doc["id"] = recs[idx]["id"]

	return s.replaceAt(collection, idx, doc)
}

// Delete はドキュメントを削除する。
func (s *FileStore) Delete(ctx context.Context, collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.data[collection]
	idx := indexOf(recs, id)
	if idx < 0 {
		return false, nil
	}

	next := make([]model.Record, 0, len(recs)-1)
	next = append(next, recs[:idx]...)
	next = append(next, recs[idx+1:]...)

	if err := s.commit(collection, next); err != nil {
		return false, err
	}
	return true, nil
}

// Ping は常に成功する。
func (s *FileStore) Ping(ctx context.Context) error {
	return nil
}

// replaceAt は一意性を確認してidx番目のドキュメントを差し替える。呼び出し側でロックを保持すること。
func (s *FileStore) replaceAt(collection string, idx int, doc model.Record) (model.Record, error) {
	recs := s.data[collection]

	others := make([]model.Record, 0, len(recs)-1)
	others = append(others, recs[:idx]...)
	others = append(others, recs[idx+1:]...)
	if err := checkUnique(collection, others, doc); err != nil {
		return nil, err
	}

	next := make([]model.Record, len(recs))
	copy(next, recs)
	next[idx] = doc

	if err := s.commit(collection, next); err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// commit はコレクションを差し替え、ファイルに書き出す。
// 書き出しに失敗した場合はメモリ上の状態を元に戻す。呼び出し側でロックを保持すること。
func (s *FileStore) commit(collection string, next []model.Record) error {
	prev := s.data[collection]
	s.data[collection] = next

	if err := s.persist(); err != nil {
		s.data[collection] = prev
		return err
	}
	return nil
}

// persist は一時ファイルに書き込んでからrenameすることで、ファイルを原子的に更新する。
func (s *FileStore) persist() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ResourceStore = (*FileStore)(nil)

// --- ヘルパー関数 ---

// normalize はJSONを経由してRecordを複製し、値の型をJSONデコード結果に揃える。
// 数値はfloat64、配列は[]anyになる。
func normalize(rec model.Record) (model.Record, error) {
	if rec == nil {
		return model.Record{}, nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	out := model.Record{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return out, nil
}

func indexOf(recs []model.Record, id string) int {
	for i, rec := range recs {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

// containsAll は pred の全フィールドが rec に同じ値で存在するかを返す。
func containsAll(rec, pred model.Record) bool {
	for k, want := range pred {
		got, ok := rec[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// matchesFilters は値の文字列表現がすべてのフィルタと一致するかを返す。
func matchesFilters(rec model.Record, filters map[string]string) bool {
	for k, want := range filters {
		got, ok := rec[k]
		if !ok || got == nil || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// checkUnique は doc の一意キーが recs のいずれかと重複していないかを確認する。
func checkUnique(collection string, recs []model.Record, doc model.Record) error {
	for _, key := range UniqueKeys[collection] {
		pred := model.Record{}
		for _, field := range key {
			v, ok := doc[field]
			if !ok || v == nil {
				pred = nil
				break
			}
			pred[field] = v
		}
		if pred == nil {
			continue
		}
		for _, rec := range recs {
			if containsAll(rec, pred) {
				return fmt.Errorf("%s(%s): %w", collection, strings.Join(key, ","), ErrDuplicateKey)
			}
		}
	}
	return nil
}

// compareValues はソート用に2つの値を比較する。
// 数値同士は数値として、それ以外は文字列表現で比較する。nilは最小として扱う。
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
