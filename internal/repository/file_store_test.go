package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lavoor/lavoor/internal/model"
)

func newMemoryStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore("")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	return s
}

func TestFileStore_InsertAssignsID(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, model.CollectionUsers, model.Record{"name": "Ana"})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if rec.ID() == "" {
		t.Fatal("expected generated id")
	}

	found, err := s.FindOne(ctx, model.CollectionUsers, model.Record{"id": rec.ID()})
	if err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if found == nil || found["name"] != "Ana" {
		t.Errorf("FindOne = %v, want name Ana", found)
	}
}

func TestFileStore_InsertDuplicateID(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionShifts, model.Record{"id": "s1"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	_, err := s.Insert(ctx, model.CollectionShifts, model.Record{"id": "s1"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestFileStore_UniqueKeys(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"email": "a@x.com"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"email": "a@x.com"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate email err = %v, want ErrDuplicateKey", err)
	}

	// 一意キーのフィールドが欠けているドキュメントは対象外
	for i := 0; i < 2; i++ {
		if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"name": "no email"}); err != nil {
			t.Fatalf("Insert without email returned error: %v", err)
		}
	}

	if _, err := s.Insert(ctx, model.CollectionMatches, model.Record{"shiftId": "s1", "workerId": "w1"}); err != nil {
		t.Fatalf("Insert match returned error: %v", err)
	}
	if _, err := s.Insert(ctx, model.CollectionMatches, model.Record{"shiftId": "s1", "workerId": "w2"}); err != nil {
		t.Fatalf("Insert match for another worker returned error: %v", err)
	}
	if _, err := s.Insert(ctx, model.CollectionMatches, model.Record{"shiftId": "s1", "workerId": "w1"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate match err = %v, want ErrDuplicateKey", err)
	}
}

func TestFileStore_UniqueKeyOnUpdate(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"id": "u1", "email": "a@x.com"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"id": "u2", "email": "b@x.com"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	// 自分自身とは衝突しない
	if _, err := s.UpdateFields(ctx, model.CollectionUsers, "u1", model.Record{"email": "a@x.com"}); err != nil {
		t.Errorf("UpdateFields with own email returned error: %v", err)
	}
	if _, err := s.UpdateFields(ctx, model.CollectionUsers, "u2", model.Record{"email": "a@x.com"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestFileStore_FindOneMatchesNumbersAfterNormalization(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionShifts, model.Record{"id": "s1", "hourlyRate": 20}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	found, err := s.FindOne(ctx, model.CollectionShifts, model.Record{"hourlyRate": 20.0})
	if err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if found == nil {
		t.Fatal("expected shift with hourlyRate 20")
	}

	missing, err := s.FindOne(ctx, model.CollectionShifts, model.Record{"hourlyRate": "20"})
	if err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("FindOne with string value = %v, want nil", missing)
	}
}

func TestFileStore_UpdateFields(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionMatches, model.Record{"id": "m1", "status": "applied", "note": "x"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	updated, err := s.UpdateFields(ctx, model.CollectionMatches, "m1", model.Record{"status": "accepted", "id": "other"})
	if err != nil {
		t.Fatalf("UpdateFields returned error: %v", err)
	}
	if updated["status"] != "accepted" || updated["note"] != "x" || updated["id"] != "m1" {
		t.Errorf("UpdateFields = %v", updated)
	}

	missing, err := s.UpdateFields(ctx, model.CollectionMatches, "nope", model.Record{"status": "accepted"})
	if err != nil {
		t.Fatalf("UpdateFields returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("UpdateFields for missing id = %v, want nil", missing)
	}
}

func TestFileStore_ReplaceAndDelete(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionShifts, model.Record{"id": "s1", "title": "Bar", "status": "open"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	replaced, err := s.Replace(ctx, model.CollectionShifts, "s1", model.Record{"title": "Cafe"})
	if err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	if _, ok := replaced["status"]; ok {
		t.Errorf("Replace kept old field: %v", replaced)
	}
	if replaced.ID() != "s1" {
		t.Errorf("Replace id = %q, want s1", replaced.ID())
	}

	deleted, err := s.Delete(ctx, model.CollectionShifts, "s1")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = s.Delete(ctx, model.CollectionShifts, "s1")
	if err != nil || deleted {
		t.Errorf("second Delete = %v, %v; want false, nil", deleted, err)
	}
}

func TestFileStore_List(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	rates := []float64{30, 10, 20, 40}
	for i, r := range rates {
		status := "open"
		if i == 3 {
			status = "closed"
		}
		if _, err := s.Insert(ctx, model.CollectionShifts, model.Record{
			"id":         fmt.Sprintf("s%d", i),
			"hourlyRate": r,
			"status":     status,
		}); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	}

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal int
	}{
		{name: "全件", query: "", wantIDs: []string{"s0", "s1", "s2", "s3"}, wantTotal: 4},
		{name: "フィルタ", query: "status=open", wantIDs: []string{"s0", "s1", "s2"}, wantTotal: 3},
		{name: "数値フィルタ", query: "hourlyRate=20", wantIDs: []string{"s2"}, wantTotal: 1},
		{name: "昇順ソート", query: "_sort=hourlyRate", wantIDs: []string{"s1", "s2", "s0", "s3"}, wantTotal: 4},
		{name: "降順ソート", query: "_sort=hourlyRate&_order=desc", wantIDs: []string{"s3", "s0", "s2", "s1"}, wantTotal: 4},
		{name: "ページング", query: "_sort=hourlyRate&_page=2&_limit=3", wantIDs: []string{"s3"}, wantTotal: 4},
		{name: "limitのみ", query: "_limit=2", wantIDs: []string{"s0", "s1"}, wantTotal: 4},
		{name: "範囲外ページ", query: "_page=5&_limit=2", wantIDs: []string{}, wantTotal: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			recs, total, err := s.List(ctx, model.CollectionShifts, NewListQuery(values))
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(recs) != len(tt.wantIDs) {
				t.Fatalf("len(recs) = %d, want %d", len(recs), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if recs[i].ID() != id {
					t.Errorf("recs[%d].id = %q, want %q", i, recs[i].ID(), id)
				}
			}
		})
	}
}

func TestFileStore_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"id": "u1", "email": "a@x.com"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	reloaded, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore (reload) returned error: %v", err)
	}
	found, err := reloaded.FindOne(ctx, model.CollectionUsers, model.Record{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if found == nil || found.ID() != "u1" {
		t.Errorf("FindOne after reload = %v, want u1", found)
	}

	// 一時ファイルが残っていないこと
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir entries = %d, want 1", len(entries))
	}
}

func TestFileStore_RollsBackOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "db.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	if _, err := s.Insert(ctx, model.CollectionUsers, model.Record{"id": "u1"}); err == nil {
		t.Fatal("expected persist error for missing directory")
	}

	found, err := s.FindOne(ctx, model.CollectionUsers, model.Record{"id": "u1"})
	if err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if found != nil {
		t.Errorf("record survived failed persist: %v", found)
	}
}

// 数値のidを持つdb.jsonを読み込んでも、読み取りと書き込みで同じドキュメントを指すこと。
func TestNewFileStore_NumericIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte(`{"users":[{"id":5,"email":"a@x.com"}],"shifts":[],"matches":[]}`), 0o600); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	ctx := context.Background()

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	found, err := s.FindOne(ctx, model.CollectionUsers, model.Record{"id": "5"})
	if err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if found == nil || found["id"] != "5" {
		t.Fatalf("FindOne(id=5) = %v, want document with id \"5\"", found)
	}

	updated, err := s.UpdateFields(ctx, model.CollectionUsers, "5", model.Record{"name": "Ana"})
	if err != nil {
		t.Fatalf("UpdateFields returned error: %v", err)
	}
	if updated == nil || updated["name"] != "Ana" {
		t.Errorf("UpdateFields = %v, want name Ana", updated)
	}

	reloaded, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore (reload) returned error: %v", err)
	}
	again, err := reloaded.FindOne(ctx, model.CollectionUsers, model.Record{"id": "5"})
	if err != nil {
		t.Fatalf("FindOne after reload returned error: %v", err)
	}
	if again == nil || again["name"] != "Ana" {
		t.Errorf("FindOne after reload = %v, want persisted name", again)
	}
}

func TestNewFileStore_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	if _, err := NewFileStore(path); err == nil {
		t.Error("expected error for malformed store file")
	}
}

// 同一の一意キーで並行に作成した場合、成功するのは1件のみ。
func TestFileStore_ConcurrentInsertUniqueKey(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, model.CollectionMatches, model.Record{"shiftId": "s1", "workerId": "w1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrDuplicateKey):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
}

func TestNewListQuery(t *testing.T) {
	values, _ := url.ParseQuery("status=open&_sort=date&_order=desc&_page=2&_limit=5&_embed=x&role=")
	q := NewListQuery(values)

	if q.Sort != "date" || !q.Desc || q.Page != 2 || q.Limit != 5 {
		t.Errorf("NewListQuery = %+v", q)
	}
	if len(q.Filters) != 2 || q.Filters["status"] != "open" {
		t.Errorf("Filters = %v", q.Filters)
	}
	if _, ok := q.Filters["_embed"]; ok {
		t.Error("unknown reserved key must be ignored")
	}
}

func TestListQuery_Window(t *testing.T) {
	tests := []struct {
		name       string
		q          ListQuery
		wantOffset int
		wantLimit  int
	}{
		{name: "指定なし", q: ListQuery{}, wantOffset: 0, wantLimit: 0},
		{name: "ページのみ", q: ListQuery{Page: 3}, wantOffset: 20, wantLimit: defaultPageLimit},
		{name: "ページと件数", q: ListQuery{Page: 2, Limit: 5}, wantOffset: 5, wantLimit: 5},
		{name: "件数のみ", q: ListQuery{Limit: 7}, wantOffset: 0, wantLimit: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := tt.q.Window()
			if offset != tt.wantOffset || limit != tt.wantLimit {
				t.Errorf("Window() = (%d, %d), want (%d, %d)", offset, limit, tt.wantOffset, tt.wantLimit)
			}
		})
	}
}
