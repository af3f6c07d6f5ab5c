package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lavoor/lavoor/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresStore はPostgreSQLを使用したリソースストア。
// 全コレクションを resources テーブルの JSONB 列に保存する。
type PostgresStore struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindOne は match をJSONB包含条件として最初に作成されたドキュメントを返す。見つからない場合はnilを返す。
func (s *PostgresStore) FindOne(ctx context.Context, collection string, match model.Record) (model.Record, error) {
	pred, err := encodeRecord(match)
	if err != nil {
		return nil, err
	}

	query, args, err := s.builder.
		Select("data").
		From("resources").
		Where(squirrel.Eq{"collection": collection}).
		Where("data @> ?::jsonb", pred).
		OrderBy("seq ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find query: %w", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", collection, err)
	}

	return rec, nil
}

// List はフィルタ・ソート・ページングを適用したドキュメント一覧と総件数を返す。
func (s *PostgresStore) List(ctx context.Context, collection string, q ListQuery) ([]model.Record, int, error) {
	where := squirrel.And{squirrel.Eq{"collection": collection}}
	for _, k := range q.filterKeys() {
		where = append(where, squirrel.Expr("data ->> ? = ?", k, q.Filters[k]))
	}

	countQuery, countArgs, err := s.builder.
		Select("COUNT(*)").
		From("resources").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}

	sb := s.builder.
		Select("data").
		From("resources").
		Where(where)
	if q.Sort != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sb = sb.OrderByClause("data -> ? "+dir, q.Sort)
	}
	sb = sb.OrderBy("seq ASC")

	offset, limit := q.Window()
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	if offset > 0 {
		sb = sb.Offset(uint64(offset))
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	recs := []model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}

	return recs, total, nil
}

// Insert はドキュメントを作成する。
// 主キーまたは一意インデックスに違反した場合はErrDuplicateKeyを返す。
func (s *PostgresStore) Insert(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	doc := rec.Clone()
	if doc.ID() == "" {
		doc["id"] = uuid.NewString()
	} else {
		doc["id"] = doc.ID()
	}

	data, err := encodeRecord(doc)
	if err != nil {
		return nil, err
	}

	query, args, err := s.builder.
		Insert("resources").
		Columns("collection", "id", "data").
		Values(collection, doc.ID(), squirrel.Expr("?::jsonb", data)).
		Suffix("RETURNING data").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	created, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapWriteError(collection, "insert", err)
	}

	return created, nil
}

// UpdateFields は patch を既存ドキュメントにJSONBマージする。対象が存在しない場合はnilを返す。
func (s *PostgresStore) UpdateFields(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	fields := patch.Clone()
	delete(fields, "id")

	data, err := encodeRecord(fields)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, collection, id, "update", squirrel.Expr("data || ?::jsonb", data))
}

// Replace はドキュメント全体を置き換える。idは維持する。対象が存在しない場合はnilを返す。
func (s *PostgresStore) Replace(ctx context.Context, collection, id string, rec model.Record) (model.Record, error) {
	doc := rec.Clone()
	doc["id"] = id

	data, err := encodeRecord(doc)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, collection, id, "replace", squirrel.Expr("?::jsonb", data))
}

func (s *PostgresStore) update(ctx context.Context, collection, id, op string, value squirrel.Sqlizer) (model.Record, error) {
	query, args, err := s.builder.
		Update("resources").
		Set("data", value).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		Suffix("RETURNING data").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}

	updated, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapWriteError(collection, op, err)
	}

	return updated, nil
}

// Delete はドキュメントを削除する。削除した場合はtrueを返す。
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) (bool, error) {
	query, args, err := s.builder.
		Delete("resources").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", collection, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Ping はデータベースへの接続を確認する。
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// compile-time interface check
var _ ResourceStore = (*PostgresStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.Record, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	rec := model.Record{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return rec, nil
}

func encodeRecord(rec model.Record) (string, error) {
	if rec == nil {
		rec = model.Record{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(b), nil
}

// wrapWriteError は一意制約違反をErrDuplicateKeyに変換する。
func wrapWriteError(collection, op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s (%s): %w", op, collection, pqErr.Constraint, ErrDuplicateKey)
	}
	return fmt.Errorf("failed to %s %s: %w", op, collection, err)
}
