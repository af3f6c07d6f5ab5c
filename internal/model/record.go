// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
)

// Record はリソースストアに保存されるJSONドキュメントを表す。
// 型付きモデルに含まれない追加フィールドもそのまま保持する。
type Record map[string]any

// コレクション名
const (
	CollectionUsers   = "users"
	CollectionShifts  = "shifts"
	CollectionMatches = "matches"
)

// Collections は公開している全コレクション。
var Collections = []string{CollectionUsers, CollectionShifts, CollectionMatches}

// IsCollection は定義済みのコレクション名かどうかを返す。
func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// ID はドキュメントのidを文字列として返す。未設定の場合は空文字列。
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Clone はトップレベルをコピーしたRecordを返す。
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Decode はRecordを型付きモデルに変換する。
func (r Record) Decode(v any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}
