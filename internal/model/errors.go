package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法、問題のあるフィールド名を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, reference, conflict, system
	Action   string // ユーザー向け対処方法
	Field    string // 原因となったフィールド（該当する場合のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeInvalidField      = "INVALID_FIELD"
	ErrCodeInvalidReference  = "INVALID_REFERENCE"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeUnknownCollection = "UNKNOWN_COLLECTION"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewMissingFieldError は必須フィールド未指定エラーを生成する。
// 複数フィールドをまとめて検査する場合はすべてのフィールド名を渡す。
func NewMissingFieldError(fields ...string) *APIError {
	joined := strings.Join(fields, ", ")
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須項目が指定されていません: %s", joined),
		Category: "validation",
		Action:   "必須項目をすべて入力してください。",
		Field:    joined,
	}
}

// NewInvalidFieldError はフィールド値の形式不正エラーを生成する。
func NewInvalidFieldError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidField,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力値の形式を確認してください。",
		Field:    field,
	}
}

// NewInvalidReferenceError は参照先が存在しない、または種別が異なる場合のエラーを生成する。
func NewInvalidReferenceError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReference,
		Message:  fmt.Sprintf("%s が参照するデータが存在しません", field),
		Category: "reference",
		Action:   "参照先のIDと種別を確認してください。",
		Field:    field,
	}
}

// NewConflictError は一意性制約違反エラーを生成する。
func NewConflictError(subject string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("既に登録されています: %s", subject),
		Category: "conflict",
		Action:   "既存のデータを確認してください。",
		Field:    subject,
	}
}

// NewNotFoundError は対象リソース未検出エラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s が見つかりません: %s", resource, id),
		Category: "reference",
		Action:   "IDを確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "JSONオブジェクト形式でリクエストしてください。",
	}
}

// NewUnknownCollectionError は未定義のコレクションが指定された場合のエラーを生成する。
func NewUnknownCollectionError(collection string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCollection,
		Message:  fmt.Sprintf("存在しないリソースです: %s", collection),
		Category: "reference",
		Action:   "users、shifts、matches のいずれかを指定してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はリクエスト数の上限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
