package validation

import "context"

// Rule は入力に対する1つの検証ステップ。
// Checkは成功時にnil、失敗時に*model.APIErrorを返す。ストア参照の失敗はそのまま返す。
// 既定値の補完など、入力を書き換えるステップもRuleとして順序に含める。
type Rule[T any] struct {
	Name  string
	Check func(ctx context.Context, in *T) error
}

// runRules はルールを順に評価し、最初に失敗したルールのエラーを返す。
func runRules[T any](ctx context.Context, in *T, rules []Rule[T]) error {
	for _, r := range rules {
		if err := r.Check(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
