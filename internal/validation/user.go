package validation

import (
	"context"

	"github.com/lavoor/lavoor/internal/model"
)

// UserInput はユーザー作成リクエストの検証対象フィールド。
type UserInput struct {
	Role  string
	Name  string
	Email string
}

func (v *Validator) parseUserInput(rec model.Record) UserInput {
	return UserInput{
		Role:  trimmedString(rec["role"]),
		Name:  v.sanitizer.Sanitize(trimmedString(rec["name"])),
		Email: trimmedString(rec["email"]),
	}
}

// apply は正規化済みの値をレコードに書き戻す。
func (in UserInput) apply(rec model.Record) {
	rec["role"] = in.Role
	rec["name"] = in.Name
	rec["email"] = in.Email
}

func (v *Validator) userRules() []Rule[UserInput] {
	return []Rule[UserInput]{
		{Name: "role", Check: func(_ context.Context, in *UserInput) error {
			if !model.Role(in.Role).IsValid() {
				return model.NewInvalidFieldError("role", "worker または employer を指定してください")
			}
			return nil
		}},
		{Name: "name", Check: func(_ context.Context, in *UserInput) error {
			if in.Name == "" {
				return model.NewMissingFieldError("name")
			}
			return nil
		}},
		{Name: "email", Check: func(_ context.Context, in *UserInput) error {
			if in.Email == "" || v.validate.Var(in.Email, "email") != nil {
				return model.NewInvalidFieldError("email", "メールアドレスの形式が不正です")
			}
			return nil
		}},
		{Name: "email-unique", Check: func(ctx context.Context, in *UserInput) error {
			return v.requireAbsent(ctx, model.CollectionUsers, model.Record{"email": in.Email}, "email")
		}},
	}
}
