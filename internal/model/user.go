package model

// Role はユーザーの種別を表す。
type Role string

const (
	// RoleWorker はシフトに応募する働き手。
	RoleWorker Role = "worker"
	// RoleEmployer はシフトを掲載する雇用者。
	RoleEmployer Role = "employer"
)

// IsValid は定義済みのロールかどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleWorker || r == RoleEmployer
}

// User はサービス利用ユーザーを表す。
// email はユーザー間で一意。role と email は作成後に変更しない想定。
type User struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}
