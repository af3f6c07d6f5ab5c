package model

// MatchStatus は応募（マッチ）の状態を表す。
type MatchStatus string

const (
	// MatchStatusApplied は応募直後の状態。
	MatchStatusApplied MatchStatus = "applied"
	// MatchStatusAccepted は雇用者が採用した状態。
	MatchStatusAccepted MatchStatus = "accepted"
	// MatchStatusRejected は雇用者が不採用とした状態。
	MatchStatusRejected MatchStatus = "rejected"
)

// IsDecision は採否の決定として受け付ける値かどうかを返す。
// applied は決定値として受け付けない。
func (s MatchStatus) IsDecision() bool {
	return s == MatchStatusAccepted || s == MatchStatusRejected
}

// Match は働き手とシフトの応募関係を表す。
// (ShiftID, WorkerID) の組はマッチ間で一意。
// EmployerID はシフトから導出せず、作成時に指定された値を保持する。
type Match struct {
	ID         string      `json:"id"`
	ShiftID    string      `json:"shiftId"`
	WorkerID   string      `json:"workerId"`
	EmployerID string      `json:"employerId"`
	Status     MatchStatus `json:"status"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
}
