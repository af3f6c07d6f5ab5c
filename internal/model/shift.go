package model

// ShiftStatus はシフトの募集状態を表す。
type ShiftStatus string

// ShiftStatusOpen は作成時のデフォルト状態。
const ShiftStatusOpen ShiftStatus = "open"

// Shift は雇用者が掲載する勤務枠を表す。
// TotalEstimated は指定がなければ勤務時間×時給から算出される。
type Shift struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Date           string      `json:"date"`      // YYYY-MM-DD（形式は検証しない）
	StartTime      string      `json:"startTime"` // HH:MM
	EndTime        string      `json:"endTime"`   // HH:MM、startTime以前なら日跨ぎ
	HourlyRate     float64     `json:"hourlyRate"`
	EmployerID     string      `json:"employerId"`
	TotalEstimated float64     `json:"totalEstimated"`
	Status         ShiftStatus `json:"status"`
	RequiredSkills []string    `json:"requiredSkills,omitempty"`
	CreatedAt      string      `json:"createdAt"`
	UpdatedAt      string      `json:"updatedAt"`
}
