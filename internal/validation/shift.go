package validation

import (
	"context"
	"math"

	"github.com/lavoor/lavoor/internal/model"
	"github.com/lavoor/lavoor/internal/timeutil"
)

// ShiftInput はシフト作成リクエストの検証対象フィールド。
// Hoursと派生フィールドはルールの評価中に設定される。
type ShiftInput struct {
	Title          string
	Date           string
	StartTime      string
	EndTime        string
	HourlyRate     float64
	EmployerID     string
	TotalEstimated float64
	Status         any
	RequiredSkills any

	Hours         float64
	deriveTotal   bool
	defaultStatus bool
}

func (v *Validator) parseShiftInput(rec model.Record) ShiftInput {
	return ShiftInput{
		Title:          v.sanitizer.Sanitize(trimmedString(rec["title"])),
		Date:           trimmedString(rec["date"]),
		StartTime:      trimmedString(rec["startTime"]),
		EndTime:        trimmedString(rec["endTime"]),
		HourlyRate:     toNumber(rec["hourlyRate"]),
		EmployerID:     trimmedString(rec["employerId"]),
		TotalEstimated: toNumber(rec["totalEstimated"]),
		Status:         rec["status"],
		RequiredSkills: rec["requiredSkills"],
	}
}

func (in ShiftInput) apply(rec model.Record) {
	rec["title"] = in.Title
	rec["hourlyRate"] = in.HourlyRate
	rec["employerId"] = in.EmployerID
	if in.deriveTotal {
		rec["totalEstimated"] = in.TotalEstimated
	}
	if in.defaultStatus {
		rec["status"] = string(model.ShiftStatusOpen)
	}
}

func (v *Validator) shiftRules() []Rule[ShiftInput] {
	return []Rule[ShiftInput]{
		{Name: "title", Check: func(_ context.Context, in *ShiftInput) error {
			if in.Title == "" {
				return model.NewMissingFieldError("title")
			}
			return nil
		}},
		{Name: "date", Check: func(_ context.Context, in *ShiftInput) error {
			if in.Date == "" {
				return model.NewMissingFieldError("date")
			}
			return nil
		}},
		{Name: "time-range", Check: func(_ context.Context, in *ShiftInput) error {
			var missing []string
			if in.StartTime == "" {
				missing = append(missing, "startTime")
			}
			if in.EndTime == "" {
				missing = append(missing, "endTime")
			}
			if len(missing) > 0 {
				return model.NewMissingFieldError(missing...)
			}
			return nil
		}},
		{Name: "hourlyRate", Check: func(_ context.Context, in *ShiftInput) error {
			if !(in.HourlyRate > 0) || math.IsInf(in.HourlyRate, 1) {
				return model.NewInvalidFieldError("hourlyRate", "0より大きい数値を指定してください")
			}
			return nil
		}},
		{Name: "employerId", Check: func(_ context.Context, in *ShiftInput) error {
			if in.EmployerID == "" {
				return model.NewMissingFieldError("employerId")
			}
			return nil
		}},
		{Name: "employer-exists", Check: func(ctx context.Context, in *ShiftInput) error {
			return v.requireUser(ctx, in.EmployerID, model.RoleEmployer, "employerId")
		}},
		{Name: "hours", Check: func(_ context.Context, in *ShiftInput) error {
			if _, ok := timeutil.ParseTimeToMinutes(in.StartTime); !ok {
				return model.NewInvalidFieldError("startTime", "HH:MM 形式で指定してください")
			}
			hrs, ok := timeutil.HoursBetween(in.StartTime, in.EndTime)
			if !ok {
				return model.NewInvalidFieldError("endTime", "HH:MM 形式で指定してください")
			}
			in.Hours = hrs
			return nil
		}},
		{Name: "totalEstimated", Check: func(_ context.Context, in *ShiftInput) error {
			if !(in.TotalEstimated > 0) || math.IsInf(in.TotalEstimated, 1) {
				in.TotalEstimated = math.Round(in.Hours * in.HourlyRate)
				in.deriveTotal = true
			}
			// 時給が大きすぎると見積額がJSONで表現できない値になる
			if math.IsInf(in.TotalEstimated, 0) || math.IsNaN(in.TotalEstimated) {
				return model.NewInvalidFieldError("hourlyRate", "見積額を計算できない値です")
			}
			return nil
		}},
		{Name: "status", Check: func(_ context.Context, in *ShiftInput) error {
			in.defaultStatus = !truthy(in.Status)
			return nil
		}},
		{Name: "requiredSkills", Check: func(_ context.Context, in *ShiftInput) error {
			if !truthy(in.RequiredSkills) {
				return nil
			}
			skills, ok := in.RequiredSkills.([]any)
			if !ok {
				return model.NewInvalidFieldError("requiredSkills", "文字列の配列を指定してください")
			}
			for _, s := range skills {
				if _, ok := s.(string); !ok {
					return model.NewInvalidFieldError("requiredSkills", "文字列の配列を指定してください")
				}
			}
			return nil
		}},
	}
}
