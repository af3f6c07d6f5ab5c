package validation

import (
	"context"

	"github.com/lavoor/lavoor/internal/model"
)

// MatchInput はマッチ作成リクエストの検証対象フィールド。
type MatchInput struct {
	ShiftID    string
	WorkerID   string
	EmployerID string
	Status     any

	defaultStatus bool
}

func parseMatchInput(rec model.Record) MatchInput {
	return MatchInput{
		ShiftID:    trimmedString(rec["shiftId"]),
		WorkerID:   trimmedString(rec["workerId"]),
		EmployerID: trimmedString(rec["employerId"]),
		Status:     rec["status"],
	}
}

func (in MatchInput) apply(rec model.Record) {
	rec["shiftId"] = in.ShiftID
	rec["workerId"] = in.WorkerID
	rec["employerId"] = in.EmployerID
	if in.defaultStatus {
		rec["status"] = string(model.MatchStatusApplied)
	}
}

func (v *Validator) matchRules() []Rule[MatchInput] {
	return []Rule[MatchInput]{
		{Name: "ids", Check: func(_ context.Context, in *MatchInput) error {
			var missing []string
			if in.ShiftID == "" {
				missing = append(missing, "shiftId")
			}
			if in.WorkerID == "" {
				missing = append(missing, "workerId")
			}
			if in.EmployerID == "" {
				missing = append(missing, "employerId")
			}
			if len(missing) > 0 {
				return model.NewMissingFieldError(missing...)
			}
			return nil
		}},
		{Name: "shift-exists", Check: func(ctx context.Context, in *MatchInput) error {
			shift, err := v.finder.FindOne(ctx, model.CollectionShifts, model.Record{"id": in.ShiftID})
			if err != nil {
				return err
			}
			if shift == nil {
				return model.NewInvalidReferenceError("shiftId")
			}
			return nil
		}},
		{Name: "worker-exists", Check: func(ctx context.Context, in *MatchInput) error {
			return v.requireUser(ctx, in.WorkerID, model.RoleWorker, "workerId")
		}},
		{Name: "employer-exists", Check: func(ctx context.Context, in *MatchInput) error {
			return v.requireUser(ctx, in.EmployerID, model.RoleEmployer, "employerId")
		}},
		{Name: "application-unique", Check: func(ctx context.Context, in *MatchInput) error {
			return v.requireAbsent(ctx, model.CollectionMatches,
				model.Record{"shiftId": in.ShiftID, "workerId": in.WorkerID}, "duplicate-application")
		}},
		{Name: "status", Check: func(_ context.Context, in *MatchInput) error {
			in.defaultStatus = !truthy(in.Status)
			return nil
		}},
	}
}
