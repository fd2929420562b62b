package dto

// CreateAbsenceRequest captures POST /absences payload.
type CreateAbsenceRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Periods   []int  `json:"periods" validate:"required,min=1,dive,min=1,max=12"`
	Reason    string `json:"reason" validate:"omitempty,max=255"`
}

// ProcessDateRequest captures POST /substitutions/process payload.
type ProcessDateRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ReconcileRequest captures POST /substitutions/reconcile payload.
type ReconcileRequest struct {
	Report string `json:"report" validate:"required"`
	DryRun bool   `json:"dry_run"`
}

// ConfirmReportRequest captures POST /substitutions/confirm payload.
type ConfirmReportRequest struct {
	Report     string `json:"report" validate:"required"`
	VerifiedBy string `json:"verified_by" validate:"required,max=128"`
}

// FinalizeRequest captures POST /substitutions/finalize payload.
type FinalizeRequest struct {
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	VerifiedBy string `json:"verified_by" validate:"required,max=128"`
}

// ExpireResponse reports the outcome of an expiration sweep.
type ExpireResponse struct {
	Expired int64 `json:"expired"`
}

// WorkloadQuery captures GET /workload query parameters.
type WorkloadQuery struct {
	From   string `form:"from" validate:"required,datetime=2006-01-02"`
	To     string `form:"to" validate:"required,datetime=2006-01-02"`
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx pdf"`
}
