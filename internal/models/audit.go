package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionUserCreate       = "USER_CREATE"
	AuditActionActivitySubmit   = "ACTIVITY_SUBMIT"
	AuditActionActivityApprove  = "ACTIVITY_APPROVE"
	AuditActionActivityReject   = "ACTIVITY_REJECT"
	AuditActionActivityCancel   = "ACTIVITY_CANCEL"
	AuditActionEnroll           = "ENROLL"
	AuditActionWaitlist         = "WAITLIST"
	AuditActionEnrollCancel     = "ENROLL_CANCEL"
	AuditActionExportEnrollment = "EXPORT_ENROLLMENTS"
	AuditActionReportGenerate   = "REPORT_GENERATE"
)

// AuditLog represents an insert-only audit trail record.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	Actor     *string   `db:"actor" json:"actor,omitempty"`
	Action    string    `db:"action" json:"action"`
	Resource  string    `db:"resource" json:"resource"`
	Target    *string   `db:"target" json:"target,omitempty"`
	Detail    []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
