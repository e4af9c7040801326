package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionReportGenerate   = "REPORT_GENERATE"
	AuditActionReportRegenerate = "REPORT_REGENERATE"
	AuditActionReportPublish    = "REPORT_PUBLISH"
	AuditActionReportDistribute = "REPORT_DISTRIBUTE"
	AuditActionPolicyCreate     = "POLICY_CREATE"
	AuditActionTemplateUpdate   = "TEMPLATE_UPDATE"
	AuditActionMarksOverride    = "MARKS_OVERRIDE"
)

// AuditLog represents an audit trail record. Regeneration of published
// report cards must always carry a non-nil Reason.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
