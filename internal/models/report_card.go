package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportStatus captures the publication lifecycle of a report card.
type ReportStatus string

const (
	ReportStatusDraft       ReportStatus = "draft"
	ReportStatusGenerated   ReportStatus = "generated"
	ReportStatusPublished   ReportStatus = "published"
	ReportStatusDistributed ReportStatus = "distributed"
)

// CanTransition reports whether moving to the target status is legal.
// Regeneration (generated -> generated) is the only self transition; no
// status ever moves backward through this check — administrative
// regeneration of a published card goes through its own audited path.
func (s ReportStatus) CanTransition(to ReportStatus) bool {
	switch s {
	case ReportStatusDraft:
		return to == ReportStatusGenerated
	case ReportStatusGenerated:
		return to == ReportStatusGenerated || to == ReportStatusPublished
	case ReportStatusPublished:
		return to == ReportStatusDistributed
	default:
		return false
	}
}

// Valid reports whether the status is a known lifecycle state.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusDraft, ReportStatusGenerated, ReportStatusPublished, ReportStatusDistributed:
		return true
	}
	return false
}

// SubjectResult is one subject line of an aggregated report card.
type SubjectResult struct {
	Subject       string  `json:"subject"`
	MaxMarks      float64 `json:"max_marks"`
	MarksObtained float64 `json:"marks_obtained"`
	IsAbsent      bool    `json:"is_absent"`
	Grade         string  `json:"grade"`
	Remark        string  `json:"remark"`
}

// SubjectResultList persists subject lines as JSONB.
type SubjectResultList []SubjectResult

// Value marshals subject results for storage.
func (l SubjectResultList) Value() (driver.Value, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal subject results: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB subject results column.
func (l *SubjectResultList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SubjectResultList", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("unmarshal subject results: %w", err)
	}
	return nil
}

// ReportCard is the persisted aggregate for one (student, exam group)
// pair, unique on that key. Created by aggregation, transitioned only by
// the lifecycle service, read-only for the renderer.
type ReportCard struct {
	ID            string            `db:"id" json:"id"`
	StudentID     string            `db:"student_id" json:"student_id"`
	ExamGroupID   string            `db:"exam_group_id" json:"exam_group_id"`
	SchoolID      string            `db:"school_id" json:"school_id"`
	TemplateID    *string           `db:"template_id" json:"template_id,omitempty"`
	PolicyCode    string            `db:"policy_code" json:"policy_code"`
	TotalMarks    float64           `db:"total_marks" json:"total_marks"`
	ObtainedMarks float64           `db:"obtained_marks" json:"obtained_marks"`
	Percentage    float64           `db:"percentage" json:"percentage"`
	Grade         string            `db:"grade" json:"grade"`
	Remark        string            `db:"remark" json:"remark"`
	Rank          int               `db:"rank" json:"rank"`
	Subjects      SubjectResultList `db:"subjects" json:"subjects"`
	Status        ReportStatus      `db:"status" json:"status"`
	GeneratedAt   time.Time         `db:"generated_at" json:"generated_at"`
	PublishedAt   *time.Time        `db:"published_at" json:"published_at,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ReportCardDraft is the aggregation output before the lifecycle persists
// it. Rank is zero until the group-wide rank pass assigns it.
type ReportCardDraft struct {
	StudentID     string
	ExamGroupID   string
	SchoolID      string
	PolicyCode    string
	TotalMarks    float64
	ObtainedMarks float64
	Percentage    float64
	Grade         string
	Remark        string
	Rank          int
	Subjects      SubjectResultList
}

// BatchFailure identifies one student whose aggregation failed during a
// bulk run.
type BatchFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BatchResult summarises a bulk generation run.
type BatchResult struct {
	ExamGroupID string         `json:"exam_group_id"`
	Succeeded   int            `json:"succeeded"`
	Failed      []BatchFailure `json:"failed,omitempty"`
}
