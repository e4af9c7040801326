package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates supported artifact formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// JobStatus captures background job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFinished   JobStatus = "FINISHED"
	JobStatusFailed     JobStatus = "FAILED"
)

// GenerationJob is the persisted metadata for an asynchronous bulk
// report card run over one exam group.
type GenerationJob struct {
	ID           string              `db:"id" json:"id"`
	Params       GenerationJobParams `db:"params" json:"params"`
	Status       JobStatus           `db:"status" json:"status"`
	Progress     int                 `db:"progress" json:"progress"`
	Succeeded    int                 `db:"succeeded" json:"succeeded"`
	Failed       int                 `db:"failed" json:"failed"`
	ResultURL    *string             `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string              `db:"created_by" json:"created_by"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string             `db:"error_message" json:"error_message,omitempty"`
}

// GenerationJobParams stores request-scoped options persisted as JSONB.
type GenerationJobParams struct {
	ExamGroupID string       `json:"examGroupId"`
	SectionID   *string      `json:"sectionId,omitempty"`
	TemplateID  *string      `json:"templateId,omitempty"`
	Format      ExportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p GenerationJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal generation job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *GenerationJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = GenerationJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GenerationJobParams", value)
	}
	if len(data) == 0 {
		*p = GenerationJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal generation job params: %w", err)
	}
	return nil
}
