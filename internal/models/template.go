package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BoardType identifies the examination board a template or policy serves.
type BoardType string

const (
	BoardCBSE  BoardType = "CBSE"
	BoardState BoardType = "STATE"
	BoardICSE  BoardType = "ICSE"
)

// TemplateFields holds the per-template layout configuration stored as
// JSONB: which placeholders the body may reference and optional static
// header values.
type TemplateFields struct {
	Placeholders []string          `json:"placeholders"`
	Header       map[string]string `json:"header,omitempty"`
	ShowRank     bool              `json:"show_rank"`
	ShowLegend   bool              `json:"show_legend"`
}

// Value marshals template fields for storage.
func (f TemplateFields) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal template fields: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB template fields column.
func (f *TemplateFields) Scan(value interface{}) error {
	if value == nil {
		*f = TemplateFields{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TemplateFields", value)
	}
	if len(data) == 0 {
		*f = TemplateFields{}
		return nil
	}
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("unmarshal template fields: %w", err)
	}
	return nil
}

// BoardTemplate is a report card layout for one board. At most one
// template per board may be the default; the template service enforces
// that on create and update.
type BoardTemplate struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	BoardType  BoardType      `db:"board_type" json:"board_type"`
	PolicyCode string         `db:"policy_code" json:"policy_code"`
	Body       string         `db:"body" json:"body"`
	CSS        string         `db:"css" json:"css"`
	Fields     TemplateFields `db:"fields" json:"fields"`
	IsDefault  bool           `db:"is_default" json:"is_default"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
