package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CoScholasticStatus is the completion state of a student's co-scholastic
// record for a term.
type CoScholasticStatus string

const (
	CoScholasticPending   CoScholasticStatus = "pending"
	CoScholasticDraft     CoScholasticStatus = "draft"
	CoScholasticCompleted CoScholasticStatus = "completed"
)

// CoScholasticTraits lists every trait a completed record must grade, in
// the order trait rows render on the report card.
var CoScholasticTraits = []string{
	"oral_expression",
	"handwriting",
	"general_knowledge",
	"activity_sports",
	"towards_teachers",
	"towards_students",
	"towards_school",
	"punctuality",
	"initiative",
	"confidence",
	"neatness",
}

// CoScholasticGrades are the allowed trait grades, best to worst.
var CoScholasticGrades = []string{"A", "B", "C", "D"}

// TraitGrades maps trait key to letter grade, stored as JSONB.
type TraitGrades map[string]string

// Value marshals trait grades for storage.
func (t TraitGrades) Value() (driver.Value, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal trait grades: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB trait grades column.
func (t *TraitGrades) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TraitGrades", value)
	}
	if len(data) == 0 {
		*t = nil
		return nil
	}
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("unmarshal trait grades: %w", err)
	}
	return nil
}

// Missing returns the trait keys not yet graded, in canonical order.
func (t TraitGrades) Missing() []string {
	var missing []string
	for _, key := range CoScholasticTraits {
		if _, ok := t[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// CoScholasticRecord holds one student's trait grades for a term, unique
// on (student_id, term, academic_year). Draft records may be partial;
// completion requires every trait graded.
type CoScholasticRecord struct {
	ID           string             `db:"id" json:"id"`
	StudentID    string             `db:"student_id" json:"student_id"`
	SchoolID     string             `db:"school_id" json:"school_id"`
	Term         string             `db:"term" json:"term"`
	AcademicYear string             `db:"academic_year" json:"academic_year"`
	Traits       TraitGrades        `db:"traits" json:"traits"`
	Status       CoScholasticStatus `db:"status" json:"status"`
	UpdatedBy    *string            `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}
