package models

import "time"

// AssessmentType tags an exam group with its grading category.
type AssessmentType string

const (
	AssessmentFormative  AssessmentType = "FA"
	AssessmentSummative  AssessmentType = "SA"
	AssessmentUnitTest   AssessmentType = "UNIT_TEST"
	AssessmentMonthly    AssessmentType = "MONTHLY"
	AssessmentHalfYearly AssessmentType = "HALF_YEARLY"
	AssessmentAnnual     AssessmentType = "ANNUAL"
)

// ExamGroup identifies one assessment window (e.g. "Term 1 Finals").
// Administrative fields may change after creation; identity fields are
// frozen once marks exist against the group.
type ExamGroup struct {
	ID             string         `db:"id" json:"id"`
	SchoolID       string         `db:"school_id" json:"school_id"`
	Name           string         `db:"name" json:"name"`
	Description    *string        `db:"description" json:"description,omitempty"`
	ExamType       string         `db:"exam_type" json:"exam_type"`
	AssessmentType AssessmentType `db:"assessment_type" json:"assessment_type"`
	Term           string         `db:"term" json:"term"`
	AcademicYear   string         `db:"academic_year" json:"academic_year"`
	StartDate      time.Time      `db:"start_date" json:"start_date"`
	EndDate        time.Time      `db:"end_date" json:"end_date"`
	IsPublished    bool           `db:"is_published" json:"is_published"`
	CreatedBy      *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// ExamPaper is one subject's assessment within an exam group.
type ExamPaper struct {
	ID          string     `db:"id" json:"id"`
	ExamGroupID string     `db:"exam_group_id" json:"exam_group_id"`
	SchoolID    string     `db:"school_id" json:"school_id"`
	Section     string     `db:"section" json:"section"`
	Subject     string     `db:"subject" json:"subject"`
	MaxMarks    float64    `db:"max_marks" json:"max_marks"`
	PassMarks   float64    `db:"pass_marks" json:"pass_marks"`
	ExamDate    *time.Time `db:"exam_date" json:"exam_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Mark records one student's result for one exam paper. MarksObtained is
// nil while unentered and must stay nil when IsAbsent is set.
type Mark struct {
	ID            string    `db:"id" json:"id"`
	ExamPaperID   string    `db:"exam_paper_id" json:"exam_paper_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	MarksObtained *float64  `db:"marks_obtained" json:"marks_obtained,omitempty"`
	IsAbsent      bool      `db:"is_absent" json:"is_absent"`
	Remarks       *string   `db:"remarks" json:"remarks,omitempty"`
	EnteredBy     *string   `db:"entered_by" json:"entered_by,omitempty"`
	EnteredAt     time.Time `db:"entered_at" json:"entered_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Obtained returns the contribution of this mark to the obtained total.
// An absence contributes zero while the paper keeps its full weight in
// the denominator.
func (m Mark) Obtained() float64 {
	if m.IsAbsent || m.MarksObtained == nil {
		return 0
	}
	return *m.MarksObtained
}
