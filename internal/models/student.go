package models

import "time"

// School is the tenant every record belongs to.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	BoardType BoardType `db:"board_type" json:"board_type"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Section groups students within a class, e.g. "VI-A".
type Section struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	ClassName string    `db:"class_name" json:"class_name"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Student carries the identity fields report cards render.
type Student struct {
	ID           string     `db:"id" json:"id"`
	SchoolID     string     `db:"school_id" json:"school_id"`
	SectionID    string     `db:"section_id" json:"section_id"`
	AdmissionNo  string     `db:"admission_no" json:"admission_no"`
	RollNo       string     `db:"roll_no" json:"roll_no"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	FatherName   string     `db:"father_name" json:"father_name"`
	MotherName   string     `db:"mother_name" json:"mother_name"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the student's name parts for display.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	SectionID string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
