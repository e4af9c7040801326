package dto

import "github.com/campuskit/reportcard-api/internal/models"

// UpsertCoScholasticRequest captures PUT /co-scholastic payload. Partial
// trait maps are accepted while the record stays in draft.
type UpsertCoScholasticRequest struct {
	StudentID    string             `json:"studentId" validate:"required"`
	Term         string             `json:"term" validate:"required"`
	AcademicYear string             `json:"academicYear" validate:"required"`
	Traits       models.TraitGrades `json:"traits" validate:"required"`
}

// CompleteCoScholasticRequest captures POST /co-scholastic/complete payload.
type CompleteCoScholasticRequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	Term         string `json:"term" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
}
