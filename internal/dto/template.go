package dto

import "github.com/campuskit/reportcard-api/internal/models"

// CreateTemplateRequest captures POST /templates payload.
type CreateTemplateRequest struct {
	Name       string                `json:"name" validate:"required"`
	BoardType  models.BoardType      `json:"boardType" validate:"required,oneof=CBSE STATE ICSE"`
	PolicyCode string                `json:"policyCode" validate:"required"`
	Body       string                `json:"body" validate:"required"`
	CSS        string                `json:"css"`
	Fields     models.TemplateFields `json:"fields"`
	IsDefault  bool                  `json:"isDefault"`
}

// UpdateTemplateRequest captures PUT /templates/:id payload.
type UpdateTemplateRequest struct {
	Name       string                `json:"name" validate:"required"`
	PolicyCode string                `json:"policyCode" validate:"required"`
	Body       string                `json:"body" validate:"required"`
	CSS        string                `json:"css"`
	Fields     models.TemplateFields `json:"fields"`
	IsDefault  bool                  `json:"isDefault"`
	IsActive   bool                  `json:"isActive"`
}
