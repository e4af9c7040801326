package dto

import "github.com/campuskit/reportcard-api/internal/models"

// GenerateRequest captures POST /report-cards/generate payload for a
// single student.
type GenerateRequest struct {
	StudentID   string `json:"studentId" validate:"required"`
	ExamGroupID string `json:"examGroupId" validate:"required"`
}

// GenerateBatchRequest captures POST /report-cards/generate-batch payload.
type GenerateBatchRequest struct {
	ExamGroupID string              `json:"examGroupId" validate:"required"`
	SectionID   *string             `json:"sectionId,omitempty"`
	TemplateID  *string             `json:"templateId,omitempty"`
	Format      models.ExportFormat `json:"format" validate:"omitempty,oneof=csv pdf"`
}

// PublishRequest captures POST /report-cards/:id/publish payload.
type PublishRequest struct {
	// Empty for now, kept so publish can grow options without a route change.
}

// RegenerateRequest captures POST /report-cards/:id/regenerate payload.
// Reason is mandatory when the card is already published.
type RegenerateRequest struct {
	Reason string `json:"reason"`
}

// ReportCardResponse is the API shape of a report card.
type ReportCardResponse struct {
	ID            string                   `json:"id"`
	StudentID     string                   `json:"studentId"`
	StudentName   string                   `json:"studentName,omitempty"`
	ExamGroupID   string                   `json:"examGroupId"`
	PolicyCode    string                   `json:"policyCode"`
	TotalMarks    float64                  `json:"totalMarks"`
	ObtainedMarks float64                  `json:"obtainedMarks"`
	Percentage    float64                  `json:"percentage"`
	Grade         string                   `json:"grade"`
	Remark        string                   `json:"remark"`
	Rank          int                      `json:"rank"`
	Subjects      []models.SubjectResult   `json:"subjects"`
	Status        models.ReportStatus      `json:"status"`
	GeneratedAt   string                   `json:"generatedAt"`
	PublishedAt   *string                  `json:"publishedAt,omitempty"`
}

// BatchResultResponse summarises a synchronous bulk generation run.
type BatchResultResponse struct {
	ExamGroupID string                `json:"examGroupId"`
	Succeeded   int                   `json:"succeeded"`
	Failed      []models.BatchFailure `json:"failed,omitempty"`
}

// GenerationJobResponse is returned after enqueueing an async bulk run.
type GenerationJobResponse struct {
	ID       string           `json:"id"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

// GenerationJobStatusResponse exposes job progress metadata.
type GenerationJobStatusResponse struct {
	ID        string           `json:"id"`
	Status    models.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	ResultURL *string          `json:"resultUrl,omitempty"`
	Error     *string          `json:"error,omitempty"`
}

// RenderResponse carries a rendered report card artifact.
type RenderResponse struct {
	ReportCardID string   `json:"reportCardId"`
	TemplateID   string   `json:"templateId"`
	Content      string   `json:"content"`
	Warnings     []string `json:"warnings,omitempty"`
}
