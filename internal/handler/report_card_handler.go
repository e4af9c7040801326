package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/middleware"
	"github.com/campuskit/reportcard-api/internal/models"
	"github.com/campuskit/reportcard-api/internal/service"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
	"github.com/campuskit/reportcard-api/pkg/response"
)

type aggregationService interface {
	Aggregate(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error)
	GenerateReports(ctx context.Context, examGroupID string, sectionID *string) (*models.BatchResult, error)
	ListExamGroups(ctx context.Context, schoolID string) ([]models.ExamGroup, error)
}

type lifecycleService interface {
	Get(ctx context.Context, id string) (*models.ReportCard, error)
	GetByKey(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, bool, error)
	ListGroup(ctx context.Context, examGroupID string) ([]models.ReportCard, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.ReportCard, error)
	Publish(ctx context.Context, id string, actor service.Actor) (*models.ReportCard, error)
	PublishGroup(ctx context.Context, examGroupID string, actor service.Actor) (*models.BatchResult, error)
	Distribute(ctx context.Context, id string, actor service.Actor) (*models.ReportCard, error)
	Regenerate(ctx context.Context, id, reason string, actor service.Actor) (*models.ReportCard, error)
	History(ctx context.Context, id string, limit int) ([]models.AuditLog, error)
}

type renderService interface {
	Render(ctx context.Context, reportCardID, templateID string) (*dto.RenderResponse, error)
}

type generationJobService interface {
	Enqueue(ctx context.Context, params models.GenerationJobParams, createdBy string) (*models.GenerationJob, error)
	GetJob(ctx context.Context, id string) (*models.GenerationJob, error)
}

// ReportCardHandler exposes aggregation, lifecycle and render endpoints.
type ReportCardHandler struct {
	aggregation aggregationService
	lifecycle   lifecycleService
	renderer    renderService
	generation  generationJobService
}

// NewReportCardHandler constructs the handler.
func NewReportCardHandler(aggregation aggregationService, lifecycle lifecycleService, renderer renderService, generation generationJobService) *ReportCardHandler {
	return &ReportCardHandler{
		aggregation: aggregation,
		lifecycle:   lifecycle,
		renderer:    renderer,
		generation:  generation,
	}
}

// Generate godoc
// @Summary Generate one student's report card
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param request body dto.GenerateRequest true "Generation request"
// @Success 200 {object} response.Envelope{data=dto.ReportCardResponse}
// @Router /report-cards/generate [post]
func (h *ReportCardHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	if req.StudentID == "" || req.ExamGroupID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId and examGroupId required"))
		return
	}
	card, err := h.aggregation.Aggregate(c.Request.Context(), req.StudentID, req.ExamGroupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toReportCardResponse(card), nil)
}

// GenerateBatch godoc
// @Summary Queue bulk report card generation for an exam group
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param request body dto.GenerateBatchRequest true "Batch request"
// @Success 202 {object} response.Envelope{data=dto.GenerationJobResponse}
// @Router /report-cards/generate-batch [post]
func (h *ReportCardHandler) GenerateBatch(c *gin.Context) {
	var req dto.GenerateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	actor := actorFromContext(c)
	job, err := h.generation.Enqueue(c.Request.Context(), models.GenerationJobParams{
		ExamGroupID: req.ExamGroupID,
		SectionID:   req.SectionID,
		TemplateID:  req.TemplateID,
		Format:      req.Format,
	}, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dto.GenerationJobResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}, nil)
}

// JobStatus godoc
// @Summary Bulk generation job status
// @Tags ReportCards
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=dto.GenerationJobStatusResponse}
// @Router /report-cards/jobs/{id} [get]
func (h *ReportCardHandler) JobStatus(c *gin.Context) {
	job, err := h.generation.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GenerationJobStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Succeeded: job.Succeeded,
		Failed:    job.Failed,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil)
}

// Get godoc
// @Summary Fetch a report card by id
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope{data=dto.ReportCardResponse}
// @Router /report-cards/{id} [get]
func (h *ReportCardHandler) Get(c *gin.Context) {
	card, err := h.lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toReportCardResponse(card), nil)
}

// GetForStudent godoc
// @Summary Fetch a student's card in an exam group
// @Tags ReportCards
// @Produce json
// @Param id path string true "Exam group ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope{data=dto.ReportCardResponse}
// @Router /exam-groups/{id}/students/{studentId}/report-card [get]
func (h *ReportCardHandler) GetForStudent(c *gin.Context) {
	card, cached, err := h.lifecycle.GetByKey(c.Request.Context(), c.Param("studentId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, toReportCardResponse(card), nil, middleware.ExtractMeta(c))
}

// ListExamGroups godoc
// @Summary List the caller's school exam groups
// @Tags ReportCards
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.ExamGroup}
// @Router /exam-groups [get]
func (h *ReportCardHandler) ListExamGroups(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	groups, err := h.aggregation.ListExamGroups(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// ListGroup godoc
// @Summary List an exam group's report cards ordered by rank
// @Tags ReportCards
// @Produce json
// @Param id path string true "Exam group ID"
// @Success 200 {object} response.Envelope{data=[]dto.ReportCardResponse}
// @Router /exam-groups/{id}/report-cards [get]
func (h *ReportCardHandler) ListGroup(c *gin.Context) {
	cards, err := h.lifecycle.ListGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.ReportCardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, toReportCardResponse(&cards[i]))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// ListForStudent godoc
// @Summary List one student's report cards
// @Tags ReportCards
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=[]dto.ReportCardResponse}
// @Router /students/{id}/report-cards [get]
func (h *ReportCardHandler) ListForStudent(c *gin.Context) {
	cards, err := h.lifecycle.ListForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.ReportCardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, toReportCardResponse(&cards[i]))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// Publish godoc
// @Summary Publish a generated report card
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope{data=dto.ReportCardResponse}
// @Router /report-cards/{id}/publish [post]
func (h *ReportCardHandler) Publish(c *gin.Context) {
	card, err := h.lifecycle.Publish(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toReportCardResponse(card), nil)
}

// PublishGroup godoc
// @Summary Publish every generated card of an exam group
// @Tags ReportCards
// @Produce json
// @Param id path string true "Exam group ID"
// @Success 200 {object} response.Envelope{data=dto.BatchResultResponse}
// @Router /exam-groups/{id}/publish [post]
func (h *ReportCardHandler) PublishGroup(c *gin.Context) {
	result, err := h.lifecycle.PublishGroup(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BatchResultResponse{
		ExamGroupID: result.ExamGroupID,
		Succeeded:   result.Succeeded,
		Failed:      result.Failed,
	}, nil)
}

// Distribute godoc
// @Summary Mark a published report card as distributed
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope{data=dto.ReportCardResponse}
// @Router /report-cards/{id}/distribute [post]
func (h *ReportCardHandler) Distribute(c *gin.Context) {
	card, err := h.lifecycle.Distribute(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toReportCardResponse(card), nil)
}

// Regenerate godoc
// @Summary Re-aggregate a report card
// @Description Regenerating a published card requires an admin role and a reason.
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param id path string true "Report card ID"
// @Param request body dto.RegenerateRequest false "Regeneration reason"
// @Success 200 {object} response.Envelope{data=dto.ReportCardResponse}
// @Router /report-cards/{id}/regenerate [post]
func (h *ReportCardHandler) Regenerate(c *gin.Context) {
	var req dto.RegenerateRequest
	_ = c.ShouldBindJSON(&req)
	card, err := h.lifecycle.Regenerate(c.Request.Context(), c.Param("id"), req.Reason, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toReportCardResponse(card), nil)
}

// History godoc
// @Summary Audit trail of a report card
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/{id}/history [get]
func (h *ReportCardHandler) History(c *gin.Context) {
	trail, err := h.lifecycle.History(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trail, nil)
}

// Render godoc
// @Summary Render a report card through a board template
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Param templateId query string false "Template ID, defaults to the board default"
// @Success 200 {object} response.Envelope{data=dto.RenderResponse}
// @Router /report-cards/{id}/render [get]
func (h *ReportCardHandler) Render(c *gin.Context) {
	rendered, err := h.renderer.Render(c.Request.Context(), c.Param("id"), c.Query("templateId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rendered, nil)
}

func toReportCardResponse(card *models.ReportCard) dto.ReportCardResponse {
	resp := dto.ReportCardResponse{
		ID:            card.ID,
		StudentID:     card.StudentID,
		ExamGroupID:   card.ExamGroupID,
		PolicyCode:    card.PolicyCode,
		TotalMarks:    card.TotalMarks,
		ObtainedMarks: card.ObtainedMarks,
		Percentage:    card.Percentage,
		Grade:         card.Grade,
		Remark:        card.Remark,
		Rank:          card.Rank,
		Subjects:      card.Subjects,
		Status:        card.Status,
		GeneratedAt:   card.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if card.PublishedAt != nil {
		published := card.PublishedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.PublishedAt = &published
	}
	return resp
}
