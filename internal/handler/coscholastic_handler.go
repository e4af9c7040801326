package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
	"github.com/campuskit/reportcard-api/pkg/response"
)

type coScholasticService interface {
	Upsert(ctx context.Context, req dto.UpsertCoScholasticRequest, actorID string) (*models.CoScholasticRecord, error)
	Complete(ctx context.Context, req dto.CompleteCoScholasticRequest, actorID string) (*models.CoScholasticRecord, error)
	Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error)
	ListBySection(ctx context.Context, sectionID, term, academicYear string) ([]models.CoScholasticRecord, error)
}

// CoScholasticHandler exposes co-scholastic trait grading endpoints.
type CoScholasticHandler struct {
	records coScholasticService
}

// NewCoScholasticHandler constructs the handler.
func NewCoScholasticHandler(records coScholasticService) *CoScholasticHandler {
	return &CoScholasticHandler{records: records}
}

// Upsert godoc
// @Summary Record co-scholastic trait grades for a student
// @Description Partial trait maps are merged into the existing draft.
// @Description Updating a completed record reopens it as a draft.
// @Tags CoScholastic
// @Accept json
// @Produce json
// @Param request body dto.UpsertCoScholasticRequest true "Trait grades"
// @Success 200 {object} response.Envelope{data=models.CoScholasticRecord}
// @Router /co-scholastic [put]
func (h *CoScholasticHandler) Upsert(c *gin.Context) {
	var req dto.UpsertCoScholasticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.records.Upsert(c.Request.Context(), req, actorFromContext(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Complete godoc
// @Summary Mark a co-scholastic record as complete
// @Description Fails when any of the standard traits is still ungraded.
// @Tags CoScholastic
// @Accept json
// @Produce json
// @Param request body dto.CompleteCoScholasticRequest true "Record key"
// @Success 200 {object} response.Envelope{data=models.CoScholasticRecord}
// @Router /co-scholastic/complete [post]
func (h *CoScholasticHandler) Complete(c *gin.Context) {
	var req dto.CompleteCoScholasticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.records.Complete(c.Request.Context(), req, actorFromContext(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Get godoc
// @Summary Fetch a student's co-scholastic record
// @Tags CoScholastic
// @Produce json
// @Param id path string true "Student ID"
// @Param term query string true "Term"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope{data=models.CoScholasticRecord}
// @Router /students/{id}/co-scholastic [get]
func (h *CoScholasticHandler) Get(c *gin.Context) {
	term := c.Query("term")
	year := c.Query("academicYear")
	if term == "" || year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term and academicYear query params required"))
		return
	}
	record, err := h.records.Get(c.Request.Context(), c.Param("id"), term, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListBySection godoc
// @Summary List co-scholastic records of a section
// @Tags CoScholastic
// @Produce json
// @Param id path string true "Section ID"
// @Param term query string true "Term"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope{data=[]models.CoScholasticRecord}
// @Router /sections/{id}/co-scholastic [get]
func (h *CoScholasticHandler) ListBySection(c *gin.Context) {
	term := c.Query("term")
	year := c.Query("academicYear")
	if term == "" || year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term and academicYear query params required"))
		return
	}
	records, err := h.records.ListBySection(c.Request.Context(), c.Param("id"), term, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
