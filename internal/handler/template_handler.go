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

type templateService interface {
	Get(ctx context.Context, id string) (*models.BoardTemplate, error)
	List(ctx context.Context, board *models.BoardType) ([]models.BoardTemplate, error)
	Create(ctx context.Context, req dto.CreateTemplateRequest) (*models.BoardTemplate, error)
	Update(ctx context.Context, id string, req dto.UpdateTemplateRequest) (*models.BoardTemplate, error)
}

// TemplateHandler exposes board template management endpoints.
type TemplateHandler struct {
	templates templateService
}

// NewTemplateHandler constructs the handler.
func NewTemplateHandler(templates templateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// List godoc
// @Summary List board templates
// @Tags Templates
// @Produce json
// @Param board query string false "Filter by board type" Enums(CBSE, STATE, ICSE)
// @Success 200 {object} response.Envelope{data=[]models.BoardTemplate}
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	var board *models.BoardType
	if raw := c.Query("board"); raw != "" {
		b := models.BoardType(raw)
		board = &b
	}
	templates, err := h.templates.List(c.Request.Context(), board)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Fetch a board template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope{data=models.BoardTemplate}
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	template, err := h.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// Create godoc
// @Summary Register a board template
// @Description The body is validated against the placeholder allow list
// @Description before the template is stored.
// @Tags Templates
// @Accept json
// @Produce json
// @Param request body dto.CreateTemplateRequest true "Template definition"
// @Success 201 {object} response.Envelope{data=models.BoardTemplate}
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	template, err := h.templates.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// Update godoc
// @Summary Update a board template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param request body dto.UpdateTemplateRequest true "Template changes"
// @Success 200 {object} response.Envelope{data=models.BoardTemplate}
// @Router /templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	var req dto.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	template, err := h.templates.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}
