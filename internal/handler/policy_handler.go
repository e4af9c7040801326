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

type policyService interface {
	Resolve(ctx context.Context, board models.BoardType, assessment models.AssessmentType) (*models.GradingPolicy, error)
	GetByCode(ctx context.Context, code string) (*models.GradingPolicy, error)
	List(ctx context.Context) ([]models.GradingPolicy, error)
	Create(ctx context.Context, req dto.CreatePolicyRequest) (*models.GradingPolicy, error)
	Deactivate(ctx context.Context, id string) error
}

// PolicyHandler exposes grading policy management endpoints.
type PolicyHandler struct {
	policies policyService
}

// NewPolicyHandler constructs the handler.
func NewPolicyHandler(policies policyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// List godoc
// @Summary List registered grading policies
// @Tags Policies
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.GradingPolicy}
// @Router /policies [get]
func (h *PolicyHandler) List(c *gin.Context) {
	policies, err := h.policies.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policies, nil)
}

// GetByCode godoc
// @Summary Fetch a grading policy by code
// @Tags Policies
// @Produce json
// @Param code path string true "Policy code"
// @Success 200 {object} response.Envelope{data=models.GradingPolicy}
// @Router /policies/{code} [get]
func (h *PolicyHandler) GetByCode(c *gin.Context) {
	policy, err := h.policies.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Resolve godoc
// @Summary Resolve the policy for a board and assessment type
// @Tags Policies
// @Produce json
// @Param board query string true "Board type" Enums(CBSE, STATE, ICSE)
// @Param assessmentType query string true "Assessment type"
// @Success 200 {object} response.Envelope{data=models.GradingPolicy}
// @Router /policies/resolve [get]
func (h *PolicyHandler) Resolve(c *gin.Context) {
	board := models.BoardType(c.Query("board"))
	assessment := models.AssessmentType(c.Query("assessmentType"))
	if board == "" || assessment == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "board and assessmentType query params required"))
		return
	}
	policy, err := h.policies.Resolve(c.Request.Context(), board, assessment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Create godoc
// @Summary Register a custom grading policy
// @Tags Policies
// @Accept json
// @Produce json
// @Param request body dto.CreatePolicyRequest true "Policy definition"
// @Success 201 {object} response.Envelope{data=models.GradingPolicy}
// @Router /policies [post]
func (h *PolicyHandler) Create(c *gin.Context) {
	var req dto.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	policy, err := h.policies.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, policy)
}

// Deactivate godoc
// @Summary Deactivate a grading policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 204 "No Content"
// @Router /policies/{id} [delete]
func (h *PolicyHandler) Deactivate(c *gin.Context) {
	if err := h.policies.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
