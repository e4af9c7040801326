package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type templateServiceMock struct {
	template  *models.BoardTemplate
	templates []models.BoardTemplate
	lastBoard *models.BoardType
	err       error
}

func (m *templateServiceMock) Get(ctx context.Context, id string) (*models.BoardTemplate, error) {
	return m.template, m.err
}

func (m *templateServiceMock) List(ctx context.Context, board *models.BoardType) ([]models.BoardTemplate, error) {
	m.lastBoard = board
	return m.templates, m.err
}

func (m *templateServiceMock) Create(ctx context.Context, req dto.CreateTemplateRequest) (*models.BoardTemplate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.BoardTemplate{ID: "tpl-new", Name: req.Name}, nil
}

func (m *templateServiceMock) Update(ctx context.Context, id string, req dto.UpdateTemplateRequest) (*models.BoardTemplate, error) {
	return m.template, m.err
}

func TestTemplateHandlerListFiltersByBoard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &templateServiceMock{templates: []models.BoardTemplate{{ID: "tpl-1"}}}
	handler := NewTemplateHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/templates?board=CBSE", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastBoard)
	require.Equal(t, models.BoardCBSE, *mockSvc.lastBoard)
}

func TestTemplateHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTemplateHandler(&templateServiceMock{})

	payload, _ := json.Marshal(dto.CreateTemplateRequest{
		Name:       "CBSE Annual",
		BoardType:  models.BoardCBSE,
		PolicyCode: "CBSE_TRADITIONAL",
		Body:       "<h1>{{ student_name }}</h1>",
	})
	c, w := newGinContext(http.MethodPost, "/templates", payload)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "tpl-new")
}

func TestTemplateHandlerCreateRejectsUnknownPlaceholder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &templateServiceMock{err: appErrors.Clone(appErrors.ErrRenderSanitization, "placeholder secret is not allowed")}
	handler := NewTemplateHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateTemplateRequest{
		Name:       "Bad",
		BoardType:  models.BoardCBSE,
		PolicyCode: "CBSE_TRADITIONAL",
		Body:       "{{ secret }}",
	})
	c, w := newGinContext(http.MethodPost, "/templates", payload)
	handler.Create(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTemplateHandlerUpdateNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &templateServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "template not found")}
	handler := NewTemplateHandler(mockSvc)

	payload, _ := json.Marshal(dto.UpdateTemplateRequest{Name: "X", PolicyCode: "CBSE_TRADITIONAL", Body: "{{ student_name }}"})
	c, w := newGinContext(http.MethodPut, "/templates/tpl-x", payload)
	c.Params = gin.Params{{Key: "id", Value: "tpl-x"}}
	handler.Update(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
