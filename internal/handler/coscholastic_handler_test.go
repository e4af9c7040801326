package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/middleware"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type coScholasticServiceMock struct {
	record  *models.CoScholasticRecord
	records []models.CoScholasticRecord
	actorID string
	err     error
}

func (m *coScholasticServiceMock) Upsert(ctx context.Context, req dto.UpsertCoScholasticRequest, actorID string) (*models.CoScholasticRecord, error) {
	m.actorID = actorID
	return m.record, m.err
}

func (m *coScholasticServiceMock) Complete(ctx context.Context, req dto.CompleteCoScholasticRequest, actorID string) (*models.CoScholasticRecord, error) {
	m.actorID = actorID
	return m.record, m.err
}

func (m *coScholasticServiceMock) Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error) {
	return m.record, m.err
}

func (m *coScholasticServiceMock) ListBySection(ctx context.Context, sectionID, term, academicYear string) ([]models.CoScholasticRecord, error) {
	return m.records, m.err
}

func TestCoScholasticHandlerUpsert(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coScholasticServiceMock{record: &models.CoScholasticRecord{ID: "cs-1", StudentID: "s1"}}
	handler := NewCoScholasticHandler(mockSvc)

	payload, _ := json.Marshal(dto.UpsertCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       models.TraitGrades{"discipline": "A"},
	})
	c, w := newGinContext(http.MethodPut, "/co-scholastic", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Upsert(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "teacher-1", mockSvc.actorID)
}

func TestCoScholasticHandlerCompleteIncomplete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coScholasticServiceMock{err: appErrors.Clone(appErrors.ErrIncompleteTraits, "missing traits: oral_expression")}
	handler := NewCoScholasticHandler(mockSvc)

	payload, _ := json.Marshal(dto.CompleteCoScholasticRequest{StudentID: "s1", Term: "Term 1", AcademicYear: "2025-26"})
	c, w := newGinContext(http.MethodPost, "/co-scholastic/complete", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Complete(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INCOMPLETE_TRAITS")
}

func TestCoScholasticHandlerGetRequiresParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCoScholasticHandler(&coScholasticServiceMock{})

	c, w := newGinContext(http.MethodGet, "/students/s1/co-scholastic?term=Term%201", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoScholasticHandlerListBySection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &coScholasticServiceMock{records: []models.CoScholasticRecord{{ID: "cs-1"}, {ID: "cs-2"}}}
	handler := NewCoScholasticHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/sections/sec-1/co-scholastic?term=Term%201&academicYear=2025-26", nil)
	c.Params = gin.Params{{Key: "id", Value: "sec-1"}}

	handler.ListBySection(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "cs-2")
}
