package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type mockCoScholasticStore struct {
	mu      sync.Mutex
	records map[string]models.CoScholasticRecord
}

func coScholasticKey(studentID, term, academicYear string) string {
	return studentID + "|" + term + "|" + academicYear
}

func (m *mockCoScholasticStore) Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[coScholasticKey(studentID, term, academicYear)]; ok {
		clone := record
		return &clone, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "co-scholastic record not found")
}

func (m *mockCoScholasticStore) ListBySection(ctx context.Context, sectionID, term, academicYear string) ([]models.CoScholasticRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.CoScholasticRecord
	for _, record := range m.records {
		all = append(all, record)
	}
	return all, nil
}

func (m *mockCoScholasticStore) Upsert(ctx context.Context, record *models.CoScholasticRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]models.CoScholasticRecord)
	}
	m.records[coScholasticKey(record.StudentID, record.Term, record.AcademicYear)] = *record
	return nil
}

func newCoScholasticFixture() (*CoScholasticService, *mockCoScholasticStore) {
	store := &mockCoScholasticStore{}
	students := &mockStudentStore{students: map[string]models.Student{
		"s1": {ID: "s1", SchoolID: "sch-1", SectionID: "sec-1"},
	}}
	return NewCoScholasticService(store, students, nil, nil), store
}

func fullTraits() models.TraitGrades {
	traits := models.TraitGrades{}
	for _, key := range models.CoScholasticTraits {
		traits[key] = "B"
	}
	return traits
}

func TestCoScholasticUpsertCreatesDraft(t *testing.T) {
	svc, _ := newCoScholasticFixture()

	record, err := svc.Upsert(context.Background(), dto.UpsertCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       models.TraitGrades{"handwriting": "a"},
	}, "teacher-1")
	require.NoError(t, err)

	assert.Equal(t, models.CoScholasticDraft, record.Status)
	assert.Equal(t, "A", record.Traits["handwriting"])
	require.NotNil(t, record.UpdatedBy)
	assert.Equal(t, "teacher-1", *record.UpdatedBy)
	assert.Equal(t, "sch-1", record.SchoolID)
}

func TestCoScholasticUpsertMergesAndReopens(t *testing.T) {
	svc, store := newCoScholasticFixture()
	require.NoError(t, store.Upsert(context.Background(), &models.CoScholasticRecord{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       fullTraits(),
		Status:       models.CoScholasticCompleted,
	}))

	record, err := svc.Upsert(context.Background(), dto.UpsertCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       models.TraitGrades{"punctuality": "D"},
	}, "teacher-1")
	require.NoError(t, err)

	assert.Equal(t, models.CoScholasticDraft, record.Status)
	assert.Equal(t, "D", record.Traits["punctuality"])
	assert.Equal(t, "B", record.Traits["handwriting"])
}

func TestCoScholasticUpsertRejectsUnknownTrait(t *testing.T) {
	svc, _ := newCoScholasticFixture()

	_, err := svc.Upsert(context.Background(), dto.UpsertCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       models.TraitGrades{"telepathy": "A"},
	}, "")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestCoScholasticUpsertRejectsInvalidGrade(t *testing.T) {
	svc, _ := newCoScholasticFixture()

	_, err := svc.Upsert(context.Background(), dto.UpsertCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       models.TraitGrades{"handwriting": "E"},
	}, "")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestCoScholasticCompleteNamesMissingTraits(t *testing.T) {
	svc, store := newCoScholasticFixture()
	require.NoError(t, store.Upsert(context.Background(), &models.CoScholasticRecord{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       models.TraitGrades{"handwriting": "A", "punctuality": "B"},
		Status:       models.CoScholasticDraft,
	}))

	_, err := svc.Complete(context.Background(), dto.CompleteCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
	}, "teacher-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "INCOMPLETE_TRAITS", appErr.Code)
	assert.Contains(t, appErr.Message, "oral_expression")
	assert.NotContains(t, appErr.Message, "handwriting")
}

func TestCoScholasticCompleteMarksRecord(t *testing.T) {
	svc, store := newCoScholasticFixture()
	require.NoError(t, store.Upsert(context.Background(), &models.CoScholasticRecord{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
		Traits:       fullTraits(),
		Status:       models.CoScholasticDraft,
	}))

	record, err := svc.Complete(context.Background(), dto.CompleteCoScholasticRequest{
		StudentID:    "s1",
		Term:         "Term 1",
		AcademicYear: "2025-26",
	}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.CoScholasticCompleted, record.Status)
}
