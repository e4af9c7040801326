package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type mockTemplateStore struct {
	byID     map[string]models.BoardTemplate
	fallback *models.BoardTemplate
}

func (m *mockTemplateStore) GetByID(ctx context.Context, id string) (*models.BoardTemplate, error) {
	if tpl, ok := m.byID[id]; ok {
		clone := tpl
		return &clone, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
}

func (m *mockTemplateStore) GetDefaultByBoard(ctx context.Context, board models.BoardType) (*models.BoardTemplate, error) {
	if m.fallback == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no default template for board")
	}
	clone := *m.fallback
	return &clone, nil
}

type mockCoScholasticReader struct {
	record *models.CoScholasticRecord
}

func (m *mockCoScholasticReader) Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error) {
	if m.record == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "co-scholastic record not found")
	}
	clone := *m.record
	return &clone, nil
}

type mockPolicyReader struct {
	policies map[string]models.GradingPolicy
}

func (m *mockPolicyReader) GetByCode(ctx context.Context, code string) (*models.GradingPolicy, error) {
	if policy, ok := m.policies[code]; ok {
		clone := policy
		return &clone, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
}

type renderFixture struct {
	templates    *mockTemplateStore
	coScholastic *mockCoScholasticReader
	cards        *mockLifecycleCardStore
	students     *mockStudentStore
	service      *RenderService
}

func newRenderFixture(t *testing.T, tpl models.BoardTemplate) *renderFixture {
	t.Helper()
	cards := newMockLifecycleCardStore(models.ReportCard{
		ID:            "rc-1",
		StudentID:     "s1",
		ExamGroupID:   "eg-1",
		SchoolID:      "sch-1",
		PolicyCode:    models.PolicyCBSETraditional,
		TotalMarks:    200,
		ObtainedMarks: 160,
		Percentage:    80,
		Grade:         "A",
		Remark:        "Excellent",
		Rank:          2,
		Subjects: models.SubjectResultList{
			{Subject: "Mathematics", MaxMarks: 100, MarksObtained: 90, Grade: "A+", Remark: "Outstanding"},
			{Subject: "Science", MaxMarks: 100, MarksObtained: 70, IsAbsent: false, Grade: "B+", Remark: "Very Good"},
		},
		Status:      models.ReportStatusGenerated,
		GeneratedAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	})
	students := &mockStudentStore{
		students: map[string]models.Student{
			"s1": {ID: "s1", SectionID: "sec-1", AdmissionNo: "ADM-9", RollNo: "12", FirstName: "Asha", LastName: "R & D", FatherName: "Ravi"},
		},
		section: &models.Section{ID: "sec-1", ClassName: "VI", Name: "A"},
		school:  &models.School{ID: "sch-1", Name: "Green Valley", BoardType: models.BoardCBSE, Address: "MG Road"},
	}
	marks := &mockMarkStore{group: &models.ExamGroup{ID: "eg-1", SchoolID: "sch-1", Name: "Term 1 Finals", Term: "Term 1", AcademicYear: "2025-26"}}
	templates := &mockTemplateStore{byID: map[string]models.BoardTemplate{tpl.ID: tpl}, fallback: &tpl}
	policies := &mockPolicyReader{policies: map[string]models.GradingPolicy{
		models.PolicyCBSETraditional: BuiltinPolicies()[0],
	}}
	coScholastic := &mockCoScholasticReader{}

	svc := NewRenderService(templates, coScholastic, policies, students, marks, cards, nil, nil)
	return &renderFixture{templates: templates, coScholastic: coScholastic, cards: cards, students: students, service: svc}
}

func baseTemplate(body string) models.BoardTemplate {
	return models.BoardTemplate{
		ID:        "tpl-1",
		Name:      "Standard",
		BoardType: models.BoardCBSE,
		Body:      body,
		IsActive:  true,
	}
}

func TestRenderSubstitutesAndEscapes(t *testing.T) {
	fixture := newRenderFixture(t, baseTemplate("<h1>{{ student_name }}</h1><p>{{percentage}}%</p><table>{{subject_rows}}</table>"))

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "<h1>Asha R &amp; D</h1>")
	assert.Contains(t, resp.Content, "<p>80.00%</p>")
	assert.Contains(t, resp.Content, "<td>Mathematics</td>")
	assert.Contains(t, resp.Content, "<td>A+</td>")
	assert.Empty(t, resp.Warnings)
}

func TestRenderRejectsUnknownPlaceholder(t *testing.T) {
	fixture := newRenderFixture(t, baseTemplate("{{student_name}} {{secret_field}}"))

	_, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.Error(t, err)
	assert.Equal(t, "RENDER_SANITIZATION_FAILURE", appErrors.FromError(err).Code)
}

func TestRenderExtraPlaceholderFromFields(t *testing.T) {
	tpl := baseTemplate("{{student_name}} {{house}}")
	tpl.Fields.Placeholders = []string{"house"}
	fixture := newRenderFixture(t, tpl)

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	// Allowed but valueless placeholders resolve to empty with a warning.
	assert.Contains(t, resp.Warnings, `placeholder "house" has no value`)
}

func TestRenderHeaderValuesSubstituted(t *testing.T) {
	tpl := baseTemplate("{{motto}}")
	tpl.Fields.Header = map[string]string{"motto": "Learn & Grow"}
	fixture := newRenderFixture(t, tpl)

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Learn &amp; Grow", resp.Content)
}

func TestRenderRankHiddenUnlessEnabled(t *testing.T) {
	fixture := newRenderFixture(t, baseTemplate("Rank: {{rank}}"))

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Rank: ", resp.Content)
	assert.Contains(t, resp.Warnings, `placeholder "rank" has no value`)

	tpl := baseTemplate("Rank: {{rank}}")
	tpl.Fields.ShowRank = true
	fixture = newRenderFixture(t, tpl)
	resp, err = fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Rank: 2", resp.Content)
}

func TestRenderFallsBackToBoardDefault(t *testing.T) {
	fixture := newRenderFixture(t, baseTemplate("{{school_name}}"))

	resp, err := fixture.service.Render(context.Background(), "rc-1", "")
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", resp.TemplateID)
	assert.Equal(t, "Green Valley", resp.Content)
}

func TestRenderInactiveTemplateRejected(t *testing.T) {
	tpl := baseTemplate("{{student_name}}")
	tpl.IsActive = false
	fixture := newRenderFixture(t, tpl)

	_, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.Error(t, err)
	assert.Equal(t, "PRECONDITION_FAILED", appErrors.FromError(err).Code)
}

func TestRenderCoScholasticRowsRequireCompletion(t *testing.T) {
	fixture := newRenderFixture(t, baseTemplate("{{co_scholastic_rows}}"))
	fixture.coScholastic.record = &models.CoScholasticRecord{
		StudentID: "s1",
		Status:    models.CoScholasticDraft,
		Traits:    models.TraitGrades{"handwriting": "A"},
	}

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Content)

	fixture.coScholastic.record.Status = models.CoScholasticCompleted
	fixture.coScholastic.record.Traits = models.TraitGrades{"handwriting": "A", "punctuality": "B"}
	resp, err = fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	// Canonical trait order, not map order.
	assert.Equal(t, "<tr><td>Handwriting</td><td>A</td></tr><tr><td>Punctuality</td><td>B</td></tr>", resp.Content)
}

func TestRenderGradeLegendBestBandFirst(t *testing.T) {
	tpl := baseTemplate("{{grade_legend}}")
	tpl.Fields.ShowLegend = true
	fixture := newRenderFixture(t, tpl)

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.True(t, len(resp.Content) > 0)
	first := resp.Content[:len("<tr><td>A+</td>")]
	assert.Equal(t, "<tr><td>A+</td>", first)
}

func TestRenderPrependsTemplateStylesheet(t *testing.T) {
	tpl := baseTemplate("<h1>{{student_name}}</h1>")
	tpl.CSS = "h1 { font-family: serif; }"
	fixture := newRenderFixture(t, tpl)

	resp, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Content, "<style>h1 { font-family: serif; }</style>"))

	// No stylesheet block is emitted for templates without CSS.
	plain := newRenderFixture(t, baseTemplate("<h1>{{student_name}}</h1>"))
	resp, err = plain.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.NotContains(t, resp.Content, "<style>")
}

func TestRenderDeterministicOutput(t *testing.T) {
	fixture := newRenderFixture(t, baseTemplate("{{student_name}} {{subject_rows}} {{generated_on}}"))

	first, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	second, err := fixture.service.Render(context.Background(), "rc-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
}

func TestSubjectRowsMarkAbsentAsAB(t *testing.T) {
	rows := subjectRows(models.SubjectResultList{
		{Subject: "Science", MaxMarks: 100, MarksObtained: 0, IsAbsent: true, Grade: "F", Remark: "Unsatisfactory"},
	})
	assert.Contains(t, rows, "<td>AB</td>")
}

func TestTraitLabel(t *testing.T) {
	assert.Equal(t, "General Knowledge", traitLabel("general_knowledge"))
	assert.Equal(t, "Neatness", traitLabel("neatness"))
}
