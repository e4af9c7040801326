package service

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type templateStore interface {
	GetByID(ctx context.Context, id string) (*models.BoardTemplate, error)
	GetDefaultByBoard(ctx context.Context, board models.BoardType) (*models.BoardTemplate, error)
}

type coScholasticReader interface {
	Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error)
}

type renderPolicyReader interface {
	GetByCode(ctx context.Context, code string) (*models.GradingPolicy, error)
}

type renderCardReader interface {
	GetByID(ctx context.Context, id string) (*models.ReportCard, error)
}

// placeholderPattern matches {{name}} tokens. Names are plain
// identifiers; there is deliberately no expression or loop syntax.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// basePlaceholders are always renderable regardless of template fields.
var basePlaceholders = map[string]struct{}{
	"student_name":       {},
	"admission_no":       {},
	"roll_no":            {},
	"father_name":        {},
	"mother_name":        {},
	"class_section":      {},
	"school_name":        {},
	"school_address":     {},
	"exam_name":          {},
	"academic_year":      {},
	"term":               {},
	"total_marks":        {},
	"obtained_marks":     {},
	"percentage":         {},
	"grade":              {},
	"remark":             {},
	"rank":               {},
	"generated_on":       {},
	"subject_rows":       {},
	"co_scholastic_rows": {},
	"grade_legend":       {},
}

// RenderContext bundles the entities a render reads.
type RenderContext struct {
	Card    *models.ReportCard
	Student *models.Student
	Section *models.Section
	School  *models.School
	Group   *models.ExamGroup
}

// RenderService substitutes report card values into board templates.
// Rendering is pure substitution over an allow list: values are HTML
// escaped, unknown placeholders in the template are rejected before any
// output is produced, and the same inputs always yield the same bytes.
type RenderService struct {
	templates    templateStore
	coScholastic coScholasticReader
	policies     renderPolicyReader
	students     studentStore
	marks        markStore
	cards        renderCardReader
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewRenderService constructs the render service.
func NewRenderService(templates templateStore, coScholastic coScholasticReader, policies renderPolicyReader, students studentStore, marks markStore, cards renderCardReader, metrics *MetricsService, logger *zap.Logger) *RenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderService{
		templates:    templates,
		coScholastic: coScholastic,
		policies:     policies,
		students:     students,
		marks:        marks,
		cards:        cards,
		metrics:      metrics,
		logger:       logger,
	}
}

// Render resolves the card's template and produces the final document.
// An empty templateID falls back to the school board's default template.
func (s *RenderService) Render(ctx context.Context, reportCardID, templateID string) (*dto.RenderResponse, error) {
	card, err := s.cards.GetByID(ctx, reportCardID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetByID(ctx, card.StudentID)
	if err != nil {
		return nil, err
	}
	section, err := s.students.GetSection(ctx, student.SectionID)
	if err != nil {
		return nil, err
	}
	school, err := s.students.GetSchool(ctx, card.SchoolID)
	if err != nil {
		return nil, err
	}
	group, err := s.marks.GetExamGroup(ctx, card.ExamGroupID)
	if err != nil {
		return nil, err
	}

	var tpl *models.BoardTemplate
	if templateID != "" {
		tpl, err = s.templates.GetByID(ctx, templateID)
	} else {
		tpl, err = s.templates.GetDefaultByBoard(ctx, school.BoardType)
	}
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "template is inactive")
	}

	rctx := RenderContext{Card: card, Student: student, Section: section, School: school, Group: group}
	content, warnings, err := s.renderBody(ctx, tpl, rctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RenderAttempt("rejected")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RenderAttempt("ok")
	}
	for _, w := range warnings {
		s.logger.Warn("render placeholder unresolved",
			zap.String("report_card_id", card.ID),
			zap.String("template_id", tpl.ID),
			zap.String("warning", w))
	}
	return &dto.RenderResponse{
		ReportCardID: card.ID,
		TemplateID:   tpl.ID,
		Content:      content,
		Warnings:     warnings,
	}, nil
}

// renderBody validates the template against the allow list, then
// substitutes every placeholder. Values missing at render time become
// empty strings and surface as warnings, never as errors.
func (s *RenderService) renderBody(ctx context.Context, tpl *models.BoardTemplate, rctx RenderContext) (string, []string, error) {
	allowed := allowedPlaceholders(tpl)
	for _, match := range placeholderPattern.FindAllStringSubmatch(tpl.Body, -1) {
		name := match[1]
		if _, ok := allowed[name]; !ok {
			return "", nil, appErrors.Clone(appErrors.ErrRenderSanitization,
				fmt.Sprintf("template %s references placeholder %q outside its allow list", tpl.ID, name))
		}
	}

	values, err := s.buildValues(ctx, tpl, rctx)
	if err != nil {
		return "", nil, err
	}

	var warnings []string
	content := placeholderPattern.ReplaceAllStringFunc(tpl.Body, func(raw string) string {
		name := placeholderPattern.FindStringSubmatch(raw)[1]
		value, ok := values[name]
		if !ok || value == "" {
			warnings = append(warnings, fmt.Sprintf("placeholder %q has no value", name))
			return ""
		}
		return value
	})
	sort.Strings(warnings)

	// Template CSS is carried through verbatim as a static stylesheet;
	// its semantics are never inspected.
	if tpl.CSS != "" {
		content = "<style>" + tpl.CSS + "</style>" + content
	}
	return content, warnings, nil
}

// buildValues assembles the substitution map. Markup-bearing fragments
// (subject rows, legend) are built from already-escaped cell values;
// every scalar is escaped here and nowhere else.
func (s *RenderService) buildValues(ctx context.Context, tpl *models.BoardTemplate, rctx RenderContext) (map[string]string, error) {
	card, student, group := rctx.Card, rctx.Student, rctx.Group

	values := map[string]string{
		"student_name":   html.EscapeString(student.FullName()),
		"admission_no":   html.EscapeString(student.AdmissionNo),
		"roll_no":        html.EscapeString(student.RollNo),
		"father_name":    html.EscapeString(student.FatherName),
		"mother_name":    html.EscapeString(student.MotherName),
		"exam_name":      html.EscapeString(group.Name),
		"academic_year":  html.EscapeString(group.AcademicYear),
		"term":           html.EscapeString(group.Term),
		"total_marks":    formatMarks(card.TotalMarks),
		"obtained_marks": formatMarks(card.ObtainedMarks),
		"percentage":     fmt.Sprintf("%.2f", card.Percentage),
		"grade":          html.EscapeString(card.Grade),
		"remark":         html.EscapeString(card.Remark),
		"generated_on":   card.GeneratedAt.Format("02 Jan 2006"),
	}
	if rctx.Section != nil {
		values["class_section"] = html.EscapeString(rctx.Section.ClassName + "-" + rctx.Section.Name)
	}
	if rctx.School != nil {
		values["school_name"] = html.EscapeString(rctx.School.Name)
		values["school_address"] = html.EscapeString(rctx.School.Address)
	}
	if card.Rank > 0 && tpl.Fields.ShowRank {
		values["rank"] = fmt.Sprintf("%d", card.Rank)
	}
	for key, val := range tpl.Fields.Header {
		values[key] = html.EscapeString(val)
	}

	values["subject_rows"] = subjectRows(card.Subjects)

	if record, err := s.coScholastic.Get(ctx, student.ID, group.Term, group.AcademicYear); err == nil {
		if record.Status == models.CoScholasticCompleted {
			values["co_scholastic_rows"] = coScholasticRows(record.Traits)
		}
	}

	if tpl.Fields.ShowLegend {
		policy, err := s.policies.GetByCode(ctx, card.PolicyCode)
		if err == nil {
			values["grade_legend"] = gradeLegend(policy)
		}
	}
	return values, nil
}

func allowedPlaceholders(tpl *models.BoardTemplate) map[string]struct{} {
	allowed := make(map[string]struct{}, len(basePlaceholders)+len(tpl.Fields.Placeholders))
	for name := range basePlaceholders {
		allowed[name] = struct{}{}
	}
	for _, name := range tpl.Fields.Placeholders {
		allowed[name] = struct{}{}
	}
	for name := range tpl.Fields.Header {
		allowed[name] = struct{}{}
	}
	return allowed
}

// subjectRows expands the per-subject table body. Row order follows the
// stored subject order so repeated renders emit identical bytes.
func subjectRows(subjects models.SubjectResultList) string {
	var b strings.Builder
	for _, subj := range subjects {
		obtained := formatMarks(subj.MarksObtained)
		if subj.IsAbsent {
			obtained = "AB"
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(subj.Subject),
			formatMarks(subj.MaxMarks),
			obtained,
			html.EscapeString(subj.Grade),
			html.EscapeString(subj.Remark))
	}
	return b.String()
}

// coScholasticRows renders trait rows in canonical trait order.
func coScholasticRows(traits models.TraitGrades) string {
	var b strings.Builder
	for _, key := range models.CoScholasticTraits {
		grade, ok := traits[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>",
			html.EscapeString(traitLabel(key)),
			html.EscapeString(grade))
	}
	return b.String()
}

// gradeLegend renders the policy band table, best band first.
func gradeLegend(policy *models.GradingPolicy) string {
	bands := make([]models.GradeBand, len(policy.Bands))
	copy(bands, policy.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })

	var b strings.Builder
	for _, band := range bands {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s - %s</td><td>%s</td></tr>",
			html.EscapeString(band.Grade),
			formatMarks(band.Min),
			formatMarks(band.Max),
			html.EscapeString(band.Remark))
	}
	return b.String()
}

func traitLabel(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatMarks(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
