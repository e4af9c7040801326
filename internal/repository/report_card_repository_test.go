package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func reportCardRows(cards ...models.ReportCard) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "exam_group_id", "school_id", "template_id", "policy_code",
		"total_marks", "obtained_marks", "percentage", "grade", "remark", "rank",
		"subjects", "status", "generated_at", "published_at", "created_at", "updated_at",
	})
	for _, c := range cards {
		subjects, _ := c.Subjects.Value()
		rows.AddRow(c.ID, c.StudentID, c.ExamGroupID, c.SchoolID, c.TemplateID, c.PolicyCode,
			c.TotalMarks, c.ObtainedMarks, c.Percentage, c.Grade, c.Remark, c.Rank,
			subjects, string(c.Status), c.GeneratedAt, c.PublishedAt, c.CreatedAt, c.UpdatedAt)
	}
	return rows
}

func TestReportCardRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_cards")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	card := &models.ReportCard{
		StudentID:     "stu-1",
		ExamGroupID:   "eg-1",
		SchoolID:      "sch-1",
		PolicyCode:    models.PolicyCBSETraditional,
		TotalMarks:    500,
		ObtainedMarks: 431,
		Percentage:    86.2,
		Grade:         "A",
		Remark:        "Excellent",
		Subjects: models.SubjectResultList{
			{Subject: "Mathematics", MaxMarks: 100, MarksObtained: 92, Grade: "A+"},
		},
		Status: models.ReportStatusGenerated,
	}
	require.NoError(t, repo.Upsert(context.Background(), card))
	require.NotEmpty(t, card.ID)
	require.False(t, card.GeneratedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryUpsertCarriesPublishedAt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	// A regenerated card writes its nil publish timestamp back to the
	// row instead of leaving the old value behind.
	mock.ExpectExec(`(?s)INSERT INTO report_cards.+published_at = EXCLUDED\.published_at`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	card := &models.ReportCard{
		ID:          "rc-1",
		StudentID:   "stu-1",
		ExamGroupID: "eg-1",
		SchoolID:    "sch-1",
		PolicyCode:  models.PolicyCBSETraditional,
		Status:      models.ReportStatusGenerated,
		PublishedAt: nil,
	}
	require.NoError(t, repo.Upsert(context.Background(), card))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryGetByKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	now := time.Now()
	card := models.ReportCard{
		ID: "rc-1", StudentID: "stu-1", ExamGroupID: "eg-1", SchoolID: "sch-1",
		PolicyCode: models.PolicyStateSA, TotalMarks: 600, ObtainedMarks: 480,
		Percentage: 80, Grade: "A", Remark: "Excellent Progress", Rank: 2,
		Status: models.ReportStatusGenerated, GeneratedAt: now, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery("SELECT .+ FROM report_cards WHERE student_id = \\$1 AND exam_group_id = \\$2").
		WithArgs("stu-1", "eg-1").
		WillReturnRows(reportCardRows(card))

	fetched, err := repo.GetByKey(context.Background(), "stu-1", "eg-1")
	require.NoError(t, err)
	require.Equal(t, "rc-1", fetched.ID)
	require.Equal(t, 2, fetched.Rank)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryGetByKeyNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectQuery("SELECT .+ FROM report_cards WHERE student_id = \\$1 AND exam_group_id = \\$2").
		WithArgs("stu-9", "eg-1").
		WillReturnRows(reportCardRows())

	_, err := repo.GetByKey(context.Background(), "stu-9", "eg-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryUpdateStatusGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_cards SET status = $1")).
		WithArgs(models.ReportStatusPublished, sqlmock.AnyArg(), sqlmock.AnyArg(), "rc-1", models.ReportStatusGenerated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	require.NoError(t, repo.UpdateStatus(context.Background(), "rc-1", models.ReportStatusGenerated, models.ReportStatusPublished, &now))

	// Guard refuses when the row already left the expected status.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_cards SET status = $1")).
		WithArgs(models.ReportStatusPublished, sqlmock.AnyArg(), sqlmock.AnyArg(), "rc-1", models.ReportStatusGenerated).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "rc-1", models.ReportStatusGenerated, models.ReportStatusPublished, &now)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
