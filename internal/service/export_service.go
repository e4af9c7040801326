package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/models"
	"github.com/campuskit/reportcard-api/pkg/export"
	"github.com/campuskit/reportcard-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders marks registers from aggregated report cards and
// persists the artifacts behind signed download links.
type ExportService struct {
	cards   reportCardStore
	marks   markStore
	student studentStore
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(cards reportCardStore, marks markStore, student studentStore, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		cards:   cards,
		marks:   marks,
		student: student,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate renders the marks register for a finished bulk run and stores it.
func (s *ExportService) Generate(ctx context.Context, job *models.GenerationJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	format := job.Params.Format
	if format == "" {
		format = models.ExportFormatCSV
	}

	dataset, title, err := s.buildRegister(ctx, job.Params.ExamGroupID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// buildRegister flattens every card of the exam group into rows, ordered
// by rank, one subject column set per row for portability.
func (s *ExportService) buildRegister(ctx context.Context, examGroupID string) (export.Dataset, string, error) {
	group, err := s.marks.GetExamGroup(ctx, examGroupID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	cards, err := s.cards.ListByExamGroup(ctx, examGroupID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.StudentID)
	}
	students, err := s.student.GetByIDs(ctx, ids)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Rank", "Roll No", "Student", "Total", "Obtained", "Percentage", "Grade", "Remark", "Status"}
	rows := make([]map[string]string, 0, len(cards))
	for _, card := range cards {
		name := card.StudentID
		rollNo := ""
		if student, ok := students[card.StudentID]; ok {
			name = student.FullName()
			rollNo = student.RollNo
		}
		rows = append(rows, map[string]string{
			"Rank":       fmt.Sprintf("%d", card.Rank),
			"Roll No":    rollNo,
			"Student":    name,
			"Total":      fmt.Sprintf("%.0f", card.TotalMarks),
			"Obtained":   fmt.Sprintf("%.0f", card.ObtainedMarks),
			"Percentage": fmt.Sprintf("%.2f", card.Percentage),
			"Grade":      card.Grade,
			"Remark":     card.Remark,
			"Status":     string(card.Status),
		})
	}
	title := fmt.Sprintf("Marks Register %s", group.Name)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.GenerationJob, format models.ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	groupPart := sanitizeFilename(job.Params.ExamGroupID)
	return fmt.Sprintf("register_%s_%s.%s", groupPart, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
