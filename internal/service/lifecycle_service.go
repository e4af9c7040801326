package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type lifecycleCardStore interface {
	GetByID(ctx context.Context, id string) (*models.ReportCard, error)
	GetByKey(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error)
	ListByExamGroup(ctx context.Context, examGroupID string) ([]models.ReportCard, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error)
	Upsert(ctx context.Context, card *models.ReportCard) error
	UpdateStatus(ctx context.Context, id string, from, to models.ReportStatus, publishedAt *time.Time) error
}

type auditStore interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type regenerator interface {
	Aggregate(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error)
}

// Actor carries request identity into lifecycle mutations for auditing.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IP        string
	UserAgent string
}

const auditResourceReportCard = "report_card"

// LifecycleService owns report card status transitions. Every mutation
// is audited; publishing freezes the card and regeneration of a
// published card demands a reason.
type LifecycleService struct {
	cards      lifecycleCardStore
	audit      auditStore
	aggregator regenerator
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewLifecycleService constructs the lifecycle service.
func NewLifecycleService(cards lifecycleCardStore, audit auditStore, aggregator regenerator, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		cards:      cards,
		audit:      audit,
		aggregator: aggregator,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

// Get returns one report card by id.
func (s *LifecycleService) Get(ctx context.Context, id string) (*models.ReportCard, error) {
	return s.cards.GetByID(ctx, id)
}

// GetByKey returns a student's card in an exam group. Published and
// distributed cards are served from cache; mutable cards always hit
// storage. The bool reports whether the cache answered.
func (s *LifecycleService) GetByKey(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, bool, error) {
	key := ReportCardCacheKey(examGroupID, studentID)
	if s.cache != nil {
		var cached models.ReportCard
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}
	card, err := s.cards.GetByKey(ctx, studentID, examGroupID)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil && (card.Status == models.ReportStatusPublished || card.Status == models.ReportStatusDistributed) {
		if err := s.cache.Set(ctx, key, card, 0); err != nil {
			s.logger.Warn("report card cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return card, false, nil
}

// ListGroup returns every card of an exam group ordered by rank.
func (s *LifecycleService) ListGroup(ctx context.Context, examGroupID string) ([]models.ReportCard, error) {
	return s.cards.ListByExamGroup(ctx, examGroupID)
}

// ListForStudent returns a student's cards across exam groups.
func (s *LifecycleService) ListForStudent(ctx context.Context, studentID string) ([]models.ReportCard, error) {
	return s.cards.ListByStudent(ctx, studentID)
}

// Publish moves a generated card to published and stamps published_at.
func (s *LifecycleService) Publish(ctx context.Context, id string, actor Actor) (*models.ReportCard, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(card.Status, models.ReportStatusPublished); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.cards.UpdateStatus(ctx, id, card.Status, models.ReportStatusPublished, &now); err != nil {
		return nil, err
	}
	card.Status = models.ReportStatusPublished
	card.PublishedAt = &now

	s.recordAudit(ctx, actor, models.AuditActionReportPublish, card.ID, nil, card)
	s.invalidateCache(ctx, card.ExamGroupID)
	if s.metrics != nil {
		s.metrics.ReportCardPublished()
	}
	s.logger.Info("report card published",
		zap.String("report_card_id", card.ID),
		zap.String("student_id", card.StudentID),
		zap.String("actor_id", actor.UserID))
	return card, nil
}

// PublishGroup publishes every generated card of an exam group. Cards
// already past generated are left alone; draft cards fail the batch.
func (s *LifecycleService) PublishGroup(ctx context.Context, examGroupID string, actor Actor) (*models.BatchResult, error) {
	cards, err := s.cards.ListByExamGroup(ctx, examGroupID)
	if err != nil {
		return nil, err
	}
	result := &models.BatchResult{ExamGroupID: examGroupID}
	for i := range cards {
		card := cards[i]
		if card.Status == models.ReportStatusPublished || card.Status == models.ReportStatusDistributed {
			continue
		}
		if _, err := s.Publish(ctx, card.ID, actor); err != nil {
			result.Failed = append(result.Failed, models.BatchFailure{StudentID: card.StudentID, Reason: err.Error()})
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// Distribute marks a published card as handed out to the student.
func (s *LifecycleService) Distribute(ctx context.Context, id string, actor Actor) (*models.ReportCard, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(card.Status, models.ReportStatusDistributed); err != nil {
		return nil, err
	}
	if err := s.cards.UpdateStatus(ctx, id, card.Status, models.ReportStatusDistributed, nil); err != nil {
		return nil, err
	}
	card.Status = models.ReportStatusDistributed

	s.recordAudit(ctx, actor, models.AuditActionReportDistribute, card.ID, nil, card)
	s.invalidateCache(ctx, card.ExamGroupID)
	return card, nil
}

// Regenerate re-aggregates a card in place. For generated cards this is
// a plain re-run; for published cards it is an administrative override
// that requires a reason and is fully audited with before and after
// snapshots.
func (s *LifecycleService) Regenerate(ctx context.Context, id, reason string, actor Actor) (*models.ReportCard, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wasPublished := card.Status == models.ReportStatusPublished || card.Status == models.ReportStatusDistributed
	if wasPublished {
		if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only an admin may regenerate a published report card")
		}
		if strings.TrimSpace(reason) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required to regenerate a published report card")
		}
		// Drop the card back to generated so the aggregator accepts it.
		reverted := *card
		reverted.Status = models.ReportStatusGenerated
		reverted.PublishedAt = nil
		if err := s.cards.Upsert(ctx, &reverted); err != nil {
			return nil, err
		}
	}

	fresh, err := s.aggregator.Aggregate(ctx, card.StudentID, card.ExamGroupID)
	if err != nil {
		return nil, err
	}

	var auditReason *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		auditReason = &trimmed
	}
	s.recordAuditWithReason(ctx, actor, models.AuditActionReportRegenerate, card.ID, auditReason, card, fresh)
	s.invalidateCache(ctx, card.ExamGroupID)
	s.logger.Info("report card regenerated",
		zap.String("report_card_id", card.ID),
		zap.Bool("was_published", wasPublished),
		zap.String("actor_id", actor.UserID))
	return fresh, nil
}

// History returns the audit trail of one report card.
func (s *LifecycleService) History(ctx context.Context, id string, limit int) ([]models.AuditLog, error) {
	return s.audit.ListByResource(ctx, auditResourceReportCard, id, limit)
}

func (s *LifecycleService) checkTransition(from, to models.ReportStatus) error {
	if !from.CanTransition(to) {
		return appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("cannot move report card from %s to %s", from, to))
	}
	return nil
}

func (s *LifecycleService) recordAudit(ctx context.Context, actor Actor, action, resourceID string, before, after interface{}) {
	s.recordAuditWithReason(ctx, actor, action, resourceID, nil, before, after)
}

func (s *LifecycleService) recordAuditWithReason(ctx context.Context, actor Actor, action, resourceID string, reason *string, before, after interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   auditResourceReportCard,
		ResourceID: &resourceID,
		Reason:     reason,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if before != nil {
		if data, err := json.Marshal(before); err == nil {
			entry.OldValues = data
		}
	}
	if after != nil {
		if data, err := json.Marshal(after); err == nil {
			entry.NewValues = data
		}
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		// Audit failures never roll back the transition itself.
		s.logger.Error("audit insert failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *LifecycleService) invalidateCache(ctx context.Context, examGroupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ReportCardCachePattern(examGroupID)); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("exam_group_id", examGroupID), zap.Error(err))
	}
}
