package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type mockLifecycleCardStore struct {
	mu   sync.Mutex
	byID map[string]models.ReportCard
}

func newMockLifecycleCardStore(cards ...models.ReportCard) *mockLifecycleCardStore {
	store := &mockLifecycleCardStore{byID: make(map[string]models.ReportCard)}
	for _, card := range cards {
		store.byID[card.ID] = card
	}
	return store
}

func (m *mockLifecycleCardStore) GetByID(ctx context.Context, id string) (*models.ReportCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if card, ok := m.byID[id]; ok {
		clone := card
		return &clone, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
}

func (m *mockLifecycleCardStore) GetByKey(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, card := range m.byID {
		if card.StudentID == studentID && card.ExamGroupID == examGroupID {
			clone := card
			return &clone, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
}

func (m *mockLifecycleCardStore) ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []models.ReportCard
	for _, card := range m.byID {
		if card.StudentID == studentID {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func (m *mockLifecycleCardStore) ListByExamGroup(ctx context.Context, examGroupID string) ([]models.ReportCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []models.ReportCard
	for _, card := range m.byID {
		if card.ExamGroupID == examGroupID {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func (m *mockLifecycleCardStore) Upsert(ctx context.Context, card *models.ReportCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if card.ID == "" {
		card.ID = "card-" + card.StudentID
	}
	m.byID[card.ID] = *card
	return nil
}

func (m *mockLifecycleCardStore) UpdateStatus(ctx context.Context, id string, from, to models.ReportStatus, publishedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.byID[id]
	if !ok || card.Status != from {
		return appErrors.Clone(appErrors.ErrIllegalTransition, "status changed concurrently")
	}
	card.Status = to
	if publishedAt != nil {
		card.PublishedAt = publishedAt
	}
	m.byID[id] = card
	return nil
}

type mockAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditStore) Insert(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditStore) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.AuditLog
	for _, entry := range m.entries {
		if entry.Resource == resource && entry.ResourceID != nil && *entry.ResourceID == resourceID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type mockRegenerator struct {
	called int
	card   *models.ReportCard
	err    error
}

func (m *mockRegenerator) Aggregate(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error) {
	m.called++
	if m.err != nil {
		return nil, m.err
	}
	clone := *m.card
	return &clone, nil
}

func adminActor() Actor {
	return Actor{UserID: "u-admin", Role: models.RoleAdmin, IP: "10.0.0.1", UserAgent: "test"}
}

func TestPublishStampsTimestampAndAudits(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusGenerated})
	audit := &mockAuditStore{}
	svc := NewLifecycleService(store, audit, nil, nil, nil, nil)

	card, err := svc.Publish(context.Background(), "rc-1", adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPublished, card.Status)
	require.NotNil(t, card.PublishedAt)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.AuditActionReportPublish, entry.Action)
	assert.Equal(t, "report_card", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-admin", *entry.UserID)
}

func TestPublishDraftRejected(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", Status: models.ReportStatusDraft})
	svc := NewLifecycleService(store, &mockAuditStore{}, nil, nil, nil, nil)

	_, err := svc.Publish(context.Background(), "rc-1", adminActor())
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_TRANSITION", appErrors.FromError(err).Code)
}

func TestPublishGroupSkipsFinalizedCards(t *testing.T) {
	store := newMockLifecycleCardStore(
		models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusGenerated},
		models.ReportCard{ID: "rc-2", StudentID: "s2", ExamGroupID: "eg-1", Status: models.ReportStatusPublished},
		models.ReportCard{ID: "rc-3", StudentID: "s3", ExamGroupID: "eg-1", Status: models.ReportStatusDraft},
	)
	svc := NewLifecycleService(store, &mockAuditStore{}, nil, nil, nil, nil)

	result, err := svc.PublishGroup(context.Background(), "eg-1", adminActor())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "s3", result.Failed[0].StudentID)
}

func TestDistributeRequiresPublished(t *testing.T) {
	store := newMockLifecycleCardStore(
		models.ReportCard{ID: "rc-1", Status: models.ReportStatusGenerated},
		models.ReportCard{ID: "rc-2", Status: models.ReportStatusPublished},
	)
	svc := NewLifecycleService(store, &mockAuditStore{}, nil, nil, nil, nil)

	_, err := svc.Distribute(context.Background(), "rc-1", adminActor())
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_TRANSITION", appErrors.FromError(err).Code)

	card, err := svc.Distribute(context.Background(), "rc-2", adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusDistributed, card.Status)
}

func TestRegeneratePublishedRequiresAdmin(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusPublished})
	svc := NewLifecycleService(store, &mockAuditStore{}, &mockRegenerator{}, nil, nil, nil)

	_, err := svc.Regenerate(context.Background(), "rc-1", "marks corrected", Actor{UserID: "u-t", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestRegeneratePublishedRequiresReason(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusPublished})
	svc := NewLifecycleService(store, &mockAuditStore{}, &mockRegenerator{}, nil, nil, nil)

	_, err := svc.Regenerate(context.Background(), "rc-1", "   ", adminActor())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestRegeneratePublishedAuditsReasonAndSnapshots(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusPublished, ObtainedMarks: 50})
	audit := &mockAuditStore{}
	regen := &mockRegenerator{card: &models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusGenerated, ObtainedMarks: 60}}
	svc := NewLifecycleService(store, audit, regen, nil, nil, nil)

	fresh, err := svc.Regenerate(context.Background(), "rc-1", "marks entry corrected", adminActor())
	require.NoError(t, err)
	assert.Equal(t, 60.0, fresh.ObtainedMarks)
	assert.Equal(t, 1, regen.called)

	// The card must be reverted to generated before re-aggregation.
	reverted, err := store.GetByID(context.Background(), "rc-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusGenerated, reverted.Status)
	assert.Nil(t, reverted.PublishedAt)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.AuditActionReportRegenerate, entry.Action)
	require.NotNil(t, entry.Reason)
	assert.Equal(t, "marks entry corrected", *entry.Reason)
	assert.NotEmpty(t, entry.OldValues)
	assert.NotEmpty(t, entry.NewValues)
}

func TestRegenerateGeneratedNeedsNoReason(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusGenerated})
	audit := &mockAuditStore{}
	regen := &mockRegenerator{card: &models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusGenerated}}
	svc := NewLifecycleService(store, audit, regen, nil, nil, nil)

	_, err := svc.Regenerate(context.Background(), "rc-1", "", Actor{UserID: "u-t", Role: models.RoleTeacher})
	require.NoError(t, err)
	require.Len(t, audit.entries, 1)
	assert.Nil(t, audit.entries[0].Reason)
}

func TestHistoryReturnsAuditTrail(t *testing.T) {
	store := newMockLifecycleCardStore(models.ReportCard{ID: "rc-1", StudentID: "s1", ExamGroupID: "eg-1", Status: models.ReportStatusGenerated})
	audit := &mockAuditStore{}
	svc := NewLifecycleService(store, audit, nil, nil, nil, nil)

	_, err := svc.Publish(context.Background(), "rc-1", adminActor())
	require.NoError(t, err)

	trail, err := svc.History(context.Background(), "rc-1", 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditActionReportPublish, trail[0].Action)
}
