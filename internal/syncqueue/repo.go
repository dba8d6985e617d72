package syncqueue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

const priorityOrderExpr = "CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END, enqueued_at ASC"

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sync queue repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, entry *models.SyncQueueEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListPending(ctx context.Context, limit int) ([]models.SyncQueueEntry, error) {
	// Pick resources by their oldest pending entry, then take every pending
	// entry of the picked resources. Limiting rows directly would let a later
	// high-priority entry slip into a batch ahead of an earlier sibling left
	// outside the cut.
	var frontier []models.SyncQueueEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.SyncEntryStatusPending).
		Where(`NOT EXISTS (
			SELECT 1 FROM sync_queue_entries earlier
			WHERE earlier.resource_type = sync_queue_entries.resource_type
			AND earlier.resource_id = sync_queue_entries.resource_id
			AND earlier.status = ?
			AND earlier.enqueued_at < sync_queue_entries.enqueued_at)`,
			enums.SyncEntryStatusPending).
		Order(priorityOrderExpr).
		Limit(limit).
		Find(&frontier).Error
	if err != nil {
		return nil, err
	}
	if len(frontier) == 0 {
		return nil, nil
	}

	entries := make([]models.SyncQueueEntry, 0, len(frontier))
	for _, head := range frontier {
		var group []models.SyncQueueEntry
		err := r.db.WithContext(ctx).
			Where("status = ? AND resource_type = ? AND resource_id = ?",
				enums.SyncEntryStatusPending, head.ResourceType, head.ResourceID).
			Order("enqueued_at ASC").
			Find(&group).Error
		if err != nil {
			return nil, err
		}
		entries = append(entries, group...)
	}
	return entries, nil
}

func (r *repository) BlockedResourceKeys(ctx context.Context) (map[string]struct{}, error) {
	var entries []models.SyncQueueEntry
	err := r.db.WithContext(ctx).
		Select("resource_type", "resource_id").
		Where("status IN ?", []enums.SyncEntryStatus{enums.SyncEntryStatusSuspended, enums.SyncEntryStatusFailed}).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		keys[resourceKey(entry.ResourceType, entry.ResourceID)] = struct{}{}
	}
	return keys, nil
}

func (r *repository) Delete(ctx context.Context, entryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", entryID).
		Delete(&models.SyncQueueEntry{}).Error
}

func (r *repository) RecordFailure(ctx context.Context, entryID uuid.UUID, attempts int, lastError string, final bool) error {
	updates := map[string]any{
		"attempt_count": attempts,
		"last_error":    lastError,
	}
	if final {
		updates["status"] = enums.SyncEntryStatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&models.SyncQueueEntry{}).
		Where("id = ?", entryID).
		Updates(updates).Error
}

func (r *repository) Suspend(ctx context.Context, entryID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":     enums.SyncEntryStatusSuspended,
			"last_error": reason,
		}).Error
}

func (r *repository) Reactivate(ctx context.Context, entryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":     enums.SyncEntryStatusPending,
			"last_error": nil,
		}).Error
}

func (r *repository) ListByStatus(ctx context.Context, status enums.SyncEntryStatus, limit int) ([]models.SyncQueueEntry, error) {
	var entries []models.SyncQueueEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("enqueued_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindEntry(ctx context.Context, entryID uuid.UUID) (*models.SyncQueueEntry, error) {
	var entry models.SyncQueueEntry
	err := r.db.WithContext(ctx).
		Where("id = ?", entryID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) DepthByPriority(ctx context.Context) (map[enums.SyncPriority]int64, error) {
	type row struct {
		Priority enums.SyncPriority
		Total    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.SyncQueueEntry{}).
		Select("priority, COUNT(*) AS total").
		Where("status = ?", enums.SyncEntryStatusPending).
		Group("priority").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	depth := make(map[enums.SyncPriority]int64, len(rows))
	for _, r := range rows {
		depth[r.Priority] = r.Total
	}
	return depth, nil
}

func resourceKey(resourceType string, resourceID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", resourceType, resourceID)
}
