package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// Repository defines persistence for deferred mutations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.SyncQueueEntry) error
	// ListPending returns pending entries for up to limit resources, ranked
	// by each resource's oldest entry (priority, then age). Every pending
	// entry of a selected resource rides along in enqueue order, so a batch
	// boundary can never reorder same-resource writes.
	ListPending(ctx context.Context, limit int) ([]models.SyncQueueEntry, error)
	// BlockedResourceKeys returns type:id keys whose earlier entries are
	// suspended or failed; later entries for those resources must wait.
	BlockedResourceKeys(ctx context.Context) (map[string]struct{}, error)
	Delete(ctx context.Context, entryID uuid.UUID) error
	RecordFailure(ctx context.Context, entryID uuid.UUID, attempts int, lastError string, final bool) error
	Suspend(ctx context.Context, entryID uuid.UUID, reason string) error
	Reactivate(ctx context.Context, entryID uuid.UUID) error
	ListByStatus(ctx context.Context, status enums.SyncEntryStatus, limit int) ([]models.SyncQueueEntry, error)
	FindEntry(ctx context.Context, entryID uuid.UUID) (*models.SyncQueueEntry, error)
	DepthByPriority(ctx context.Context) (map[enums.SyncPriority]int64, error)
}

// Applier is the store-side half of a flush: it reports the current server
// version of a resource and applies a payload to it.
type Applier interface {
	// CurrentVersion returns the server state and its updated_at.
	// gorm.ErrRecordNotFound means the resource has no server row yet.
	CurrentVersion(ctx context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, time.Time, error)
	Apply(ctx context.Context, resourceType string, resourceID uuid.UUID, payload json.RawMessage) error
}

// DeferredApplier lets the queue be constructed before its applier exists.
// The location recorder enqueues into the queue while the queue replays
// through the recorder, so one of the two has to bind late.
type DeferredApplier struct {
	inner Applier
}

// Bind installs the real applier. Must happen before the first flush.
func (d *DeferredApplier) Bind(applier Applier) {
	d.inner = applier
}

func (d *DeferredApplier) CurrentVersion(ctx context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, time.Time, error) {
	if d.inner == nil {
		return nil, time.Time{}, errors.New("applier not bound")
	}
	return d.inner.CurrentVersion(ctx, resourceType, resourceID)
}

func (d *DeferredApplier) Apply(ctx context.Context, resourceType string, resourceID uuid.UUID, payload json.RawMessage) error {
	if d.inner == nil {
		return errors.New("applier not bound")
	}
	return d.inner.Apply(ctx, resourceType, resourceID, payload)
}
