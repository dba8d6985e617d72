package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueApplier replays queued location batches against the live recorder.
// The sync queue calls CurrentVersion to detect divergence and Apply to land
// a winning payload.
type QueueApplier struct {
	recorder *Recorder
	store    DeliveryStore
}

// NewQueueApplier builds the sync-queue applier for location resources.
func NewQueueApplier(recorder *Recorder, store DeliveryStore) (*QueueApplier, error) {
	if recorder == nil {
		return nil, fmt.Errorf("recorder required")
	}
	if store == nil {
		return nil, fmt.Errorf("delivery store required")
	}
	return &QueueApplier{recorder: recorder, store: store}, nil
}

// CurrentVersion reports the last accepted position for the order. The
// cached RecordedAt doubles as the server-side updated_at for conflict
// detection.
func (a *QueueApplier) CurrentVersion(ctx context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, time.Time, error) {
	pos, err := a.recorder.DriverPosition(ctx, resourceID)
	if err != nil {
		return nil, time.Time{}, gorm.ErrRecordNotFound
	}
	raw, err := json.Marshal(pos)
	if err != nil {
		return nil, time.Time{}, err
	}
	return raw, pos.RecordedAt, nil
}

// Apply replays one queued sample through the online path.
func (a *QueueApplier) Apply(ctx context.Context, resourceType string, resourceID uuid.UUID, payload json.RawMessage) error {
	var sample LocationSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return fmt.Errorf("decode queued sample: %w", err)
	}

	delivery, _, err := a.store.FindActiveByOrder(ctx, resourceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Delivery finished while the device was offline; the stale
			// sample has nothing left to update.
			return nil
		}
		return fmt.Errorf("load delivery: %w", err)
	}
	if delivery.DriverID == nil {
		return nil
	}

	_, err = a.recorder.RecordSample(ctx, RecordInput{
		OrderID:  resourceID,
		DriverID: *delivery.DriverID,
		Online:   true,
		Sample:   sample,
	})
	return err
}
