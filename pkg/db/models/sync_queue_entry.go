package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// SyncQueueEntry is a deferred mutation queued by a driver device while
// offline or rate-limited. Entries for the same resource apply in enqueue
// order; applied entries are deleted, failed ones are retained for
// inspection.
type SyncQueueEntry struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceID      string                 `gorm:"column:device_id;type:text;not null"`
	ResourceType  string                 `gorm:"column:resource_type;type:text;not null"`
	ResourceID    uuid.UUID              `gorm:"column:resource_id;type:uuid;not null"`
	Payload       json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	Priority      enums.SyncPriority     `gorm:"column:priority;type:sync_priority;not null;default:'normal'"`
	Strategy      enums.ConflictStrategy `gorm:"column:strategy;type:conflict_strategy;not null;default:'timestamp_wins'"`
	Status        enums.SyncEntryStatus  `gorm:"column:status;type:sync_entry_status;not null;default:'pending'"`
	AttemptCount  int                    `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                `gorm:"column:last_error"`
	BaseUpdatedAt time.Time              `gorm:"column:base_updated_at;not null"`
	EnqueuedAt    time.Time              `gorm:"column:enqueued_at;autoCreateTime"`
}

// BeforeCreate assigns the id client-side. The sqlite path used for dev and
// tests has no gen_random_uuid, so relying on the column default would insert
// zero-value ids there and break dedup keyed on the entry id.
func (e *SyncQueueEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
