package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/config"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/metrics"
)

// ResourceDeliveryLocation is the resource type used for queued driver
// position batches.
const ResourceDeliveryLocation = "delivery_location"

// EnqueueInput is one deferred mutation.
type EnqueueInput struct {
	DeviceID      string
	ResourceType  string
	ResourceID    uuid.UUID
	Payload       json.RawMessage
	Priority      enums.SyncPriority
	Strategy      enums.ConflictStrategy
	BaseUpdatedAt time.Time
}

// FlushStats summarizes one flush pass.
type FlushStats struct {
	Applied   int
	Discarded int
	Merged    int
	Suspended int
	Failed    int
	Skipped   int
}

// Service is the durable queue for writes made while offline or rate
// limited. Same-resource entries apply in enqueue order; different resources
// carry no ordering guarantee.
type Service interface {
	Enqueue(ctx context.Context, input EnqueueInput) (*models.SyncQueueEntry, error)
	EnqueueLocation(ctx context.Context, deviceID string, orderID uuid.UUID, payload json.RawMessage, baseUpdatedAt time.Time) error
	Flush(ctx context.Context, online bool) (*FlushStats, error)
	ListSuspended(ctx context.Context, limit int) ([]models.SyncQueueEntry, error)
	ListFailed(ctx context.Context, limit int) ([]models.SyncQueueEntry, error)
	// ResolveSuspended settles a manual-strategy entry: apply it as queued
	// or discard it.
	ResolveSuspended(ctx context.Context, entryID uuid.UUID, apply bool) error
}

type service struct {
	repo    Repository
	applier Applier
	cfg     config.SyncQueueConfig
	metrics *metrics.SyncQueueMetrics
	logg    *logger.Logger
}

// NewService wires the queue.
func NewService(
	repo Repository,
	applier Applier,
	cfg config.SyncQueueConfig,
	queueMetrics *metrics.SyncQueueMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if applier == nil {
		return nil, fmt.Errorf("applier required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.FlushBatchSize <= 0 {
		cfg.FlushBatchSize = 100
	}
	return &service{
		repo:    repo,
		applier: applier,
		cfg:     cfg,
		metrics: queueMetrics,
		logg:    logg,
	}, nil
}

func (s *service) Enqueue(ctx context.Context, input EnqueueInput) (*models.SyncQueueEntry, error) {
	if input.ResourceType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource type required")
	}
	if input.ResourceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id required")
	}
	if len(input.Payload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload required")
	}
	if !input.Priority.IsValid() {
		input.Priority = enums.SyncPriorityNormal
	}
	if !input.Strategy.IsValid() {
		input.Strategy = enums.ConflictStrategyTimestampWins
	}

	entry := &models.SyncQueueEntry{
		DeviceID:      input.DeviceID,
		ResourceType:  input.ResourceType,
		ResourceID:    input.ResourceID,
		Payload:       input.Payload,
		Priority:      input.Priority,
		Strategy:      input.Strategy,
		Status:        enums.SyncEntryStatusPending,
		BaseUpdatedAt: input.BaseUpdatedAt,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue entry")
	}
	s.publishDepth(ctx)
	return entry, nil
}

func (s *service) EnqueueLocation(ctx context.Context, deviceID string, orderID uuid.UUID, payload json.RawMessage, baseUpdatedAt time.Time) error {
	_, err := s.Enqueue(ctx, EnqueueInput{
		DeviceID:      deviceID,
		ResourceType:  ResourceDeliveryLocation,
		ResourceID:    orderID,
		Payload:       payload,
		Priority:      enums.SyncPriorityHigh,
		Strategy:      enums.ConflictStrategyTimestampWins,
		BaseUpdatedAt: baseUpdatedAt,
	})
	return err
}

// Flush drains pending entries. A no-op while offline. Entries whose resource
// has an earlier suspended or failed sibling are skipped until the operator
// clears the blockage.
func (s *service) Flush(ctx context.Context, online bool) (*FlushStats, error) {
	stats := &FlushStats{}
	if !online {
		return stats, nil
	}

	blocked, err := s.repo.BlockedResourceKeys(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list blocked resources")
	}
	entries, err := s.repo.ListPending(ctx, s.cfg.FlushBatchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending entries")
	}

	// Group per resource so same-resource entries always apply in enqueue
	// order, even when their priorities differ.
	groups := make(map[string][]models.SyncQueueEntry)
	order := make([]string, 0)
	for _, entry := range entries {
		key := resourceKey(entry.ResourceType, entry.ResourceID)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry)
	}
	for _, key := range order {
		sort.SliceStable(groups[key], func(i, j int) bool {
			return groups[key][i].EnqueuedAt.Before(groups[key][j].EnqueuedAt)
		})
	}

	for _, key := range order {
		if _, isBlocked := blocked[key]; isBlocked {
			stats.Skipped += len(groups[key])
			continue
		}
		for _, entry := range groups[key] {
			if err := s.flushOne(ctx, &entry, stats); err != nil {
				// This resource is now blocked; later entries wait.
				blocked[key] = struct{}{}
				stats.Skipped += remainingAfter(groups[key], entry.ID)
				break
			}
		}
	}

	s.publishDepth(ctx)
	return stats, nil
}

// flushOne applies a single entry. A returned error means the entry did not
// settle and its resource must block.
func (s *service) flushOne(ctx context.Context, entry *models.SyncQueueEntry, stats *FlushStats) error {
	payload, conflict, err := s.resolvePayload(ctx, entry)
	if err != nil {
		return s.noteFailure(ctx, entry, stats, err)
	}
	if conflict != "" && s.metrics != nil {
		s.metrics.IncConflict(string(conflict))
	}

	switch {
	case conflict == enums.ConflictStrategyManual:
		if err := s.repo.Suspend(ctx, entry.ID, "conflicting server state needs operator review"); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "suspend entry")
		}
		stats.Suspended++
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"entry_id": entry.ID.String(),
				"resource": resourceKey(entry.ResourceType, entry.ResourceID),
			})
			s.logg.Warn(logCtx, "sync entry suspended for manual resolution")
		}
		return fmt.Errorf("entry suspended")
	case payload == nil:
		// The conflict strategy discarded the client write.
		if err := s.repo.Delete(ctx, entry.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete discarded entry")
		}
		stats.Discarded++
		return nil
	}

	remaining := s.cfg.MaxAttempts - entry.AttemptCount
	if remaining < 1 {
		remaining = 1
	}
	backoff := retry.WithMaxRetries(uint64(remaining-1),
		retry.WithCappedDuration(s.cfg.MaxBackoff, retry.NewExponential(s.cfg.InitialBackoff)))
	attempts := 0
	applyErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := s.applier.Apply(ctx, entry.ResourceType, entry.ResourceID, payload); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if applyErr != nil {
		entry.AttemptCount += attempts - 1
		return s.noteFailure(ctx, entry, stats, fmt.Errorf("apply after %d attempts: %w", attempts, applyErr))
	}

	if err := s.repo.Delete(ctx, entry.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete applied entry")
	}
	if conflict == enums.ConflictStrategyMerge {
		stats.Merged++
	}
	stats.Applied++
	if s.metrics != nil {
		s.metrics.IncApplied(entry.ResourceType)
	}
	return nil
}

// resolvePayload detects divergence from the queued base version and applies
// the entry's conflict strategy. A nil payload with no error means the client
// write lost and the entry should be discarded. The returned strategy is
// non-empty only when a conflict was actually detected.
func (s *service) resolvePayload(ctx context.Context, entry *models.SyncQueueEntry) (json.RawMessage, enums.ConflictStrategy, error) {
	serverState, serverUpdatedAt, err := s.applier.CurrentVersion(ctx, entry.ResourceType, entry.ResourceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return entry.Payload, "", nil
		}
		return nil, "", fmt.Errorf("read server version: %w", err)
	}
	if !serverUpdatedAt.After(entry.BaseUpdatedAt) {
		return entry.Payload, "", nil
	}

	switch entry.Strategy {
	case enums.ConflictStrategyServerWins:
		return nil, entry.Strategy, nil
	case enums.ConflictStrategyClientWins:
		return entry.Payload, entry.Strategy, nil
	case enums.ConflictStrategyTimestampWins:
		if entry.EnqueuedAt.After(serverUpdatedAt) {
			return entry.Payload, entry.Strategy, nil
		}
		return nil, entry.Strategy, nil
	case enums.ConflictStrategyMerge:
		merged, err := mergeJSON(serverState, entry.Payload)
		if err != nil {
			return nil, entry.Strategy, fmt.Errorf("merge payloads: %w", err)
		}
		return merged, entry.Strategy, nil
	case enums.ConflictStrategyManual:
		return nil, entry.Strategy, nil
	}
	return nil, "", fmt.Errorf("unknown conflict strategy %q", entry.Strategy)
}

func (s *service) noteFailure(ctx context.Context, entry *models.SyncQueueEntry, stats *FlushStats, cause error) error {
	attempts := entry.AttemptCount + 1
	final := attempts >= s.cfg.MaxAttempts
	if err := s.repo.RecordFailure(ctx, entry.ID, attempts, cause.Error(), final); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failure")
	}
	if final {
		stats.Failed++
		if s.metrics != nil {
			s.metrics.IncFailed(entry.ResourceType)
		}
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"entry_id": entry.ID.String(),
			"attempts": attempts,
			"final":    final,
		})
		s.logg.Error(logCtx, "sync entry apply failed", cause)
	}
	return cause
}

func (s *service) ListSuspended(ctx context.Context, limit int) ([]models.SyncQueueEntry, error) {
	return s.listByStatus(ctx, enums.SyncEntryStatusSuspended, limit)
}

func (s *service) ListFailed(ctx context.Context, limit int) ([]models.SyncQueueEntry, error) {
	return s.listByStatus(ctx, enums.SyncEntryStatusFailed, limit)
}

func (s *service) listByStatus(ctx context.Context, status enums.SyncEntryStatus, limit int) ([]models.SyncQueueEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	entries, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list entries")
	}
	return entries, nil
}

func (s *service) ResolveSuspended(ctx context.Context, entryID uuid.UUID, apply bool) error {
	if entryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entry id required")
	}
	entry, err := s.repo.FindEntry(ctx, entryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "entry not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entry")
	}
	if entry.Status != enums.SyncEntryStatusSuspended {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("entry is %s, only suspended entries can be resolved", entry.Status))
	}

	if !apply {
		if err := s.repo.Delete(ctx, entryID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard entry")
		}
		return nil
	}
	if err := s.applier.Apply(ctx, entry.ResourceType, entry.ResourceID, entry.Payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply resolved entry")
	}
	if err := s.repo.Delete(ctx, entryID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete resolved entry")
	}
	if s.metrics != nil {
		s.metrics.IncApplied(entry.ResourceType)
	}
	return nil
}

func (s *service) publishDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	depth, err := s.repo.DepthByPriority(ctx)
	if err != nil {
		return
	}
	for _, priority := range []enums.SyncPriority{enums.SyncPriorityHigh, enums.SyncPriorityNormal, enums.SyncPriorityLow} {
		s.metrics.SetDepth(string(priority), int(depth[priority]))
	}
}

// mergeJSON overlays client fields onto the server object. Fields present in
// both with different values stay at the server value; only additions from
// the client land. Deterministic so retries converge.
func mergeJSON(server, client json.RawMessage) (json.RawMessage, error) {
	serverMap := map[string]any{}
	if len(server) > 0 {
		if err := json.Unmarshal(server, &serverMap); err != nil {
			return nil, err
		}
	}
	clientMap := map[string]any{}
	if err := json.Unmarshal(client, &clientMap); err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(serverMap)+len(clientMap))
	for key, value := range serverMap {
		merged[key] = value
	}
	for key, value := range clientMap {
		if _, taken := merged[key]; !taken {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

func remainingAfter(entries []models.SyncQueueEntry, failedID uuid.UUID) int {
	for i, entry := range entries {
		if entry.ID == failedID {
			return len(entries) - i - 1
		}
	}
	return 0
}
