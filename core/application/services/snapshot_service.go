package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
	"github.com/carlosrabelo/arava/core/domain/ports"
	domainservices "github.com/carlosrabelo/arava/core/domain/services"
	"github.com/carlosrabelo/arava/core/infrastructure/metrics"
)

// ConfigTransfer is the slice of the automation service the snapshot
// workflows need: pulling and pushing full configurations.
type ConfigTransfer interface {
	RetrieveConfiguration(ctx context.Context, device entities.Device, user *entities.UserCredentials) (string, error)
	PushConfiguration(ctx context.Context, device entities.Device, user *entities.UserCredentials, content string) error
}

// BackupParams controls one backup capture.
type BackupParams struct {
	Type        entities.SnapshotType
	TriggeredBy string
	CreatedBy   string
	AutoCompare bool
}

// RollbackParams controls one rollback workflow.
type RollbackParams struct {
	OperationLogID        string
	ExecutedBy            string
	CreateBackup          bool
	ValidateAfterRollback bool
	ForceRollback         bool
}

// SnapshotService owns the snapshot, diff and rollback workflows.
type SnapshotService struct {
	devices  ports.DeviceRepository
	store    ports.SnapshotStore
	transfer ConfigTransfer
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewSnapshotService wires the snapshot workflows. m may be nil.
func NewSnapshotService(devices ports.DeviceRepository, store ports.SnapshotStore, transfer ConfigTransfer, m *metrics.Metrics, log *zap.Logger) *SnapshotService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotService{
		devices:  devices,
		store:    store,
		transfer: transfer,
		metrics:  m,
		log:      log,
	}
}

// Backup captures the running configuration as a new snapshot. With
// AutoCompare set, the diff against the device's previous latest
// snapshot is computed and persisted alongside.
func (s *SnapshotService) Backup(ctx context.Context, deviceID uuid.UUID, user *entities.UserCredentials, params BackupParams) (entities.ConfigSnapshot, *entities.ConfigDiff, error) {
	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return entities.ConfigSnapshot{}, nil, err
	}
	if params.Type == "" {
		params.Type = entities.SnapshotBackup
	}

	// The prior latest must be captured before the new snapshot is
	// saved, or the new one would compare against itself.
	var prior entities.ConfigSnapshot
	priorFound := false
	if params.AutoCompare {
		prior, priorFound, err = s.store.LatestSnapshot(ctx, deviceID)
		if err != nil {
			return entities.ConfigSnapshot{}, nil, fmt.Errorf("device %s: latest snapshot: %w", device.Hostname, err)
		}
	}

	content, err := s.transfer.RetrieveConfiguration(ctx, device, user)
	if err != nil {
		return entities.ConfigSnapshot{}, nil, err
	}

	snapshot := entities.NewConfigSnapshot(deviceID, params.Type, content, params.CreatedBy, params.TriggeredBy)
	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		return entities.ConfigSnapshot{}, nil, fmt.Errorf("device %s: save snapshot: %w", device.Hostname, err)
	}
	s.metrics.SnapshotTaken()
	s.log.Info("configuration snapshot captured",
		zap.String("device", device.Hostname),
		zap.String("snapshot", snapshot.ID.String()),
		zap.String("type", string(snapshot.Type)),
		zap.Int("bytes", snapshot.Size()))

	if !params.AutoCompare || !priorFound {
		return snapshot, nil, nil
	}
	diff, err := s.compare(ctx, prior, snapshot, domainservices.DefaultDiffOptions())
	if err != nil {
		return snapshot, nil, err
	}
	return snapshot, &diff, nil
}

// Compare diffs two stored snapshots. The result is cached per
// snapshot pair; cached diffs are served without recomputation.
// Checksums are verified at read time.
func (s *SnapshotService) Compare(ctx context.Context, beforeID, afterID uuid.UUID, opts domainservices.DiffOptions) (entities.ConfigDiff, error) {
	if cached, ok, err := s.store.GetDiff(ctx, beforeID, afterID); err != nil {
		return entities.ConfigDiff{}, fmt.Errorf("diff lookup: %w", err)
	} else if ok {
		return cached, nil
	}

	before, err := s.store.GetSnapshot(ctx, beforeID)
	if err != nil {
		return entities.ConfigDiff{}, err
	}
	after, err := s.store.GetSnapshot(ctx, afterID)
	if err != nil {
		return entities.ConfigDiff{}, err
	}
	return s.compare(ctx, before, after, opts)
}

func (s *SnapshotService) compare(ctx context.Context, before, after entities.ConfigSnapshot, opts domainservices.DiffOptions) (entities.ConfigDiff, error) {
	if err := before.Verify(); err != nil {
		return entities.ConfigDiff{}, err
	}
	if err := after.Verify(); err != nil {
		return entities.ConfigDiff{}, err
	}

	result := domainservices.UnifiedDiff(
		"snapshot/"+before.ID.String(),
		"snapshot/"+after.ID.String(),
		before.Content, after.Content, opts)

	diff := entities.ConfigDiff{
		ID:               uuid.New(),
		BeforeSnapshotID: before.ID,
		AfterSnapshotID:  after.ID,
		UnifiedDiff:      result.UnifiedDiff,
		AddedLines:       result.AddedLines,
		RemovedLines:     result.RemovedLines,
		SimilarityPct:    result.SimilarityPct,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.SaveDiff(ctx, diff); err != nil {
		return entities.ConfigDiff{}, fmt.Errorf("save diff: %w", err)
	}
	return diff, nil
}

// Rollback pushes a stored snapshot back onto its device, walking the
// pending -> in_progress -> terminal state machine. Every state change
// is persisted; the returned operation is in a terminal state.
func (s *SnapshotService) Rollback(ctx context.Context, deviceID uuid.UUID, user *entities.UserCredentials, targetSnapshotID uuid.UUID, params RollbackParams) (entities.RollbackOperation, error) {
	op := entities.NewRollbackOperation(params.OperationLogID, targetSnapshotID, params.ExecutedBy)
	if err := s.store.SaveRollback(ctx, op); err != nil {
		return op, fmt.Errorf("save rollback: %w", err)
	}

	if err := op.Transition(entities.RollbackInProgress); err != nil {
		return op, err
	}
	if err := s.store.SaveRollback(ctx, op); err != nil {
		return op, fmt.Errorf("save rollback: %w", err)
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	target, err := s.store.GetSnapshot(ctx, targetSnapshotID)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	if err := target.Verify(); err != nil {
		return s.fail(ctx, op, err)
	}
	if target.DeviceID != deviceID {
		return s.fail(ctx, op, fmt.Errorf("snapshot %s belongs to another device", targetSnapshotID))
	}

	if params.CreateBackup {
		_, _, backupErr := s.Backup(ctx, deviceID, user, BackupParams{
			Type:        entities.SnapshotPreChange,
			TriggeredBy: "rollback " + op.ID.String(),
			CreatedBy:   params.ExecutedBy,
		})
		if backupErr != nil {
			if !params.ForceRollback {
				// The device configuration is untouched at this point.
				return s.fail(ctx, op, fmt.Errorf("pre-rollback backup: %w", backupErr))
			}
			s.log.Warn("pre-rollback backup failed, forced to continue",
				zap.String("device", device.Hostname),
				zap.String("rollback", op.ID.String()),
				zap.Error(backupErr))
		}
	}

	if err := s.transfer.PushConfiguration(ctx, device, user, target.Content); err != nil {
		return s.fail(ctx, op, err)
	}

	if params.ValidateAfterRollback {
		content, verifyErr := s.transfer.RetrieveConfiguration(ctx, device, user)
		if verifyErr != nil {
			return s.fail(ctx, op, fmt.Errorf("post-rollback validation: %w", verifyErr))
		}
		post := entities.NewConfigSnapshot(deviceID, entities.SnapshotPostChange, content, params.ExecutedBy, "rollback "+op.ID.String())
		if saveErr := s.store.SaveSnapshot(ctx, post); saveErr != nil {
			s.log.Warn("post-rollback snapshot not saved",
				zap.String("device", device.Hostname),
				zap.Error(saveErr))
		}
	}

	if err := op.Transition(entities.RollbackSucceeded); err != nil {
		return op, err
	}
	if err := s.store.SaveRollback(ctx, op); err != nil {
		return op, fmt.Errorf("save rollback: %w", err)
	}
	s.metrics.RollbackFinished(string(op.Status))
	s.log.Info("rollback succeeded",
		zap.String("device", device.Hostname),
		zap.String("rollback", op.ID.String()),
		zap.String("snapshot", targetSnapshotID.String()))
	return op, nil
}

func (s *SnapshotService) fail(ctx context.Context, op entities.RollbackOperation, cause error) (entities.RollbackOperation, error) {
	op.Error = cause.Error()
	if err := op.Transition(entities.RollbackFailed); err != nil {
		return op, err
	}
	if err := s.store.SaveRollback(ctx, op); err != nil {
		s.log.Error("failed rollback state not persisted",
			zap.String("rollback", op.ID.String()),
			zap.Error(err))
	}
	s.metrics.RollbackFinished(string(op.Status))
	return op, cause
}

// RollbackRequest names one device and target snapshot of a batch.
type RollbackRequest struct {
	DeviceID         uuid.UUID
	TargetSnapshotID uuid.UUID
}

// RollbackBatch runs rollbacks sequentially, or with bounded
// parallelism when parallelism > 1. In sequential mode a failure stops
// the batch unless ContinueOnError; parallel requests all run.
func (s *SnapshotService) RollbackBatch(ctx context.Context, requests []RollbackRequest, user *entities.UserCredentials, params RollbackParams, parallelism int, continueOnError bool) []entities.RollbackOperation {
	operations := make([]entities.RollbackOperation, 0, len(requests))

	if parallelism <= 1 {
		for _, request := range requests {
			op, err := s.Rollback(ctx, request.DeviceID, user, request.TargetSnapshotID, params)
			operations = append(operations, op)
			if err != nil && !continueOnError {
				break
			}
		}
		return operations
	}

	results := make([]entities.RollbackOperation, len(requests))
	slots := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, request := range requests {
		wg.Add(1)
		slots <- struct{}{}
		go func(i int, request RollbackRequest) {
			defer wg.Done()
			defer func() { <-slots }()
			results[i], _ = s.Rollback(ctx, request.DeviceID, user, request.TargetSnapshotID, params)
		}(i, request)
	}
	wg.Wait()
	return results
}
