package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
)

// ScheduleEntry binds a cron expression to the devices it backs up.
type ScheduleEntry struct {
	Cron    string
	Devices []uuid.UUID
}

// BackupScheduler captures scheduled snapshots on cron ticks.
type BackupScheduler struct {
	snapshots *SnapshotService
	cron      *cron.Cron
	log       *zap.Logger
}

// NewBackupScheduler builds an idle scheduler.
func NewBackupScheduler(snapshots *SnapshotService, log *zap.Logger) *BackupScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BackupScheduler{
		snapshots: snapshots,
		cron:      cron.New(),
		log:       log,
	}
}

// Add registers one schedule entry. Returns an error on a bad cron
// expression.
func (b *BackupScheduler) Add(ctx context.Context, entry ScheduleEntry) error {
	_, err := b.cron.AddFunc(entry.Cron, func() {
		for _, deviceID := range entry.Devices {
			if ctx.Err() != nil {
				return
			}
			_, _, err := b.snapshots.Backup(ctx, deviceID, nil, BackupParams{
				Type:        entities.SnapshotScheduled,
				TriggeredBy: "schedule " + entry.Cron,
				CreatedBy:   "scheduler",
				AutoCompare: true,
			})
			if err != nil {
				b.log.Warn("scheduled backup failed",
					zap.String("device", deviceID.String()),
					zap.Error(err))
			}
		}
	})
	return err
}

// Run starts the cron loop and blocks until the context is cancelled;
// a running backup pass finishes its current device first.
func (b *BackupScheduler) Run(ctx context.Context) {
	b.cron.Start()
	<-ctx.Done()
	stopped := b.cron.Stop()
	<-stopped.Done()
}
