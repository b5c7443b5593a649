package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotType classifies why a configuration snapshot was captured.
type SnapshotType string

const (
	SnapshotBackup     SnapshotType = "backup"
	SnapshotPreChange  SnapshotType = "pre_change"
	SnapshotPostChange SnapshotType = "post_change"
	SnapshotScheduled  SnapshotType = "scheduled"
)

// Checksum is the canonical content hash used for snapshot integrity.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ConfigSnapshot is a captured, checksummed full configuration text for
// one device at a point in time. Immutable after creation.
type ConfigSnapshot struct {
	ID          uuid.UUID    `json:"id"`
	DeviceID    uuid.UUID    `json:"device_id"`
	Type        SnapshotType `json:"snapshot_type"`
	Content     string       `json:"config_content"`
	Checksum    string       `json:"checksum"`
	TriggeredBy string       `json:"triggered_by,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewConfigSnapshot seals content under its checksum.
func NewConfigSnapshot(deviceID uuid.UUID, typ SnapshotType, content, createdBy, triggeredBy string) ConfigSnapshot {
	return ConfigSnapshot{
		ID:          uuid.New(),
		DeviceID:    deviceID,
		Type:        typ,
		Content:     content,
		Checksum:    Checksum(content),
		TriggeredBy: triggeredBy,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// Verify recomputes the checksum against the content. Snapshots are
// immutable, so a mismatch means the record was corrupted downstream.
func (s ConfigSnapshot) Verify() error {
	if Checksum(s.Content) != s.Checksum {
		return fmt.Errorf("snapshot %s: checksum mismatch", s.ID)
	}
	return nil
}

// Size returns the configuration size in bytes.
func (s ConfigSnapshot) Size() int {
	return len(s.Content)
}

// ConfigDiff is the derived difference between two snapshots. It is
// recomputable and cached once computed for a given snapshot pair.
type ConfigDiff struct {
	ID               uuid.UUID `json:"id"`
	BeforeSnapshotID uuid.UUID `json:"before_snapshot_id"`
	AfterSnapshotID  uuid.UUID `json:"after_snapshot_id"`
	UnifiedDiff      string    `json:"unified_diff"`
	AddedLines       int       `json:"added_line_count"`
	RemovedLines     int       `json:"removed_line_count"`
	SimilarityPct    float64   `json:"similarity_percentage"`
	CreatedAt        time.Time `json:"created_at"`
}

// RollbackStatus is the state machine driving a rollback workflow.
// pending -> in_progress -> {succeeded | failed}; no transition skips
// in_progress and terminal states are immutable.
type RollbackStatus string

const (
	RollbackPending    RollbackStatus = "pending"
	RollbackInProgress RollbackStatus = "in_progress"
	RollbackSucceeded  RollbackStatus = "succeeded"
	RollbackFailed     RollbackStatus = "failed"
)

var rollbackTransitions = map[RollbackStatus][]RollbackStatus{
	RollbackPending:    {RollbackInProgress},
	RollbackInProgress: {RollbackSucceeded, RollbackFailed},
}

// RollbackOperation records one attempt to push a prior snapshot back
// onto a device.
type RollbackOperation struct {
	ID               uuid.UUID      `json:"id"`
	OperationLogID   string         `json:"operation_log_id"`
	TargetSnapshotID uuid.UUID      `json:"target_snapshot_id"`
	ExecutedBy       string         `json:"executed_by"`
	ExecutedAt       time.Time      `json:"executed_at"`
	Status           RollbackStatus `json:"status"`
	Error            string         `json:"error,omitempty"`
}

// NewRollbackOperation creates a rollback record in the initial state.
func NewRollbackOperation(operationLogID string, targetSnapshotID uuid.UUID, executedBy string) RollbackOperation {
	return RollbackOperation{
		ID:               uuid.New(),
		OperationLogID:   operationLogID,
		TargetSnapshotID: targetSnapshotID,
		ExecutedBy:       executedBy,
		ExecutedAt:       time.Now().UTC(),
		Status:           RollbackPending,
	}
}

// Transition advances the state machine, rejecting skips and any
// mutation of a terminal state.
func (r *RollbackOperation) Transition(next RollbackStatus) error {
	for _, allowed := range rollbackTransitions[r.Status] {
		if allowed == next {
			r.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid rollback transition %s -> %s", r.Status, next)
}

// Terminal reports whether the operation reached a final state.
func (r *RollbackOperation) Terminal() bool {
	return r.Status == RollbackSucceeded || r.Status == RollbackFailed
}
