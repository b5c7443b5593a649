package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carlosrabelo/arava/core/domain/entities"
)

// ErrTemplateNotFound is returned by a TemplateSource when no template
// exists for a (brand, command type) pair.
var ErrTemplateNotFound = errors.New("template not found")

// DeviceRepository reads device records owned by the external data store.
// The core never writes devices.
type DeviceRepository interface {
	GetDevice(ctx context.Context, id uuid.UUID) (entities.Device, error)
	ListDevices(ctx context.Context) ([]entities.Device, error)
}

// SnapshotStore persists the snapshot, diff and rollback records the
// core produces. The core only assumes this create/read contract, not a
// particular storage engine.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap entities.ConfigSnapshot) error
	GetSnapshot(ctx context.Context, id uuid.UUID) (entities.ConfigSnapshot, error)
	LatestSnapshot(ctx context.Context, deviceID uuid.UUID) (entities.ConfigSnapshot, bool, error)

	SaveDiff(ctx context.Context, diff entities.ConfigDiff) error
	GetDiff(ctx context.Context, beforeID, afterID uuid.UUID) (entities.ConfigDiff, bool, error)

	SaveRollback(ctx context.Context, op entities.RollbackOperation) error
	GetRollback(ctx context.Context, id uuid.UUID) (entities.RollbackOperation, error)
}

// TemplateSource serves structured-extraction template bodies keyed by
// brand and command type.
type TemplateSource interface {
	Lookup(brand, commandType string) (string, error)
}

// SecretCipher decrypts credential material stored at rest. Decrypt
// must fail fast on values that do not carry the cipher's marker so the
// caller can tolerate legacy plaintext.
type SecretCipher interface {
	Encrypt(secret string) (string, error)
	Decrypt(value string) (string, error)
	IsEncrypted(value string) bool
}
