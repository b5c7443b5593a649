package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
	"github.com/carlosrabelo/arava/core/domain/ports"
)

var (
	// ErrUsernameUnavailable means no source in the priority chain
	// produced a login username.
	ErrUsernameUnavailable = errors.New("no usable CLI username for device")
	// ErrOTPRequired means the device uses one-time passwords and the
	// caller supplied none.
	ErrOTPRequired = errors.New("device uses one-time passwords: supply a password with the request")
	// ErrPasswordUnavailable means a fixed-password device has no stored
	// password and the caller supplied none.
	ErrPasswordUnavailable = errors.New("device has no stored CLI password and none was supplied")
)

// CredentialResolver decides the effective login material for a device.
// Username priority: caller, device fixed account, region default.
// Password priority: caller (cached as single-use OTP for dynamic
// devices), stored encrypted password. Enable password is optional.
type CredentialResolver struct {
	cipher ports.SecretCipher
	log    *zap.Logger

	mu  sync.Mutex
	otp map[uuid.UUID]string
}

// NewCredentialResolver builds a resolver with an empty OTP cache.
func NewCredentialResolver(cipher ports.SecretCipher, log *zap.Logger) *CredentialResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialResolver{
		cipher: cipher,
		log:    log,
		otp:    make(map[uuid.UUID]string),
	}
}

// Resolve produces connection credentials for the device or fails with
// one of the distinguished credential errors. The audit log names the
// device and username, never a password.
func (r *CredentialResolver) Resolve(ctx context.Context, device entities.Device, user *entities.UserCredentials) (entities.ResolvedCredentials, error) {
	if err := ctx.Err(); err != nil {
		return entities.ResolvedCredentials{}, err
	}

	creds := entities.ResolvedCredentials{
		Hostname: device.ManagementIP,
		Port:     entities.DefaultCLIPort,
		Platform: device.Platform,
	}

	username, err := r.resolveUsername(device, user)
	if err != nil {
		r.log.Warn("credential resolution failed",
			zap.String("device", device.Hostname),
			zap.String("ip", device.ManagementIP),
			zap.Error(err))
		return entities.ResolvedCredentials{}, fmt.Errorf("device %s: %w", device.Hostname, err)
	}
	creds.Username = username

	password, err := r.resolvePassword(device, user)
	if err != nil {
		r.log.Warn("credential resolution failed",
			zap.String("device", device.Hostname),
			zap.String("ip", device.ManagementIP),
			zap.String("username", username),
			zap.Error(err))
		return entities.ResolvedCredentials{}, fmt.Errorf("device %s: %w", device.Hostname, err)
	}
	creds.Password = password
	creds.EnablePassword = r.resolveEnablePassword(device, user)

	r.log.Info("credentials resolved",
		zap.String("device", device.Hostname),
		zap.String("ip", device.ManagementIP),
		zap.String("username", username),
		zap.Bool("dynamic_password", device.DynamicPassword))
	return creds, nil
}

func (r *CredentialResolver) resolveUsername(device entities.Device, user *entities.UserCredentials) (string, error) {
	if user != nil && user.Username != "" {
		return user.Username, nil
	}
	if !device.DynamicPassword && device.CLIUsername != "" {
		return device.CLIUsername, nil
	}
	if device.Region != nil && device.Region.DefaultCLIUsername != "" {
		return device.Region.DefaultCLIUsername, nil
	}
	return "", ErrUsernameUnavailable
}

func (r *CredentialResolver) resolvePassword(device entities.Device, user *entities.UserCredentials) (string, error) {
	if user != nil && user.Password != "" {
		if device.DynamicPassword {
			r.storeOTP(device.ID, user.Password)
		}
		return user.Password, nil
	}

	if !device.DynamicPassword && device.CLIPasswordEncrypted != "" {
		return r.decodeStored(device, device.CLIPasswordEncrypted, "password"), nil
	}

	if device.DynamicPassword {
		return "", ErrOTPRequired
	}
	return "", ErrPasswordUnavailable
}

func (r *CredentialResolver) resolveEnablePassword(device entities.Device, user *entities.UserCredentials) string {
	if user != nil && user.EnablePassword != "" {
		return user.EnablePassword
	}
	if device.EnablePasswordEncrypted != "" {
		return r.decodeStored(device, device.EnablePasswordEncrypted, "enable password")
	}
	return ""
}

// decodeStored decrypts a stored credential, tolerating legacy rows
// that were saved before encryption at rest existed. Both downgrade
// paths are loud: serving plaintext is a security hole that must not
// hide at debug level.
func (r *CredentialResolver) decodeStored(device entities.Device, stored, kind string) string {
	if !r.cipher.IsEncrypted(stored) {
		r.log.Warn("stored credential is not encrypted, serving as-is",
			zap.String("device", device.Hostname),
			zap.String("credential", kind))
		return stored
	}
	plain, err := r.cipher.Decrypt(stored)
	if err != nil {
		r.log.Warn("stored credential ciphertext is malformed, serving as-is",
			zap.String("device", device.Hostname),
			zap.String("credential", kind),
			zap.Error(err))
		return stored
	}
	return plain
}

func (r *CredentialResolver) storeOTP(deviceID uuid.UUID, password string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otp[deviceID] = password
}

// ConsumeOTP removes and reports the cached one-time password for a
// device. Called after the first successful use; entries never survive
// a consume.
func (r *CredentialResolver) ConsumeOTP(deviceID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.otp[deviceID]; !ok {
		return false
	}
	delete(r.otp, deviceID)
	return true
}

// ClearOTP removes the cached entry for one device. Idempotent.
func (r *CredentialResolver) ClearOTP(deviceID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.otp[deviceID]; !ok {
		return 0
	}
	delete(r.otp, deviceID)
	return 1
}

// ClearAllOTP wipes the OTP cache and returns how many entries existed.
func (r *CredentialResolver) ClearAllOTP() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.otp)
	r.otp = make(map[uuid.UUID]string)
	return n
}

// Requirements reports which credential fields a caller must supply for
// this device. Secrets are never included.
type Requirements struct {
	RequiresUsername bool `json:"requires_username"`
	RequiresPassword bool `json:"requires_password"`
	DynamicPassword  bool `json:"is_dynamic_password"`
}

// Requirements inspects a device record without touching the OTP cache.
func (r *CredentialResolver) Requirements(device entities.Device) Requirements {
	hasUsername := device.CLIUsername != "" ||
		(device.Region != nil && device.Region.DefaultCLIUsername != "")
	return Requirements{
		RequiresUsername: !hasUsername,
		RequiresPassword: device.DynamicPassword || device.CLIPasswordEncrypted == "",
		DynamicPassword:  device.DynamicPassword,
	}
}
