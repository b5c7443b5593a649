package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
)

// fakeCipher marks ciphertext with "enc:"; Decrypt strips the marker.
type fakeCipher struct {
	failDecrypt bool
}

func (f *fakeCipher) Encrypt(secret string) (string, error) {
	return "enc:" + secret, nil
}

func (f *fakeCipher) Decrypt(value string) (string, error) {
	if !f.IsEncrypted(value) {
		return "", errors.New("not encrypted")
	}
	if f.failDecrypt {
		return "", errors.New("malformed ciphertext")
	}
	return strings.TrimPrefix(value, "enc:"), nil
}

func (f *fakeCipher) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, "enc:")
}

func fixedDevice() entities.Device {
	return entities.Device{
		ID:                   uuid.New(),
		Hostname:             "sw1",
		ManagementIP:         "10.0.0.1",
		Platform:             "cisco_iosxe",
		CLIUsername:          "swadmin",
		CLIPasswordEncrypted: "enc:X",
		DynamicPassword:      false,
		Region:               &entities.Region{Name: "hq", DefaultCLIUsername: "netops"},
	}
}

func otpDevice() entities.Device {
	d := fixedDevice()
	d.Hostname = "sw2"
	d.CLIUsername = ""
	d.CLIPasswordEncrypted = ""
	d.DynamicPassword = true
	return d
}

func TestResolveFixedPasswordDevice(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())

	creds, err := r.Resolve(context.Background(), fixedDevice(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.Username != "swadmin" {
		t.Errorf("username: got %q, want device CLI username", creds.Username)
	}
	if creds.Password != "X" {
		t.Errorf("password: got %q, want decrypted stored password", creds.Password)
	}
	if creds.HasEnablePassword() {
		t.Error("device without enable password must not yield one")
	}
	if creds.Port != entities.DefaultCLIPort {
		t.Errorf("port: got %d, want %d", creds.Port, entities.DefaultCLIPort)
	}
}

func TestResolveOTPDeviceWithoutPassword(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())

	_, err := r.Resolve(context.Background(), otpDevice(), nil)
	if !errors.Is(err, ErrOTPRequired) {
		t.Errorf("got %v, want ErrOTPRequired", err)
	}
}

func TestResolveOTPDeviceCachesSingleUse(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())
	device := otpDevice()

	creds, err := r.Resolve(context.Background(), device, &entities.UserCredentials{Password: "otp-123"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.Password != "otp-123" {
		t.Errorf("password: got %q, want caller OTP", creds.Password)
	}
	if creds.Username != "netops" {
		t.Errorf("username: got %q, want region default", creds.Username)
	}

	if !r.ConsumeOTP(device.ID) {
		t.Error("OTP should be cached after resolution")
	}
	if r.ConsumeOTP(device.ID) {
		t.Error("OTP must be single use")
	}
}

func TestResolveCallerCredentialsWinPriority(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())

	creds, err := r.Resolve(context.Background(), fixedDevice(), &entities.UserCredentials{
		Username:       "override",
		Password:       "callerpass",
		EnablePassword: "callerenable",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.Username != "override" || creds.Password != "callerpass" || creds.EnablePassword != "callerenable" {
		t.Errorf("caller-supplied credentials must win: %+v", creds)
	}
}

func TestResolveFixedDeviceWithoutAnyPassword(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())
	device := fixedDevice()
	device.CLIPasswordEncrypted = ""

	_, err := r.Resolve(context.Background(), device, nil)
	if !errors.Is(err, ErrPasswordUnavailable) {
		t.Errorf("got %v, want ErrPasswordUnavailable", err)
	}
}

func TestResolveNoUsernameAnywhere(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())
	device := fixedDevice()
	device.CLIUsername = ""
	device.Region = nil

	_, err := r.Resolve(context.Background(), device, nil)
	if !errors.Is(err, ErrUsernameUnavailable) {
		t.Errorf("got %v, want ErrUsernameUnavailable", err)
	}
}

func TestResolveLegacyPlaintextPassword(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())
	device := fixedDevice()
	device.CLIPasswordEncrypted = "legacy-plaintext"

	creds, err := r.Resolve(context.Background(), device, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.Password != "legacy-plaintext" {
		t.Errorf("legacy plaintext must be served as-is, got %q", creds.Password)
	}
}

func TestResolveMalformedCiphertextFallsBack(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{failDecrypt: true}, zap.NewNop())
	device := fixedDevice()

	creds, err := r.Resolve(context.Background(), device, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.Password != "enc:X" {
		t.Errorf("malformed ciphertext must be served as stored, got %q", creds.Password)
	}
}

func TestResolveEnablePasswordDecrypted(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())
	device := fixedDevice()
	device.EnablePasswordEncrypted = "enc:enable-secret"

	creds, err := r.Resolve(context.Background(), device, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.EnablePassword != "enable-secret" {
		t.Errorf("enable password: got %q, want decrypted value", creds.EnablePassword)
	}
}

func TestClearOTP(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())
	d1, d2 := otpDevice(), otpDevice()
	d2.ID = uuid.New()

	r.Resolve(context.Background(), d1, &entities.UserCredentials{Password: "a"})
	r.Resolve(context.Background(), d2, &entities.UserCredentials{Password: "b"})

	if got := r.ClearOTP(d1.ID); got != 1 {
		t.Errorf("ClearOTP: got %d, want 1", got)
	}
	if got := r.ClearOTP(d1.ID); got != 0 {
		t.Errorf("ClearOTP must be idempotent: got %d, want 0", got)
	}
	if got := r.ClearAllOTP(); got != 1 {
		t.Errorf("ClearAllOTP: got %d, want 1", got)
	}
	if got := r.ClearAllOTP(); got != 0 {
		t.Errorf("ClearAllOTP on empty cache: got %d, want 0", got)
	}
}

func TestRequirements(t *testing.T) {
	r := NewCredentialResolver(&fakeCipher{}, zap.NewNop())

	fixed := r.Requirements(fixedDevice())
	if fixed.RequiresUsername || fixed.RequiresPassword || fixed.DynamicPassword {
		t.Errorf("fully configured fixed device needs nothing: %+v", fixed)
	}

	otp := r.Requirements(otpDevice())
	if !otp.RequiresPassword || !otp.DynamicPassword {
		t.Errorf("OTP device always needs a password: %+v", otp)
	}
	if otp.RequiresUsername {
		t.Errorf("region default username satisfies the username need: %+v", otp)
	}
}
