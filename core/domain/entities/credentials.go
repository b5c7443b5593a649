package entities

import "fmt"

// DefaultCLIPort is the SSH port assumed when a device record carries none.
const DefaultCLIPort = 22

// UserCredentials carries credentials supplied by a caller for a single
// request. For dynamic-password devices the Password field is the OTP.
type UserCredentials struct {
	Username       string
	Password       string
	EnablePassword string
}

// ResolvedCredentials is the effective login material for one session.
// It is ephemeral: never persisted, never logged with secrets intact.
type ResolvedCredentials struct {
	Hostname       string
	Port           int
	Username       string
	Password       string
	EnablePassword string
	Platform       string
}

// HasEnablePassword reports whether privileged-mode elevation material exists.
func (rc ResolvedCredentials) HasEnablePassword() bool {
	return rc.EnablePassword != ""
}

// String implements fmt.Stringer with secret fields redacted.
func (rc ResolvedCredentials) String() string {
	return fmt.Sprintf("ResolvedCredentials{host=%s port=%d user=%s platform=%s password=*** enable=***}",
		rc.Hostname, rc.Port, rc.Username, rc.Platform)
}
