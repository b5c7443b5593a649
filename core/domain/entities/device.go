package entities

import "github.com/google/uuid"

// Region groups devices under one administrative domain and carries the
// fallback CLI username used when a device has none of its own.
type Region struct {
	ID                 uuid.UUID
	Name               string
	DefaultCLIUsername string
}

// Device is a managed network element as read from the inventory store.
// Credential fields are stored encrypted; DynamicPassword marks devices
// that expect a one-time password supplied per session.
type Device struct {
	ID                      uuid.UUID
	Hostname                string
	ManagementIP            string
	Platform                string
	Brand                   string
	Model                   string
	CLIUsername             string
	CLIPasswordEncrypted    string
	EnablePasswordEncrypted string
	DynamicPassword         bool
	Region                  *Region
}

// Metadata returns the detection inputs derived from the device record.
func (d Device) Metadata() HostMetadata {
	return HostMetadata{
		Brand:      d.Brand,
		Platform:   d.Platform,
		DeviceType: d.Model,
	}
}

// HostMetadata is what brand detection knows about a host before any
// command output exists. Brand is only set when the inventory carries an
// explicit brand field.
type HostMetadata struct {
	Brand      string
	Platform   string
	DeviceType string
}
