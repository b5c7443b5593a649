// Package config loads and validates the YAML runtime configuration:
// global connection defaults, the device inventory and the backup
// schedule entries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPoolSize         = 50
	DefaultSocketTimeout    = 30 * time.Second
	DefaultTransportTimeout = 60 * time.Second
	DefaultTransport        = "ssh"
	DefaultSNMPCommunity    = "public"
	DefaultSNMPPort         = 161

	masterKeyEnv = "ARAVA_MASTER_KEY"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DeviceConfig is one inventory entry for standalone CLI use.
type DeviceConfig struct {
	Hostname       string `yaml:"hostname"`
	Target         string `yaml:"target"`
	Platform       string `yaml:"platform"`
	Brand          string `yaml:"brand"`
	Transport      string `yaml:"transport"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	EnablePassword string `yaml:"enable_password"`
	DynamicPass    bool   `yaml:"dynamic_password"`
}

// ScheduleConfig is one periodic backup entry.
type ScheduleConfig struct {
	Cron    string   `yaml:"cron"`
	Devices []string `yaml:"devices"`
}

// Config is the root of the YAML file.
type Config struct {
	MasterKey        string           `yaml:"master_key"`
	PoolSize         int              `yaml:"pool_size"`
	SocketTimeout    Duration         `yaml:"socket_timeout"`
	TransportTimeout Duration         `yaml:"transport_timeout"`
	Transport        string           `yaml:"transport"`
	Username         string           `yaml:"username"`
	Password         string           `yaml:"password"`
	EnablePassword   string           `yaml:"enable_password"`
	SNMPCommunity    string           `yaml:"snmp_community"`
	SNMPPort         int              `yaml:"snmp_port"`
	Devices          []DeviceConfig   `yaml:"devices"`
	Schedules        []ScheduleConfig `yaml:"schedules"`
}

// Load reads, defaults and validates a configuration file. The master
// key environment variable overrides the file value so secrets can
// stay out of the YAML.
func Load(yamlFile string) (*Config, error) {
	data, err := os.ReadFile(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", yamlFile, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", yamlFile, err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if key := os.Getenv(masterKeyEnv); key != "" {
		c.MasterKey = key
	}

	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative, got %d", c.PoolSize)
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = Duration(DefaultSocketTimeout)
	}
	if c.TransportTimeout <= 0 {
		c.TransportTimeout = Duration(DefaultTransportTimeout)
	}

	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = DefaultTransport
	}
	if err := validateTransport(c.Transport); err != nil {
		return err
	}

	if c.SNMPCommunity == "" {
		c.SNMPCommunity = DefaultSNMPCommunity
	}
	if c.SNMPPort == 0 {
		c.SNMPPort = DefaultSNMPPort
	}
	if c.SNMPPort < 1 || c.SNMPPort > 65535 {
		return fmt.Errorf("snmp_port %d is out of range", c.SNMPPort)
	}

	for i := range c.Devices {
		if err := c.defaultDevice(&c.Devices[i], i); err != nil {
			return err
		}
	}

	for i, schedule := range c.Schedules {
		if strings.TrimSpace(schedule.Cron) == "" {
			return fmt.Errorf("schedule %d: cron expression is required", i)
		}
		if len(schedule.Devices) == 0 {
			return fmt.Errorf("schedule %d: at least one device is required", i)
		}
		for _, name := range schedule.Devices {
			if c.DeviceByName(name) == nil {
				return fmt.Errorf("schedule %d: unknown device %q", i, name)
			}
		}
	}
	return nil
}

func (c *Config) defaultDevice(device *DeviceConfig, index int) error {
	if device.Target == "" {
		return fmt.Errorf("device %d: target is required", index)
	}
	if device.Hostname == "" {
		device.Hostname = device.Target
	}

	device.Transport = strings.ToLower(strings.TrimSpace(device.Transport))
	if device.Transport == "" {
		device.Transport = c.Transport
	}
	if err := validateTransport(device.Transport); err != nil {
		return fmt.Errorf("device %s: %w", device.Hostname, err)
	}

	if device.Username == "" {
		device.Username = c.Username
	}
	if device.Password == "" && !device.DynamicPass {
		device.Password = c.Password
	}
	if device.EnablePassword == "" {
		device.EnablePassword = c.EnablePassword
	}

	if device.Username == "" {
		return fmt.Errorf("device %s: username is required", device.Hostname)
	}
	if device.Password == "" && !device.DynamicPass {
		return fmt.Errorf("device %s: password is required for fixed-password devices", device.Hostname)
	}
	return nil
}

// DeviceByName finds an inventory entry by hostname or target address.
func (c *Config) DeviceByName(name string) *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].Hostname == name || c.Devices[i].Target == name {
			return &c.Devices[i]
		}
	}
	return nil
}

func validateTransport(transport string) error {
	if transport != "ssh" && transport != "telnet" {
		return fmt.Errorf("transport %q is invalid, must be 'ssh' or 'telnet'", transport)
	}
	return nil
}
