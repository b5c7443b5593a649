// Package snmp enriches device facts with a read-only system-group
// probe when CLI output alone is too thin to classify a device.
package snmp

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"

	DefaultCommunity = "public"
	DefaultPort      = 161
	DefaultTimeout   = 5 * time.Second
)

// SystemInfo is the system group of one device.
type SystemInfo struct {
	Description string `json:"description"`
	ObjectID    string `json:"object_id"`
	Name        string `json:"name"`
}

// Probe issues SNMPv2c reads against device management addresses.
type Probe struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	log       *zap.Logger
}

// NewProbe builds a probe; zero values take the defaults.
func NewProbe(community string, port uint16, timeout time.Duration, log *zap.Logger) *Probe {
	if community == "" {
		community = DefaultCommunity
	}
	if port == 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Probe{Community: community, Port: port, Timeout: timeout, log: log}
}

// SystemInfo reads sysDescr, sysObjectID and sysName from a host.
func (p *Probe) SystemInfo(ctx context.Context, host string) (SystemInfo, error) {
	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      p.Port,
		Community: p.Community,
		Version:   gosnmp.Version2c,
		Timeout:   p.Timeout,
		Retries:   1,
		Transport: "udp",
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return SystemInfo{}, fmt.Errorf("snmp connect %s: %w", host, err)
	}
	defer client.Conn.Close()

	packet, err := client.Get([]string{oidSysDescr, oidSysObjectID, oidSysName})
	if err != nil {
		return SystemInfo{}, fmt.Errorf("snmp get %s: %w", host, err)
	}

	var info SystemInfo
	for _, variable := range packet.Variables {
		switch variable.Name {
		case oidSysDescr:
			info.Description = pduString(variable)
		case oidSysObjectID:
			info.ObjectID = pduString(variable)
		case oidSysName:
			info.Name = pduString(variable)
		}
	}
	p.log.Debug("snmp system probe",
		zap.String("host", host),
		zap.String("sys_name", info.Name))
	return info, nil
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch value := pdu.Value.(type) {
	case []byte:
		return string(value)
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
