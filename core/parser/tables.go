package parser

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// PlatformFor maps a detected brand onto the platform identifier the
// line tables are keyed by. Unknown brands fall back to cisco_ios,
// the most common dialect in the field.
func PlatformFor(brand string) string {
	switch strings.ToLower(brand) {
	case "cisco":
		return "cisco_ios"
	case "huawei":
		return "huawei_vrp"
	case "h3c":
		return "hp_comware"
	default:
		return "cisco_ios"
	}
}

var (
	ciscoMACRegex      = regexp.MustCompile(`^\s*(\d+)\s+([0-9A-Fa-f]{4}\.[0-9A-Fa-f]{4}\.[0-9A-Fa-f]{4})\s+(\S+)\s+(\S+)\s*$`)
	huaweiMACRegex     = regexp.MustCompile(`^\s*([0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4})\s+(\d+)\S*\s+\S+\s+\S+\s+(\S+)`)
	ciscoARPRegex      = regexp.MustCompile(`^Internet\s+(\d+\.\d+\.\d+\.\d+)\s+(\S+)\s+([0-9A-Fa-f]{4}\.[0-9A-Fa-f]{4}\.[0-9A-Fa-f]{4})\s+ARPA\s+(\S+)`)
	interfaceNameRegex = regexp.MustCompile(`^[A-Za-z]+\d+(?:/\d+){0,2}$`)
	versionRegex       = regexp.MustCompile(`(?i)Version\s+([^\s,\[\]]+)`)
	uptimeRegex        = regexp.MustCompile(`(?i)uptime is\s+(.+?)\s*$`)
	hostnameRegex      = regexp.MustCompile(`^(\S+)\s+uptime`)

	commandErrHints = []string{
		"invalid input",
		"unknown command",
		"incomplete command",
		"ambiguous command",
		"unrecognized command",
		"invalid command",
		"syntax error",
		"cannot find command",
		"error:",
	}
)

type lineParser func(output string) []map[string]string

// lineTables maps (platform, command type) to a line parser. Dialects
// share a parser where the formats coincide.
var lineTables = map[string]map[string]lineParser{
	"cisco_ios": {
		"show_version":   parseVersionBlock,
		"show_mac":       parseCiscoMACTable,
		"show_arp":       parseCiscoARPTable,
		"show_interface": parseCiscoInterfaceStatus,
	},
	"huawei_vrp": {
		"show_version": parseVersionBlock,
		"show_mac":     parseHuaweiMACTable,
	},
	"hp_comware": {
		"show_version": parseVersionBlock,
		"show_mac":     parseHuaweiMACTable,
	},
}

// VendorTable structures output with fixed per-platform line parsers.
// A parse failure keeps the raw output in the result.
type VendorTable struct {
	log *zap.Logger
}

// NewVendorTable builds the table-driven strategy.
func NewVendorTable(log *zap.Logger) *VendorTable {
	if log == nil {
		log = zap.NewNop()
	}
	return &VendorTable{log: log}
}

func (v *VendorTable) Name() string { return MethodVendorTable }

// Parse looks up the (platform, command type) parser and applies it.
// Device-side command errors are surfaced as a failed result rather
// than an empty success.
func (v *VendorTable) Parse(raw, command, brand string) (Result, error) {
	platform := PlatformFor(brand)
	commandType := InferCommandType(command)

	table, ok := lineTables[platform]
	if !ok {
		return Result{}, fmt.Errorf("no line table for platform %s", platform)
	}
	parse, ok := table[commandType]
	if !ok {
		return Result{}, fmt.Errorf("no line parser for %s %s", platform, commandType)
	}

	if isCommandError(raw) {
		return Result{
			Success:     false,
			Method:      MethodVendorTable,
			Command:     command,
			Brand:       brand,
			CommandType: commandType,
			Error:       "device rejected the command",
			Raw:         raw,
		}, nil
	}

	return Result{
		Success:     true,
		Data:        parse(raw),
		Method:      MethodVendorTable,
		Command:     command,
		Brand:       brand,
		CommandType: commandType,
	}, nil
}

func parseVersionBlock(output string) []map[string]string {
	record := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if record["version"] == "" {
			if m := versionRegex.FindStringSubmatch(line); m != nil {
				record["version"] = m[1]
			}
		}
		if m := uptimeRegex.FindStringSubmatch(line); m != nil {
			record["uptime"] = m[1]
			if h := hostnameRegex.FindStringSubmatch(strings.TrimSpace(line)); h != nil {
				record["hostname"] = h[1]
			}
		}
	}
	if len(record) == 0 {
		return nil
	}
	return []map[string]string{record}
}

func parseCiscoMACTable(output string) []map[string]string {
	var records []map[string]string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		m := ciscoMACRegex.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		records = append(records, map[string]string{
			"vlan":      m[1],
			"mac":       strings.ToLower(m[2]),
			"type":      strings.ToLower(m[3]),
			"interface": m[4],
		})
	}
	return records
}

func parseHuaweiMACTable(output string) []map[string]string {
	var records []map[string]string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		m := huaweiMACRegex.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		records = append(records, map[string]string{
			"mac":       m[1],
			"vlan":      m[2],
			"interface": m[3],
		})
	}
	return records
}

func parseCiscoARPTable(output string) []map[string]string {
	var records []map[string]string
	for _, line := range strings.Split(output, "\n") {
		m := ciscoARPRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		records = append(records, map[string]string{
			"ip":        m[1],
			"age":       m[2],
			"mac":       strings.ToLower(m[3]),
			"interface": m[4],
		})
	}
	return records
}

var interfaceStatusTokens = map[string]bool{
	"connected":    true,
	"notconnect":   true,
	"disabled":     true,
	"err-disabled": true,
	"up":           true,
	"down":         true,
}

// parseCiscoInterfaceStatus reads "show interface status" style tables.
// The description column can contain spaces, so the status token is
// located by value instead of by position.
func parseCiscoInterfaceStatus(output string) []map[string]string {
	var records []map[string]string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 3 || !interfaceNameRegex.MatchString(fields[0]) {
			continue
		}
		statusIdx := -1
		for i := 1; i < len(fields); i++ {
			if interfaceStatusTokens[strings.ToLower(fields[i])] {
				statusIdx = i
				break
			}
		}
		if statusIdx == -1 || statusIdx+1 >= len(fields) {
			continue
		}
		records = append(records, map[string]string{
			"interface": fields[0],
			"status":    strings.ToLower(fields[statusIdx]),
			"vlan":      strings.ToLower(fields[statusIdx+1]),
		})
	}
	return records
}

func isCommandError(output string) bool {
	lower := strings.ToLower(output)
	for _, hint := range commandErrHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func isSeparatorLine(line string) bool {
	if len(line) < 3 {
		return false
	}
	for _, ch := range line {
		if ch != '-' && ch != '=' && ch != '+' && ch != '*' {
			return false
		}
	}
	return true
}
