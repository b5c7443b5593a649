// Package transport opens interactive CLI sessions against network
// devices over SSH or telnet and bounds their concurrency with a
// weighted semaphore pool. Vendor differences are captured as tagged
// profile values, not driver subclasses.
package transport

import (
	"errors"
	"strings"
	"time"

	"github.com/carlosrabelo/arava/core/domain/entities"
)

const (
	DefaultSocketTimeout    = 30 * time.Second
	DefaultTransportTimeout = 60 * time.Second

	TransportSSH    = "ssh"
	TransportTelnet = "telnet"

	promptUsername = "Username:"
	promptPassword = "Password:"
)

// ErrNotConnected is returned when Send is called before Open or after
// Close.
var ErrNotConnected = errors.New("session is not connected")

// Variant tags the vendor dialect a session speaks.
type Variant string

const (
	VariantCisco   Variant = "cisco"
	VariantHuawei  Variant = "huawei"
	VariantH3C     Variant = "h3c"
	VariantGeneric Variant = "generic"
)

// DialParams carries everything needed to open one session.
type DialParams struct {
	Host             string
	Port             int
	Username         string
	Password         string
	EnableSecret     string
	Transport        string
	Brand            string
	Platform         string
	SocketTimeout    time.Duration
	TransportTimeout time.Duration
}

func (p DialParams) socketTimeout() time.Duration {
	if p.SocketTimeout > 0 {
		return p.SocketTimeout
	}
	return DefaultSocketTimeout
}

func (p DialParams) transportTimeout() time.Duration {
	if p.TransportTimeout > 0 {
		return p.TransportTimeout
	}
	return DefaultTransportTimeout
}

// CommandSet is the vendor-specific command vocabulary a workflow needs
// beyond plain command execution.
type CommandSet struct {
	DisablePaging string
	ShowConfig    string
	ConfigEnter   string
	ConfigExit    string
	Save          string
}

// vendorProfile fixes the dialect of one variant: prompt detection,
// paging, configuration commands and the telnet login conversation.
type vendorProfile struct {
	promptSuffixes []string
	commands       CommandSet
}

var vendorProfiles = map[Variant]vendorProfile{
	VariantCisco: {
		promptSuffixes: []string{"#", ">"},
		commands: CommandSet{
			DisablePaging: "terminal length 0",
			ShowConfig:    "show running-config",
			ConfigEnter:   "configure terminal",
			ConfigExit:    "end",
			Save:          "write memory",
		},
	},
	VariantHuawei: {
		promptSuffixes: []string{">", "]"},
		commands: CommandSet{
			DisablePaging: "screen-length 0 temporary",
			ShowConfig:    "display current-configuration",
			ConfigEnter:   "system-view",
			ConfigExit:    "return",
			Save:          "save",
		},
	},
	VariantH3C: {
		promptSuffixes: []string{">", "]"},
		commands: CommandSet{
			DisablePaging: "screen-length disable",
			ShowConfig:    "display current-configuration",
			ConfigEnter:   "system-view",
			ConfigExit:    "return",
			Save:          "save force",
		},
	},
	VariantGeneric: {
		promptSuffixes: []string{"#", ">", "]", "$"},
		commands: CommandSet{
			DisablePaging: "terminal length 0",
			ShowConfig:    "show running-config",
			ConfigEnter:   "configure terminal",
			ConfigExit:    "end",
			Save:          "write memory",
		},
	},
}

// SelectVariant maps a detected brand, or failing that a platform
// string, onto a session variant. Pure function; unknown inputs give
// the generic variant.
func SelectVariant(brand, platform string) Variant {
	for _, source := range []string{brand, platform} {
		switch {
		case source == "":
			continue
		case strings.Contains(strings.ToLower(source), "cisco"),
			strings.Contains(strings.ToLower(source), "ios"):
			return VariantCisco
		case strings.Contains(strings.ToLower(source), "huawei"),
			strings.Contains(strings.ToLower(source), "vrp"):
			return VariantHuawei
		case strings.Contains(strings.ToLower(source), "h3c"),
			strings.Contains(strings.ToLower(source), "comware"):
			return VariantH3C
		}
	}
	return VariantGeneric
}

// CommandsFor exposes the command vocabulary of a variant to the
// workflow layer.
func CommandsFor(variant Variant) CommandSet {
	profile, ok := vendorProfiles[variant]
	if !ok {
		profile = vendorProfiles[VariantGeneric]
	}
	return profile.commands
}

func profileFor(variant Variant) vendorProfile {
	profile, ok := vendorProfiles[variant]
	if !ok {
		profile = vendorProfiles[VariantGeneric]
	}
	return profile
}

// loginPrompts builds the telnet authentication conversation for a
// variant. SSH authenticates in-protocol and only needs the trailing
// entries.
func loginPrompts(variant Variant, params DialParams) []entities.AuthPrompt {
	profile := profileFor(variant)
	first := profile.promptSuffixes[0]

	prompts := []entities.AuthPrompt{
		{WaitFor: promptUsername, SendCmd: params.Username + "\n"},
		{WaitFor: promptPassword, SendCmd: params.Password + "\n"},
	}
	if variant == VariantCisco || variant == VariantGeneric {
		if params.EnableSecret != "" {
			prompts = append(prompts,
				entities.AuthPrompt{WaitFor: ">", SendCmd: "enable\n"},
				entities.AuthPrompt{WaitFor: promptPassword, SendCmd: params.EnableSecret + "\n"},
			)
			first = "#"
		}
	}
	prompts = append(prompts, entities.AuthPrompt{WaitFor: first, SendCmd: profile.commands.DisablePaging + "\n"})
	prompts = append(prompts, entities.AuthPrompt{WaitFor: first, SendCmd: ""})
	return prompts
}

// promptReached reports whether the last non-empty line of accumulated
// output ends with one of the variant's prompt suffixes.
func promptReached(output string, suffixes []string) bool {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(line, suffix) {
				return true
			}
		}
		return false
	}
	return false
}

// stripEcho removes the echoed command line and the trailing prompt
// from captured output.
func stripEcho(output string) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= 1 {
		return ""
	}
	return strings.TrimRight(strings.Join(lines[1:len(lines)-1], "\n"), " \r\n")
}
