package transport

import (
	"testing"

	"github.com/carlosrabelo/arava/core/domain/ports"
)

// Both concrete drivers must satisfy the session port.
var (
	_ ports.SessionDriver = (*SSHDriver)(nil)
	_ ports.SessionDriver = (*TelnetDriver)(nil)
)

func TestSelectVariant(t *testing.T) {
	tests := []struct {
		brand    string
		platform string
		want     Variant
	}{
		{"cisco", "", VariantCisco},
		{"", "cisco_iosxe", VariantCisco},
		{"huawei", "", VariantHuawei},
		{"", "huawei_vrp", VariantHuawei},
		{"h3c", "", VariantH3C},
		{"", "hp_comware", VariantH3C},
		{"juniper", "junos", VariantGeneric},
		{"", "", VariantGeneric},
	}
	for _, tt := range tests {
		if got := SelectVariant(tt.brand, tt.platform); got != tt.want {
			t.Errorf("SelectVariant(%q, %q) = %q, want %q", tt.brand, tt.platform, got, tt.want)
		}
	}
}

func TestCommandsFor(t *testing.T) {
	if got := CommandsFor(VariantCisco).ShowConfig; got != "show running-config" {
		t.Errorf("cisco show config: got %q", got)
	}
	if got := CommandsFor(VariantHuawei).ShowConfig; got != "display current-configuration" {
		t.Errorf("huawei show config: got %q", got)
	}
	if got := CommandsFor(Variant("bogus")).DisablePaging; got != CommandsFor(VariantGeneric).DisablePaging {
		t.Error("unknown variant must fall back to the generic command set")
	}
}

func TestPromptReached(t *testing.T) {
	suffixes := vendorProfiles[VariantCisco].promptSuffixes

	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"privileged prompt", "show version\nsome output\nsw1#", true},
		{"user prompt", "sw1>", true},
		{"prompt with trailing blank", "output\nsw1#\n\n", true},
		{"mid-output hash is not a prompt", "load average # comment\nmore output", false},
		{"no prompt yet", "interface GigabitEthernet0/1\n description x", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := promptReached(tt.output, suffixes); got != tt.want {
				t.Errorf("promptReached(%q) = %v, want %v", tt.output, got, tt.want)
			}
		})
	}
}

func TestStripEcho(t *testing.T) {
	output := "show clock\n10:32:01.123 UTC Mon Jun 3 2024\nsw1#"
	if got := stripEcho(output); got != "10:32:01.123 UTC Mon Jun 3 2024" {
		t.Errorf("stripEcho: got %q", got)
	}
	if got := stripEcho("sw1#"); got != "" {
		t.Errorf("prompt-only output: got %q", got)
	}
}

func TestLoginPromptsCiscoWithEnable(t *testing.T) {
	prompts := loginPrompts(VariantCisco, DialParams{
		Username:     "admin",
		Password:     "pw",
		EnableSecret: "secret",
	})

	if len(prompts) != 6 {
		t.Fatalf("got %d prompts, want 6", len(prompts))
	}
	if prompts[0].WaitFor != "Username:" || prompts[1].WaitFor != "Password:" {
		t.Errorf("login prompts out of order: %+v", prompts[:2])
	}
	if prompts[2].SendCmd != "enable\n" || prompts[3].SendCmd != "secret\n" {
		t.Errorf("enable elevation missing: %+v", prompts[2:4])
	}
	if prompts[4].SendCmd != "terminal length 0\n" {
		t.Errorf("paging must be disabled after login: %+v", prompts[4])
	}
}

func TestLoginPromptsHuawei(t *testing.T) {
	prompts := loginPrompts(VariantHuawei, DialParams{Username: "admin", Password: "pw"})

	if len(prompts) != 4 {
		t.Fatalf("got %d prompts, want 4", len(prompts))
	}
	if prompts[2].SendCmd != "screen-length 0 temporary\n" {
		t.Errorf("huawei paging command: %+v", prompts[2])
	}
}

func TestDialParamsTimeouts(t *testing.T) {
	var p DialParams
	if p.socketTimeout() != DefaultSocketTimeout || p.transportTimeout() != DefaultTransportTimeout {
		t.Error("zero timeouts must fall back to defaults")
	}
}
