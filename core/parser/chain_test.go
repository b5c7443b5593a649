package parser

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/ports"
)

// mapSource serves template bodies from a map keyed brand/commandType.
type mapSource struct {
	templates map[string]string
}

func (m *mapSource) Lookup(brand, commandType string) (string, error) {
	body, ok := m.templates[brand+"/"+commandType]
	if !ok {
		return "", ports.ErrTemplateNotFound
	}
	return body, nil
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panicky" }
func (panicStrategy) Parse(raw, command, brand string) (Result, error) {
	panic("boom")
}

const versionTemplate = `(?P<os>Cisco IOS) Software.*Version (?P<version>\S+),`

const ciscoVersionOutput = `Cisco IOS Software, C2960X Software (C2960X-UNIVERSALK9-M), Version 15.2(2)E6, RELEASE SOFTWARE (fc1)
sw1 uptime is 5 weeks, 2 days
System image file is "flash:/c2960x-universalk9-mz.152-2.E6.bin"`

func testIndex() *TemplateIndex {
	return NewTemplateIndex(&mapSource{templates: map[string]string{
		"cisco/show_version": versionTemplate,
	}}, zap.NewNop())
}

func TestChainTemplateIndexFirst(t *testing.T) {
	chain := NewDefaultChain(testIndex(), zap.NewNop())

	result := chain.Parse(ciscoVersionOutput, "show version", "cisco")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Method != MethodTemplateIndex {
		t.Errorf("method: got %q, want template index to win", result.Method)
	}
	if len(result.Data) != 1 || result.Data[0]["version"] != "15.2(2)E6" {
		t.Errorf("unexpected data: %v", result.Data)
	}
	if result.CommandType != "show_version" {
		t.Errorf("command type: got %q", result.CommandType)
	}
	if result.TemplateID != "cisco/show_version" {
		t.Errorf("template id: got %q", result.TemplateID)
	}
}

func TestChainFallsBackToVendorTable(t *testing.T) {
	// No template for huawei, so the vendor table must take over.
	chain := NewDefaultChain(testIndex(), zap.NewNop())

	result := chain.Parse("Huawei software, Version 5.170, etc", "display version", "huawei")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Method != MethodVendorTable {
		t.Errorf("method: got %q, want vendor table fallback", result.Method)
	}
}

func TestChainRawOnlyWhenNothingMatches(t *testing.T) {
	chain := NewDefaultChain(testIndex(), zap.NewNop())

	// No template and no line parser exist for this command type.
	result := chain.Parse("some output", "show spanning-tree", "cisco")
	if result.Success {
		t.Error("raw passthrough must not claim success")
	}
	if result.Method != MethodRawOnly {
		t.Errorf("method: got %q, want raw_only", result.Method)
	}
	if result.Raw != "some output" {
		t.Errorf("raw output must be preserved: %q", result.Raw)
	}
}

func TestChainSurvivesPanickingStrategy(t *testing.T) {
	chain := NewChain(zap.NewNop(), panicStrategy{}, NewVendorTable(zap.NewNop()))

	result := chain.Parse(ciscoVersionOutput, "show version", "cisco")
	if !result.Success {
		t.Fatalf("chain must recover and continue: %s", result.Error)
	}
	if result.Method != MethodVendorTable {
		t.Errorf("method: got %q, want next strategy", result.Method)
	}
}

func TestParseBatchIsolatesFailures(t *testing.T) {
	chain := NewDefaultChain(testIndex(), zap.NewNop())

	const total, failing = 12, 5
	items := make([]BatchItem, 0, total)
	for i := 0; i < total-failing; i++ {
		items = append(items, BatchItem{Raw: ciscoVersionOutput, Command: "show version", Brand: "cisco"})
	}
	for i := 0; i < failing; i++ {
		items = append(items, BatchItem{Raw: fmt.Sprintf("out %d", i), Command: "show spanning-tree", Brand: "cisco"})
	}

	results := chain.ParseBatch(items)
	if len(results) != total {
		t.Fatalf("batch must return one result per item, got %d", len(results))
	}
	var ok, rawOnly int
	for _, r := range results {
		if r.Success {
			ok++
		}
		if r.Method == MethodRawOnly {
			rawOnly++
		}
	}
	if ok != total-failing || rawOnly != failing {
		t.Errorf("got %d successes and %d raw_only, want %d and %d", ok, rawOnly, total-failing, failing)
	}
}

func TestInferCommandType(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"show version", "show_version"},
		{"display version", "show_version"},
		{"show ip interface brief", "show_interface"},
		{"show ip route", "show_route"},
		{"show arp", "show_arp"},
		{"show mac address-table", "show_mac"},
		{"show interface status", "show_interface"},
		{"show spanning-tree detail", "show_spanning_tree_detail"},
		{"DISPLAY CURRENT-CONFIGURATION", "display_current_configuration"},
	}
	for _, tt := range tests {
		if got := InferCommandType(tt.command); got != tt.want {
			t.Errorf("InferCommandType(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestTemplateIndexCacheAndClear(t *testing.T) {
	source := &mapSource{templates: map[string]string{
		"cisco/show_version": versionTemplate,
	}}
	index := NewTemplateIndex(source, zap.NewNop())

	if _, err := index.Parse(ciscoVersionOutput, "show version", "cisco"); err != nil {
		t.Fatalf("first parse: %v", err)
	}

	// Cached template keeps serving after the source loses the entry.
	delete(source.templates, "cisco/show_version")
	if _, err := index.Parse(ciscoVersionOutput, "show version", "cisco"); err != nil {
		t.Fatalf("cached parse: %v", err)
	}

	index.ClearCache()
	if _, err := index.Parse(ciscoVersionOutput, "show version", "cisco"); err == nil {
		t.Error("after a cache clear the lost template must be missed again")
	}
}

func TestTemplateIndexBadBody(t *testing.T) {
	index := NewTemplateIndex(&mapSource{templates: map[string]string{
		"cisco/show_version": `(?P<broken`,
	}}, zap.NewNop())

	if _, err := index.Parse(ciscoVersionOutput, "show version", "cisco"); err == nil {
		t.Error("uncompilable template body must be an error")
	}
}
