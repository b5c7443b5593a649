package services

import (
	"fmt"
	"strings"
	"testing"
)

const configBefore = `hostname sw1
interface GigabitEthernet0/1
 description uplink
 switchport mode trunk
interface GigabitEthernet0/2
 switchport access vlan 10
line vty 0 4
 transport input ssh`

const configAfter = `hostname sw1
interface GigabitEthernet0/1
 description uplink to core
 switchport mode trunk
interface GigabitEthernet0/2
 switchport access vlan 20
line vty 0 4
 transport input ssh`

func TestUnifiedDiffDeterministic(t *testing.T) {
	first := UnifiedDiff("before", "after", configBefore, configAfter, DefaultDiffOptions())
	second := UnifiedDiff("before", "after", configBefore, configAfter, DefaultDiffOptions())

	if first.UnifiedDiff != second.UnifiedDiff {
		t.Error("identical inputs must render identical diff text")
	}
	if first.AddedLines != second.AddedLines || first.RemovedLines != second.RemovedLines ||
		first.SimilarityPct != second.SimilarityPct {
		t.Errorf("identical inputs must yield identical counts: %+v vs %+v", first, second)
	}
}

func TestUnifiedDiffCounts(t *testing.T) {
	result := UnifiedDiff("before", "after", configBefore, configAfter, DefaultDiffOptions())

	if result.AddedLines != 2 || result.RemovedLines != 2 {
		t.Errorf("got +%d/-%d, want +2/-2", result.AddedLines, result.RemovedLines)
	}
	if !strings.Contains(result.UnifiedDiff, "- description uplink\n") {
		t.Errorf("missing removed line in diff:\n%s", result.UnifiedDiff)
	}
	if !strings.Contains(result.UnifiedDiff, "+ description uplink to core\n") {
		t.Errorf("missing added line in diff:\n%s", result.UnifiedDiff)
	}
	if !strings.HasPrefix(result.UnifiedDiff, "--- before\n+++ after\n") {
		t.Errorf("diff header malformed:\n%s", result.UnifiedDiff)
	}
}

func TestUnifiedDiffIdenticalInputs(t *testing.T) {
	result := UnifiedDiff("a", "b", configBefore, configBefore, DefaultDiffOptions())

	if result.UnifiedDiff != "" {
		t.Errorf("identical inputs must yield an empty diff, got:\n%s", result.UnifiedDiff)
	}
	if result.SimilarityPct != 100.0 {
		t.Errorf("similarity: got %v, want 100.0", result.SimilarityPct)
	}
	if result.AddedLines != 0 || result.RemovedLines != 0 {
		t.Errorf("no changes expected: %+v", result)
	}
}

func TestUnifiedDiffEmptyInputs(t *testing.T) {
	both := UnifiedDiff("a", "b", "", "", DefaultDiffOptions())
	if both.SimilarityPct != 100.0 || both.UnifiedDiff != "" {
		t.Errorf("two empty inputs are identical: %+v", both)
	}

	grew := UnifiedDiff("a", "b", "", "line one\nline two", DefaultDiffOptions())
	if grew.AddedLines != 2 || grew.RemovedLines != 0 {
		t.Errorf("empty before: got +%d/-%d, want +2/-0", grew.AddedLines, grew.RemovedLines)
	}
	if grew.SimilarityPct != 0.0 {
		t.Errorf("nothing in common: got %v, want 0.0", grew.SimilarityPct)
	}
}

func TestUnifiedDiffSimilarity(t *testing.T) {
	// 6 unchanged lines of 8 per side: 2*6/16 = 75%.
	result := UnifiedDiff("a", "b", configBefore, configAfter, DefaultDiffOptions())
	if result.SimilarityPct != 75.0 {
		t.Errorf("similarity: got %v, want 75.0", result.SimilarityPct)
	}
}

func TestUnifiedDiffIgnoreBlank(t *testing.T) {
	opts := DefaultDiffOptions()
	opts.IgnoreBlank = true

	before := "hostname sw1\n\ninterface Gi0/1"
	after := "hostname sw1\ninterface Gi0/1"
	result := UnifiedDiff("a", "b", before, after, opts)
	if result.AddedLines != 0 || result.RemovedLines != 0 {
		t.Errorf("blank-only difference should vanish: %+v", result)
	}
}

func TestUnifiedDiffChangesAtEdges(t *testing.T) {
	before := "first old\ncommon one\ncommon two\nlast old"
	after := "first new\ncommon one\ncommon two\nlast new"

	result := UnifiedDiff("a", "b", before, after, DefaultDiffOptions())
	if result.AddedLines != 2 || result.RemovedLines != 2 {
		t.Errorf("got +%d/-%d, want +2/-2", result.AddedLines, result.RemovedLines)
	}
	for _, line := range []string{"-first old\n", "+first new\n", "-last old\n", "+last new\n"} {
		if !strings.Contains(result.UnifiedDiff, line) {
			t.Errorf("missing %q in diff:\n%s", line, result.UnifiedDiff)
		}
	}
}

func TestUnifiedDiffLargeMostlyIdentical(t *testing.T) {
	// A one-line change in a long configuration must not cost a full
	// quadratic table over both inputs.
	lines := make([]string, 20000)
	for i := range lines {
		lines[i] = fmt.Sprintf("snmp-server community ro %d", i)
	}
	before := strings.Join(lines, "\n")
	lines[10000] = "snmp-server community rw 10000"
	after := strings.Join(lines, "\n")

	result := UnifiedDiff("a", "b", before, after, DefaultDiffOptions())
	if result.AddedLines != 1 || result.RemovedLines != 1 {
		t.Errorf("got +%d/-%d, want +1/-1", result.AddedLines, result.RemovedLines)
	}
	if got := strings.Count(result.UnifiedDiff, "@@ "); got != 1 {
		t.Errorf("want a single hunk, got %d:\n%s", got, result.UnifiedDiff)
	}
}

func TestUnifiedDiffSeparateHunks(t *testing.T) {
	var beforeLines, afterLines []string
	for i := 0; i < 30; i++ {
		beforeLines = append(beforeLines, "common")
		afterLines = append(afterLines, "common")
	}
	beforeLines[0] = "top old"
	afterLines[0] = "top new"
	beforeLines[29] = "bottom old"
	afterLines[29] = "bottom new"

	result := UnifiedDiff("a", "b", strings.Join(beforeLines, "\n"), strings.Join(afterLines, "\n"), DefaultDiffOptions())
	if got := strings.Count(result.UnifiedDiff, "@@ "); got != 2 {
		t.Errorf("changes 28 lines apart must split into 2 hunks, got %d:\n%s", got, result.UnifiedDiff)
	}
}
