package services

import (
	"fmt"
	"strings"
)

// DiffOptions controls unified diff rendering. The same snapshot pair
// and option set must always produce an identical diff.
type DiffOptions struct {
	ContextLines int
	IgnoreBlank  bool
}

// DefaultDiffOptions mirrors the classic diff -u defaults.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{ContextLines: 3}
}

// DiffResult carries the rendered unified diff plus its line statistics.
type DiffResult struct {
	UnifiedDiff    string
	AddedLines     int
	RemovedLines   int
	UnchangedLines int
	SimilarityPct  float64
}

type diffOp struct {
	kind byte // ' ', '-', '+'
	line string
}

// UnifiedDiff computes a deterministic unified diff between two
// configuration texts. Pure function: no I/O, no clock.
func UnifiedDiff(beforeName, afterName, before, after string, opts DiffOptions) DiffResult {
	if opts.ContextLines <= 0 {
		opts.ContextLines = 3
	}
	beforeLines := splitConfigLines(before, opts.IgnoreBlank)
	afterLines := splitConfigLines(after, opts.IgnoreBlank)

	ops := diffOps(beforeLines, afterLines)

	var added, removed, unchanged int
	for _, op := range ops {
		switch op.kind {
		case '+':
			added++
		case '-':
			removed++
		default:
			unchanged++
		}
	}

	result := DiffResult{
		AddedLines:     added,
		RemovedLines:   removed,
		UnchangedLines: unchanged,
		SimilarityPct:  similarity(unchanged, len(beforeLines), len(afterLines)),
	}
	if added == 0 && removed == 0 {
		result.SimilarityPct = 100.0
		return result
	}
	result.UnifiedDiff = renderHunks(beforeName, afterName, ops, opts.ContextLines)
	return result
}

func splitConfigLines(text string, ignoreBlank bool) []string {
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, " \t\r")
		if ignoreBlank && line == "" {
			continue
		}
		lines = append(lines, line)
	}
	// Drop a trailing empty element left by a final newline.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// diffOps builds an edit script. Shared prefix and suffix lines are
// split off first so the LCS table only spans the changed region;
// running configurations are mostly identical between snapshots.
func diffOps(before, after []string) []diffOp {
	prefix := 0
	for prefix < len(before) && prefix < len(after) && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(before)-prefix && suffix < len(after)-prefix &&
		before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}

	ops := make([]diffOp, 0, len(before)+len(after)-prefix-suffix)
	for _, line := range before[:prefix] {
		ops = append(ops, diffOp{' ', line})
	}
	ops = append(ops, lcsOps(before[prefix:len(before)-suffix], after[prefix:len(after)-suffix])...)
	for _, line := range before[len(before)-suffix:] {
		ops = append(ops, diffOp{' ', line})
	}
	return ops
}

// lcsOps backtracks a longest-common-subsequence table into an edit
// script.
func lcsOps(before, after []string) []diffOp {
	n, m := len(before), len(after)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if before[i] == after[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	ops := make([]diffOp, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case before[i] == after[j]:
			ops = append(ops, diffOp{' ', before[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, diffOp{'-', before[i]})
			i++
		default:
			ops = append(ops, diffOp{'+', after[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, diffOp{'-', before[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, diffOp{'+', after[j]})
	}
	return ops
}

func similarity(unchanged, beforeLen, afterLen int) float64 {
	total := beforeLen + afterLen
	if total == 0 {
		return 100.0
	}
	return float64(2*unchanged) / float64(total) * 100.0
}

type hunk struct {
	beforeStart, beforeCount int
	afterStart, afterCount   int
	ops                      []diffOp
}

func renderHunks(beforeName, afterName string, ops []diffOp, context int) string {
	hunks := groupHunks(ops, context)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", beforeName)
	fmt.Fprintf(&b, "+++ %s\n", afterName)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.beforeStart, h.beforeCount, h.afterStart, h.afterCount)
		for _, op := range h.ops {
			b.WriteByte(op.kind)
			b.WriteString(op.line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// groupHunks slices the edit script into hunks separated by more than
// 2*context unchanged lines, tracking 1-based line offsets per side.
func groupHunks(ops []diffOp, context int) []hunk {
	type indexed struct {
		op         diffOp
		beforeLine int
		afterLine  int
	}
	indexedOps := make([]indexed, len(ops))
	beforeLine, afterLine := 0, 0
	for i, op := range ops {
		switch op.kind {
		case ' ':
			beforeLine++
			afterLine++
		case '-':
			beforeLine++
		case '+':
			afterLine++
		}
		indexedOps[i] = indexed{op, beforeLine, afterLine}
	}

	var hunks []hunk
	i := 0
	for i < len(indexedOps) {
		if indexedOps[i].op.kind == ' ' {
			i++
			continue
		}
		start := i - context
		if start < 0 {
			start = 0
		}
		end := i
		last := i
		for end < len(indexedOps) {
			if indexedOps[end].op.kind != ' ' {
				last = end
				end++
				continue
			}
			// Stop once an unchanged run can no longer join two changes.
			run := 0
			for end+run < len(indexedOps) && indexedOps[end+run].op.kind == ' ' {
				run++
			}
			if end+run >= len(indexedOps) || run > 2*context {
				break
			}
			end += run
		}
		tail := last + 1 + context
		if tail > len(indexedOps) {
			tail = len(indexedOps)
		}

		h := hunk{}
		for _, idx := range indexedOps[start:tail] {
			h.ops = append(h.ops, idx.op)
			switch idx.op.kind {
			case ' ':
				h.beforeCount++
				h.afterCount++
			case '-':
				h.beforeCount++
			case '+':
				h.afterCount++
			}
			if h.beforeStart == 0 && idx.op.kind != '+' {
				h.beforeStart = idx.beforeLine
			}
			if h.afterStart == 0 && idx.op.kind != '-' {
				h.afterStart = idx.afterLine
			}
		}
		if h.beforeStart == 0 {
			h.beforeStart = 1
		}
		if h.afterStart == 0 {
			h.afterStart = 1
		}
		hunks = append(hunks, h)
		i = tail
	}
	return hunks
}
