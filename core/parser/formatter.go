package parser

import (
	"fmt"
	"time"
)

// FidelityLevel selects how much metadata a formatted result carries.
type FidelityLevel string

const (
	FidelityCompact  FidelityLevel = "compact"
	FidelityStandard FidelityLevel = "standard"
	FidelityDetailed FidelityLevel = "detailed"
)

// maxSummaryErrors caps the error details carried by a batch summary.
const maxSummaryErrors = 10

// Format renders one result at the requested fidelity. Compact keeps
// only the outcome, standard adds execution metadata, detailed adds
// classification and template identity.
func Format(result Result, level FidelityLevel) map[string]any {
	out := map[string]any{
		"success": result.Success,
	}
	if result.Data != nil {
		out["data"] = result.Data
	}
	if result.Error != "" {
		out["error"] = result.Error
	}

	if level == FidelityCompact {
		return out
	}

	out["command"] = result.Command
	out["brand"] = result.Brand
	out["parse_method"] = result.Method
	out["timestamp"] = now().UTC().Format(time.RFC3339)

	if level == FidelityStandard {
		return out
	}

	out["command_type"] = result.CommandType
	out["confidence"] = result.Confidence
	if result.TemplateID != "" {
		out["template_id"] = result.TemplateID
	}
	if result.Raw != "" {
		out["raw"] = result.Raw
	}
	return out
}

// SummaryError is one failed item in a batch summary.
type SummaryError struct {
	Index   int    `json:"index"`
	Command string `json:"command"`
	Brand   string `json:"brand"`
	Error   string `json:"error"`
}

// BatchSummary aggregates a parsed batch for reporting.
type BatchSummary struct {
	Total         int            `json:"total"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	ByBrand       map[string]int `json:"by_brand"`
	ByParseMethod map[string]int `json:"by_parse_method"`
	Errors        []SummaryError `json:"errors,omitempty"`
	TruncatedErrs int            `json:"truncated_errors,omitempty"`
}

// Summarize counts outcomes and collects the first errors, up to the
// summary cap. The count of errors past the cap is still reported.
func Summarize(results []Result) BatchSummary {
	summary := BatchSummary{
		Total:         len(results),
		ByBrand:       make(map[string]int),
		ByParseMethod: make(map[string]int),
	}
	for i, result := range results {
		if result.Brand != "" {
			summary.ByBrand[result.Brand]++
		}
		if result.Method != "" {
			summary.ByParseMethod[result.Method]++
		}
		if result.Success {
			summary.Succeeded++
			continue
		}
		summary.Failed++
		if len(summary.Errors) < maxSummaryErrors {
			summary.Errors = append(summary.Errors, SummaryError{
				Index:   i,
				Command: result.Command,
				Brand:   result.Brand,
				Error:   result.Error,
			})
		} else {
			summary.TruncatedErrs++
		}
	}
	return summary
}

// String gives a one-line operator view of a summary.
func (s BatchSummary) String() string {
	return fmt.Sprintf("%d total, %d ok, %d failed", s.Total, s.Succeeded, s.Failed)
}
