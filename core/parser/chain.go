// Package parser turns raw CLI output into structured records through a
// chain of strategies with graceful degradation: template index first,
// vendor table second, raw passthrough last.
package parser

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Parse methods reported in results.
const (
	MethodTemplateIndex = "template_index"
	MethodVendorTable   = "vendor_table"
	MethodRawOnly       = "raw_only"
)

// Result is the outcome of parsing one command output. A failed parse
// still carries the raw output so no data is lost.
type Result struct {
	Success     bool                `json:"success"`
	Data        []map[string]string `json:"data,omitempty"`
	Method      string              `json:"method"`
	Command     string              `json:"command"`
	Brand       string              `json:"brand"`
	CommandType string              `json:"command_type,omitempty"`
	TemplateID  string              `json:"template_id,omitempty"`
	Confidence  float64             `json:"confidence,omitempty"`
	Error       string              `json:"error,omitempty"`
	Raw         string              `json:"raw,omitempty"`
}

// Strategy is one way of structuring raw output. A strategy error means
// "I could not handle this input"; the chain moves on to the next one.
type Strategy interface {
	Name() string
	Parse(raw, command, brand string) (Result, error)
}

// Chain runs strategies in registration order and falls back to a raw
// passthrough result when all of them decline.
type Chain struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewChain builds a chain over the given strategies.
func NewChain(log *zap.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{strategies: strategies, log: log}
}

// NewDefaultChain wires the standard template-index plus vendor-table
// pair used by the automation service.
func NewDefaultChain(index *TemplateIndex, log *zap.Logger) *Chain {
	return NewChain(log, index, NewVendorTable(log))
}

// Parse never returns an error and never panics: strategy failures and
// panics degrade to a raw-only result describing what went wrong.
func (c *Chain) Parse(raw, command, brand string) Result {
	for _, strategy := range c.strategies {
		result, err := c.tryStrategy(strategy, raw, command, brand)
		if err != nil {
			c.log.Debug("parse strategy declined",
				zap.String("strategy", strategy.Name()),
				zap.String("command", command),
				zap.String("brand", brand),
				zap.Error(err))
			continue
		}
		return result
	}
	return Result{
		Success: false,
		Method:  MethodRawOnly,
		Command: command,
		Brand:   brand,
		Error:   "no parse strategy matched",
		Raw:     raw,
	}
}

func (c *Chain) tryStrategy(strategy Strategy, raw, command, brand string) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()
	return strategy.Parse(raw, command, brand)
}

// BatchItem pairs one raw output with its originating command.
type BatchItem struct {
	Raw     string
	Command string
	Brand   string
}

// ParseBatch parses every item independently. One item's failure
// becomes that item's raw-only result; the batch always completes.
func (c *Chain) ParseBatch(items []BatchItem) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = c.Parse(item.Raw, item.Command, item.Brand)
	}
	return results
}

// now is swapped in formatter tests for stable timestamps.
var now = time.Now
