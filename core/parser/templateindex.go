package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/ports"
)

// commandTypeRules maps command substrings to canonical command types.
// Order matters: the first match wins.
var commandTypeRules = []struct {
	substring   string
	commandType string
}{
	{"version", "show_version"},
	{"interface", "show_interface"},
	{"route", "show_route"},
	{"arp", "show_arp"},
	{"mac", "show_mac"},
}

var sanitizeRegex = regexp.MustCompile(`[^a-z0-9]+`)

// InferCommandType classifies a raw command string. Unrecognized
// commands collapse to a sanitized token so they can still key a
// template lookup.
func InferCommandType(command string) string {
	lower := strings.ToLower(command)
	for _, rule := range commandTypeRules {
		if strings.Contains(lower, rule.substring) {
			return rule.commandType
		}
	}
	sanitized := sanitizeRegex.ReplaceAllString(lower, "_")
	return strings.Trim(sanitized, "_")
}

// compiledTemplate is a template body compiled to one regex per
// non-comment line. Named capture groups become record fields.
type compiledTemplate struct {
	id    string
	lines []*regexp.Regexp
}

// TemplateIndex parses output with per-(brand, command type) templates
// served by a TemplateSource. Compiled templates are cached; the first
// concurrent population of a key may run twice, which is harmless.
type TemplateIndex struct {
	source ports.TemplateSource
	log    *zap.Logger

	mu    sync.RWMutex
	cache map[string]*compiledTemplate
}

// NewTemplateIndex builds an index with an empty compile cache.
func NewTemplateIndex(source ports.TemplateSource, log *zap.Logger) *TemplateIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &TemplateIndex{
		source: source,
		log:    log,
		cache:  make(map[string]*compiledTemplate),
	}
}

func (t *TemplateIndex) Name() string { return MethodTemplateIndex }

// Parse matches each output line against the template's patterns and
// collects the named captures of every hit.
func (t *TemplateIndex) Parse(raw, command, brand string) (Result, error) {
	commandType := InferCommandType(command)
	tpl, err := t.template(brand, commandType)
	if err != nil {
		return Result{}, err
	}

	var records []map[string]string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, pattern := range tpl.lines {
			match := pattern.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			record := make(map[string]string)
			for i, name := range pattern.SubexpNames() {
				if name != "" && match[i] != "" {
					record[name] = match[i]
				}
			}
			if len(record) > 0 {
				records = append(records, record)
			}
			break
		}
	}

	return Result{
		Success:     true,
		Data:        records,
		Method:      MethodTemplateIndex,
		Command:     command,
		Brand:       brand,
		CommandType: commandType,
		TemplateID:  tpl.id,
	}, nil
}

// ClearCache drops all compiled templates, forcing recompilation on
// the next lookup. Administrative use.
func (t *TemplateIndex) ClearCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = make(map[string]*compiledTemplate)
}

func (t *TemplateIndex) template(brand, commandType string) (*compiledTemplate, error) {
	key := brand + "/" + commandType

	t.mu.RLock()
	tpl, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	body, err := t.source.Lookup(brand, commandType)
	if err != nil {
		if errors.Is(err, ports.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return nil, fmt.Errorf("template lookup %s: %w", key, err)
	}

	tpl, err = compileTemplate(key, body)
	if err != nil {
		t.log.Warn("template body failed to compile",
			zap.String("template", key),
			zap.Error(err))
		return nil, err
	}

	t.mu.Lock()
	t.cache[key] = tpl
	t.mu.Unlock()
	return tpl, nil
}

// compileTemplate treats each non-empty, non-comment line of the body
// as a standalone regex with named capture groups.
func compileTemplate(id, body string) (*compiledTemplate, error) {
	var patterns []*regexp.Regexp
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern, err := regexp.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("template %s: bad pattern %q: %w", id, line, err)
		}
		patterns = append(patterns, pattern)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("template %s: empty body", id)
	}
	return &compiledTemplate{id: id, lines: patterns}, nil
}
