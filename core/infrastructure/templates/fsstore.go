// Package templates serves parsing template bodies from a directory
// tree laid out as <root>/<brand>/<command_type>.tpl.
package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/ports"
)

const templateExt = ".tpl"

// FSStore reads template bodies lazily and caches them. A concurrent
// first read of the same file may happen twice; both reads produce the
// same body.
type FSStore struct {
	root string
	log  *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewFSStore builds a store rooted at dir.
func NewFSStore(dir string, log *zap.Logger) *FSStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FSStore{
		root:  dir,
		log:   log,
		cache: make(map[string]string),
	}
}

// Lookup returns the template body for a (brand, command type) pair or
// ports.ErrTemplateNotFound.
func (s *FSStore) Lookup(brand, commandType string) (string, error) {
	brand = sanitizeComponent(brand)
	commandType = sanitizeComponent(commandType)
	if brand == "" || commandType == "" {
		return "", ports.ErrTemplateNotFound
	}
	key := brand + "/" + commandType

	s.mu.RLock()
	body, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return body, nil
	}

	path := filepath.Join(s.root, brand, commandType+templateExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", key, ports.ErrTemplateNotFound)
		}
		return "", fmt.Errorf("read template %s: %w", path, err)
	}

	body = string(data)
	s.mu.Lock()
	s.cache[key] = body
	s.mu.Unlock()

	s.log.Debug("template loaded", zap.String("template", key))
	return body, nil
}

// ClearCache drops cached bodies so edited template files are picked
// up without a restart.
func (s *FSStore) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]string)
}

// List scans the tree and reports the available (brand, command type)
// pairs as brand/commandType keys.
func (s *FSStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan templates %s: %w", s.root, err)
	}
	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		brand := entry.Name()
		files, err := os.ReadDir(filepath.Join(s.root, brand))
		if err != nil {
			return nil, fmt.Errorf("scan templates %s: %w", brand, err)
		}
		for _, file := range files {
			name := file.Name()
			if file.IsDir() || !strings.HasSuffix(name, templateExt) {
				continue
			}
			keys = append(keys, brand+"/"+strings.TrimSuffix(name, templateExt))
		}
	}
	return keys, nil
}

// sanitizeComponent blocks path traversal through brand or command
// type values.
func sanitizeComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return ""
	}
	return value
}
