package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package sources contains the watched-source registry (YAML/JSON) and the
// per-source feed fetchers.

// Source describes one watched feed declared in the sources file.
type Source struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type" yaml:"type"`
	SourceURL string         `json:"source_url" yaml:"source_url"`
	Archive   bool           `json:"archive" yaml:"archive"`
	Config    map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// Registry materializes source definitions loaded from config files.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	idx     map[string]Source
}

// LoadRegistry loads the source registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	reg := &Registry{
		sources: make([]Source, len(fileReg.Sources)),
		idx:     make(map[string]Source, len(fileReg.Sources)),
	}

	for i := range fileReg.Sources {
		src := sanitizeSource(fileReg.Sources[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := reg.idx[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		reg.sources[i] = src
		reg.idx[src.ID] = src
	}

	return reg, nil
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err != nil {
			lastErr = fmt.Errorf("%s: %w", d.name, err)
			continue
		}
		return reg, nil
	}

	if lastErr != nil {
		return registryFile{}, fmt.Errorf("parse sources file: %w", lastErr)
	}
	return registryFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

func sanitizeSource(src Source) Source {
	src.ID = strings.ToLower(strings.TrimSpace(src.ID))
	src.Name = strings.TrimSpace(src.Name)
	src.Type = strings.ToLower(strings.TrimSpace(src.Type))
	src.SourceURL = strings.TrimSpace(src.SourceURL)
	if src.Config == nil {
		src.Config = map[string]any{}
	}
	return src
}

func validateSource(src Source) error {
	if src.ID == "" {
		return errors.New("id is required")
	}
	if src.Name == "" {
		return fmt.Errorf("name is required for source %q", src.ID)
	}
	if src.Type == "" {
		return fmt.Errorf("type is required for source %q", src.ID)
	}
	if src.SourceURL == "" {
		return fmt.Errorf("source_url is required for source %q", src.ID)
	}
	return nil
}

// ByID returns the source entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Source, bool) {
	if r == nil {
		return Source{}, false
	}

	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Source{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.idx[id]
	return src, ok
}

// All returns all configured sources in file order.
func (r *Registry) All() []Source {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}
