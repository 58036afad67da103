package mirror

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

const (
	// Supported mirror types.
	TypeHTTP   = "http"
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type configFile struct {
	Mirrors []MirrorConfig `json:"mirrors" yaml:"mirrors"`
}

// MirrorConfig represents a single mirror entry declared in config files.
type MirrorConfig struct {
	ID      string              `json:"id" yaml:"id"`
	Type    string              `json:"type" yaml:"type"`
	Enabled *bool               `json:"enabled" yaml:"enabled"`
	HTTP    *HTTPMirrorConfig   `json:"http" yaml:"http"`
	SQS     *SQSMirrorConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSMirrorConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubMirrorConfig `json:"pubsub" yaml:"pubsub"`
}

// HTTPMirrorConfig holds generic HTTP endpoint settings.
type HTTPMirrorConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SQSMirrorConfig holds AWS SQS specific settings.
type SQSMirrorConfig struct {
	QueueURL string `json:"queue_url" yaml:"queue_url"`
	Region   string `json:"region" yaml:"region"`
}

// SNSMirrorConfig holds AWS SNS specific settings.
type SNSMirrorConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
}

// PubSubMirrorConfig holds GCP Pub/Sub specific settings.
type PubSubMirrorConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	TopicID         string `json:"topic_id" yaml:"topic_id"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// ConfigRegistry materializes mirror definitions loaded from config files.
type ConfigRegistry struct {
	mu      sync.RWMutex
	mirrors []MirrorConfig
	idx     map[string]MirrorConfig
}

// LoadRegistry loads the mirror registry from a YAML/JSON file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("mirrors file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mirrors file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read mirrors file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Mirrors) == 0 {
		return nil, errors.New("mirrors file contains no mirrors entries")
	}

	reg := &ConfigRegistry{
		mirrors: make([]MirrorConfig, len(fileReg.Mirrors)),
		idx:     make(map[string]MirrorConfig, len(fileReg.Mirrors)),
	}

	for i := range fileReg.Mirrors {
		cfg := sanitizeConfig(fileReg.Mirrors[i])
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("mirrors[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate mirror id %q", cfg.ID)
		}
		reg.mirrors[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

func parseRegistry(data []byte, ext string) (configFile, error) {
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
		var reg configFile
		if err := d.fn(data, &reg); err != nil {
			lastErr = fmt.Errorf("%s: %w", d.name, err)
			continue
		}
		return reg, nil
	}

	if lastErr != nil {
		return configFile{}, fmt.Errorf("parse mirrors file: %w", lastErr)
	}
	return configFile{}, errors.New("mirrors file format not recognized (expected YAML or JSON)")
}

func sanitizeConfig(cfg MirrorConfig) MirrorConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.Region = strings.TrimSpace(c.Region)
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		c.TopicARN = strings.TrimSpace(c.TopicARN)
		c.Region = strings.TrimSpace(c.Region)
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		c.ProjectID = strings.TrimSpace(c.ProjectID)
		c.TopicID = strings.TrimSpace(c.TopicID)
		c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
		cfg.PubSub = &c
	}

	return cfg
}

func validateConfig(cfg MirrorConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case TypeHTTP:
		if cfg.HTTP == nil || cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for mirror %q", cfg.ID)
		}
	case TypeSQS:
		if cfg.SQS == nil || cfg.SQS.QueueURL == "" || cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.queue_url and sqs.region are required for mirror %q", cfg.ID)
		}
	case TypeSNS:
		if cfg.SNS == nil || cfg.SNS.TopicARN == "" || cfg.SNS.Region == "" {
			return fmt.Errorf("sns.topic_arn and sns.region are required for mirror %q", cfg.ID)
		}
	case TypePubSub:
		if cfg.PubSub == nil || cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicID == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_id are required for mirror %q", cfg.ID)
		}
	case "":
		return fmt.Errorf("type is required for mirror %q", cfg.ID)
	default:
		return fmt.Errorf("unsupported mirror type %q", cfg.Type)
	}
	return nil
}

// ByID returns the mirror config by id.
func (r *ConfigRegistry) ByID(id string) (MirrorConfig, bool) {
	if r == nil {
		return MirrorConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return MirrorConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured mirrors.
func (r *ConfigRegistry) All() []MirrorConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MirrorConfig, len(r.mirrors))
	copy(out, r.mirrors)
	return out
}

// Enabled returns mirrors that are enabled.
func (r *ConfigRegistry) Enabled() []MirrorConfig {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]MirrorConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns the enabled flag defaulting to true.
func (cfg MirrorConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
