package publishers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported publisher types.
const (
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypeHTTP   = "http"
	TypePubSub = "pubsub"
)

const (
	defaultWebhookMethod  = "POST"
	defaultWebhookTimeout = 5
)

// PublisherConfig is one entry of the publishers file. Exactly one block matching Type is read.
type PublisherConfig struct {
	ID      string                 `json:"id" yaml:"id"`
	Type    string                 `json:"type" yaml:"type"`
	Enabled *bool                  `json:"enabled" yaml:"enabled"`
	SQS     *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	HTTP    *HTTPPublisherConfig   `json:"http" yaml:"http"`
	PubSub  *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
}

// AWSAccess holds optional overrides for the default AWS credential chain. Static keys are used
// only when both are set; Endpoint points the client at a local emulator.
type AWSAccess struct {
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// SQSPublisherConfig targets an SQS queue.
type SQSPublisherConfig struct {
	QueueURL  string `json:"uri" yaml:"uri"`
	AWSAccess `yaml:",inline"`
}

// SNSPublisherConfig targets an SNS topic.
type SNSPublisherConfig struct {
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
	AWSAccess `yaml:",inline"`
}

// PubSubPublisherConfig targets a Google Cloud Pub/Sub topic. Without CredentialsFile the
// application default credentials apply.
type PubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig targets a webhook. Retries applies to transport errors and 5xx answers.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Retries        int               `json:"retries" yaml:"retries"`
}

// block is the type-specific part of a publisher entry.
type block interface {
	normalize()
	validate() error
}

// IsEnabled reports the enabled flag; entries without one are enabled.
func (cfg PublisherConfig) IsEnabled() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// block returns the settings block matching cfg.Type.
func (cfg *PublisherConfig) block() (block, error) {
	var (
		b       block
		present bool
	)
	switch cfg.Type {
	case TypeSQS:
		b, present = cfg.SQS, cfg.SQS != nil
	case TypeSNS:
		b, present = cfg.SNS, cfg.SNS != nil
	case TypeHTTP:
		b, present = cfg.HTTP, cfg.HTTP != nil
	case TypePubSub:
		b, present = cfg.PubSub, cfg.PubSub != nil
	case "":
		return nil, errors.New("type is required")
	default:
		return nil, fmt.Errorf("unsupported type %q", cfg.Type)
	}
	if !present {
		return nil, fmt.Errorf("%s block is required", cfg.Type)
	}
	return b, nil
}

// prepare trims the entry in place and checks it.
func (cfg *PublisherConfig) prepare() error {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.ID == "" {
		return errors.New("id is required")
	}

	b, err := cfg.block()
	if err != nil {
		return fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	b.normalize()
	if err := b.validate(); err != nil {
		return fmt.Errorf("publisher %q: %s.%w", cfg.ID, cfg.Type, err)
	}
	return nil
}

func (a *AWSAccess) normalize() {
	for _, field := range []*string{&a.Region, &a.Endpoint, &a.AccessKeyID, &a.SecretAccessKey} {
		*field = strings.TrimSpace(*field)
	}
}

func (a *AWSAccess) validate() error {
	if a.Region == "" {
		return errors.New("region is required")
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}

func (c *SQSPublisherConfig) normalize() {
	c.QueueURL = strings.TrimSpace(c.QueueURL)
	c.AWSAccess.normalize()
}

func (c *SQSPublisherConfig) validate() error {
	if c.QueueURL == "" {
		return errors.New("uri is required")
	}
	return c.AWSAccess.validate()
}

func (c *SNSPublisherConfig) normalize() {
	c.TopicARN = strings.TrimSpace(c.TopicARN)
	c.AWSAccess.normalize()
}

func (c *SNSPublisherConfig) validate() error {
	if c.TopicARN == "" {
		return errors.New("topic_arn is required")
	}
	return c.AWSAccess.validate()
}

func (c *PubSubPublisherConfig) normalize() {
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Topic = strings.TrimSpace(c.Topic)
	c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
}

func (c *PubSubPublisherConfig) validate() error {
	switch {
	case c.ProjectID == "":
		return errors.New("project_id is required")
	case c.Topic == "":
		return errors.New("topic is required")
	}
	return nil
}

func (c *HTTPPublisherConfig) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = defaultWebhookMethod
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultWebhookTimeout
	}
	if c.Retries < 0 {
		c.Retries = 0
	}

	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			headers[k] = v
		}
	}
	c.Headers = headers
}

func (c *HTTPPublisherConfig) validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url %q must be absolute http(s)", c.URL)
	}
	return nil
}

// LoadConfigs reads and checks every entry of a YAML or JSON publishers file. Unknown keys are
// rejected so a misspelt setting does not silently fall back to a default.
func LoadConfigs(path string) ([]PublisherConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	cfgs, err := decodeConfigs(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	seen := make(map[string]int, len(cfgs))
	for i := range cfgs {
		if err := cfgs[i].prepare(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if first, dup := seen[cfgs[i].ID]; dup {
			return nil, fmt.Errorf("publishers[%d]: id %q already used by publishers[%d]", i, cfgs[i].ID, first)
		}
		seen[cfgs[i].ID] = i
	}
	return cfgs, nil
}

func decodeConfigs(raw []byte, ext string) ([]PublisherConfig, error) {
	var file struct {
		Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
	}

	var err error
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&file)
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&file)
	default:
		return nil, fmt.Errorf("publishers file extension %q not supported (expected .yaml, .yml or .json)", ext)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode publishers file: %w", err)
	}
	return file.Publishers, nil
}

// Enabled keeps the entries whose enabled flag is set or absent.
func Enabled(cfgs []PublisherConfig) []PublisherConfig {
	out := make([]PublisherConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.IsEnabled() {
			out = append(out, cfg)
		}
	}
	return out
}
