// Package config loads the operator's static configuration file.
package config

import (
	"maps"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/document-crunch/streamlit-operator/internal/manifest"
)

// DefaultPath is where the config map holding config.yaml is mounted.
const DefaultPath = "/config/config.yaml"

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	// BaseDNSRecord is the DNS zone app hostnames are created under.
	BaseDNSRecord string `yaml:"baseDnsRecord"`

	// IngressAnnotations override the default load balancer annotations.
	IngressAnnotations map[string]string `yaml:"ingressAnnotations"`

	// Suffix is appended to app names in hostnames, e.g. "-stg".
	Suffix string `yaml:"suffix"`
}

// LoadFile reads and parses the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}

	return cfg, nil
}

// Parse decodes YAML config and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports missing or malformed settings.
func (c *Config) Validate() error {
	record := strings.TrimSpace(c.BaseDNSRecord)
	if record == "" {
		return errors.New("baseDnsRecord is required")
	}

	if strings.HasPrefix(record, ".") || strings.HasSuffix(record, ".") {
		return errors.Newf("baseDnsRecord %q must not start or end with a dot", c.BaseDNSRecord)
	}

	for key := range c.IngressAnnotations {
		if key == "" {
			return errors.New("ingressAnnotations contains an empty key")
		}
	}

	return nil
}

// IngressParams returns the ingress settings for the manifest package.
// The annotation map is a copy, so callers cannot mutate the config.
func (c *Config) IngressParams() manifest.IngressParams {
	return manifest.IngressParams{
		BaseDNSRecord: c.BaseDNSRecord,
		Suffix:        c.Suffix,
		Annotations:   maps.Clone(c.IngressAnnotations),
	}
}
