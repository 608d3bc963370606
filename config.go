package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/mcp-relay/bridge"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config describes the relay: one or more products, each with its own
// upstream endpoint and mapping.
type Config struct {
	Addr     string    `yaml:"addr" json:"addr,omitempty"`
	Products []Product `yaml:"products" json:"products"`
}

// Product is one served relay surface backed by one upstream connection.
type Product struct {
	Name     string                `yaml:"name" json:"name"`
	Upstream Upstream              `yaml:"upstream" json:"upstream"`
	Delegate bridge.DelegateConfig `yaml:"delegate" json:"delegate,omitempty"`
}

// Upstream describes a product's upstream MCP endpoint.
type Upstream struct {
	URL                string   `yaml:"url" json:"url"`
	Transport          string   `yaml:"transport" json:"transport,omitempty"`
	Authorization      string   `yaml:"authorization" json:"authorization,omitempty"`
	HeartbeatInterval  Duration `yaml:"heartbeatInterval" json:"heartbeatInterval,omitempty"`
	HeartbeatThreshold int      `yaml:"heartbeatThreshold" json:"heartbeatThreshold,omitempty"`
	IdleGrace          Duration `yaml:"idleGrace" json:"idleGrace,omitempty"`
}

// Validate checks the configuration is serveable.
func (c *Config) Validate() error {
	if len(c.Products) == 0 {
		return fmt.Errorf("config had no products")
	}
	seen := map[string]bool{}
	for i := range c.Products {
		product := &c.Products[i]
		if product.Upstream.URL == "" {
			return fmt.Errorf("product %q had no upstream url", product.Name)
		}
		if len(c.Products) > 1 && product.Name == "" {
			return fmt.Errorf("product %d had no name", i)
		}
		if seen[product.Name] {
			return fmt.Errorf("duplicate product name %q", product.Name)
		}
		seen[product.Name] = true
	}
	return nil
}

// LoadConfig reads configuration from a local or remote URL.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
