package app

import (
	"fmt"
	"os"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gopkg.in/yaml.v3"

	"github.com/codewandler/clstr-dispatch/core/dispatch"
	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

type NodeConfig struct {
	ID string `yaml:"id"`
	// Nodes lists every node of the cluster, this one included.
	Nodes     []string `yaml:"nodes"`
	NumShards int      `yaml:"num_shards"`
	ShardSeed string   `yaml:"shard_seed"`
}

type QueueConfig struct {
	Size     int  `yaml:"size"`
	Blocking bool `yaml:"blocking"`
}

type Config struct {
	Node NodeConfig `yaml:"node"`
	// Transport and Routing are plugin type ids.
	Transport string           `yaml:"transport"`
	Routing   string           `yaml:"routing"`
	Queue     QueueConfig      `yaml:"queue"`
	Retry     dispatch.Retry   `yaml:"retry"`
	Breaker   dispatch.Breaker `yaml:"breaker"`
}

func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			NumShards: 256,
			ShardSeed: "default",
		},
		Transport: transport.TypeQueue,
		Routing:   routing.TypeManaged,
		Queue:     QueueConfig{Size: 1024},
		Retry:     dispatch.DefaultRetry(),
		Breaker:   dispatch.DefaultBreaker(),
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects values no default can fix.
func (c *Config) Validate() error {
	if c.Node.NumShards < 0 {
		return fmt.Errorf("node.num_shards cannot be negative")
	}
	if c.Queue.Size < 0 {
		return fmt.Errorf("queue.size cannot be negative")
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts cannot be negative")
	}
	seen := make(map[string]bool, len(c.Node.Nodes))
	for _, n := range c.Node.Nodes {
		if n == "" {
			return fmt.Errorf("node.nodes cannot contain empty ids")
		}
		if seen[n] {
			return fmt.Errorf("node.nodes contains %q twice", n)
		}
		seen[n] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Node.ID == "" {
		c.Node.ID = fmt.Sprintf("node-%s", gonanoid.Must(6))
	}
	if len(c.Node.Nodes) == 0 {
		c.Node.Nodes = []string{c.Node.ID}
	}
	if c.Node.NumShards == 0 {
		c.Node.NumShards = def.Node.NumShards
	}
	if c.Node.ShardSeed == "" {
		c.Node.ShardSeed = def.Node.ShardSeed
	}
	if c.Transport == "" {
		c.Transport = def.Transport
	}
	if c.Routing == "" {
		c.Routing = def.Routing
	}
	if c.Queue.Size == 0 {
		c.Queue.Size = def.Queue.Size
	}
}
