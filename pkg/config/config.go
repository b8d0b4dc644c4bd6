package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source struct {
		Type     string `yaml:"type"` // simulator 或 file
		Filename string `yaml:"filename"`
	} `yaml:"source"`

	Simulator struct {
		Count     int      `yaml:"count"`
		Seed      int64    `yaml:"seed"`
		Routers   []string `yaml:"routers"`
		Peers     []string `yaml:"peers"`
		Prefixes  []string `yaml:"prefixes"`
		Neighbors []string `yaml:"neighbors"`
	} `yaml:"simulator"`

	Pipeline struct {
		WorkerCount int `yaml:"worker_count"`
		BufferSize  int `yaml:"buffer_size"`
	} `yaml:"pipeline"`

	RuleEngine struct {
		Enabled       bool   `yaml:"enabled"`
		RuleDirectory string `yaml:"rule_directory"`
	} `yaml:"rule_engine"`

	Output struct {
		Type         string `yaml:"type"` // json 或 pcap
		Filename     string `yaml:"filename"`
		BaseFilename string `yaml:"base_filename"`
		MaxFileSize  int64  `yaml:"max_file_size"`
	} `yaml:"output"`

	Analysis struct {
		LatencyThresholdMs      float64 `yaml:"latency_threshold_ms"`
		ThroughputThresholdMbps float64 `yaml:"throughput_threshold_mbps"`
	} `yaml:"analysis"`

	API struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
	} `yaml:"api"`

	Log struct {
		Level      string `yaml:"level"`
		Dir        string `yaml:"dir"`
		Filename   string `yaml:"filename"`
		MaxAge     int    `yaml:"max_age"`
		RotateTime int    `yaml:"rotate_time"`
	} `yaml:"log"`
}

func (c *Config) Validate() error {
	switch c.Source.Type {
	case "simulator":
		if c.Simulator.Count <= 0 {
			return fmt.Errorf("simulator count must be positive")
		}
		if len(c.Simulator.Routers) == 0 || len(c.Simulator.Peers) == 0 ||
			len(c.Simulator.Prefixes) == 0 || len(c.Simulator.Neighbors) == 0 {
			return fmt.Errorf("simulator address pools must not be empty")
		}
	case "file":
		if c.Source.Filename == "" {
			return fmt.Errorf("source filename is required for file source")
		}
	default:
		return fmt.Errorf("unknown source type: %s", c.Source.Type)
	}

	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Pipeline.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.Output.Type != "json" && c.Output.Type != "pcap" {
		return fmt.Errorf("unknown output type: %s", c.Output.Type)
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults 填充分析阈值等可省略的配置项
func applyDefaults(cfg *Config) {
	if cfg.Analysis.LatencyThresholdMs == 0 {
		cfg.Analysis.LatencyThresholdMs = 80.0
	}
	if cfg.Analysis.ThroughputThresholdMbps == 0 {
		cfg.Analysis.ThroughputThresholdMbps = 100.0
	}
	if cfg.Output.MaxFileSize == 0 {
		cfg.Output.MaxFileSize = 50 * 1024 * 1024
	}
}
