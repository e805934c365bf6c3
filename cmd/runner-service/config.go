package main

import (
	"fmt"
	"os"
	"time"

	"boxrunner/internal/common/mq"
	"boxrunner/internal/runner/engine"
	"boxrunner/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultInboundTopic    = "runner.jobs"
	defaultOutboundTopic   = "runner.results"
	defaultRetentionBytes  = 1 << 30
	defaultPoolSize        = 4
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	MinBytes     int           `yaml:"minBytes"`
	MaxBytes     int           `yaml:"maxBytes"`
	MaxWait      time.Duration `yaml:"maxWait"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
}

// StreamConfig holds inbound/outbound stream settings.
type StreamConfig struct {
	Inbound       string `yaml:"inbound"`
	Outbound      string `yaml:"outbound"`
	ConsumerGroup string `yaml:"consumerGroup"`
	Partitions    int    `yaml:"partitions"`
	Replicas      int    `yaml:"replicas"`
	// RetentionBytes caps the retained size of each stream.
	RetentionBytes int64 `yaml:"retentionBytes"`
}

// WorkspaceConfig holds workspace staging settings.
type WorkspaceConfig struct {
	TemplateDir string `yaml:"templateDir"`
	RootDir     string `yaml:"rootDir"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize int `yaml:"poolSize"`
}

// RuntimeConfig holds isolation runtime invocation settings.
type RuntimeConfig struct {
	Binary      string `yaml:"binary"`
	MountTarget string `yaml:"mountTarget"`
	Entrypoint  string `yaml:"entrypoint"`
}

// AppConfig holds runner-service config.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Logger    logger.Config     `yaml:"logger"`
	Kafka     KafkaConfig       `yaml:"kafka"`
	Streams   StreamConfig      `yaml:"streams"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Worker    WorkerConfig      `yaml:"worker"`
	Runtime   RuntimeConfig     `yaml:"runtime"`
	Profiles  map[string]string `yaml:"profiles"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Workspace.TemplateDir == "" {
		return nil, fmt.Errorf("workspace template dir is required")
	}
	if cfg.Workspace.RootDir == "" {
		return nil, fmt.Errorf("workspace root dir is required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one isolation profile is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Streams.Inbound == "" {
		cfg.Streams.Inbound = defaultInboundTopic
	}
	if cfg.Streams.Outbound == "" {
		cfg.Streams.Outbound = defaultOutboundTopic
	}
	if cfg.Streams.ConsumerGroup == "" {
		cfg.Streams.ConsumerGroup = "boxrunner"
	}
	if cfg.Streams.RetentionBytes == 0 {
		cfg.Streams.RetentionBytes = defaultRetentionBytes
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = defaultPoolSize
	}
	return &cfg, nil
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		ReadTimeout:  k.ReadTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
	}
}

func (r RuntimeConfig) toEngineConfig() engine.Config {
	return engine.Config{
		RuntimeBinary: r.Binary,
		MountTarget:   r.MountTarget,
		Entrypoint:    r.Entrypoint,
	}
}
