package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"IRIS-Agents/pkg/logger"
)

// Config 描述 IRIS 守护进程与命令行工具共享的配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Events   EventsConfig   `json:"events"`
	Archive  ArchiveConfig  `json:"archive"`
	Registry RegistryConfig `json:"registry"`
	Web3     Web3Config     `json:"web3"`
	Logging  logger.Config  `json:"logging"`
	Runtime  RuntimeConfig  `json:"runtime"`
}

// ServerConfig 控制 REST 接口的监听地址。
type ServerConfig struct {
	Address string `json:"address"`
}

// EventsConfig 描述工作流事件源（WebSocket）的连接参数。
type EventsConfig struct {
	URL                     string `json:"url"`
	Origin                  string `json:"origin"`
	HandshakeTimeoutSeconds int    `json:"handshake_timeout_seconds"`
	// StaleAgentSeconds 为 0 时不做超时判定。
	StaleAgentSeconds int `json:"stale_agent_seconds"`
}

// HandshakeTimeout 返回握手超时时间。
func (e EventsConfig) HandshakeTimeout() time.Duration {
	return time.Duration(e.HandshakeTimeoutSeconds) * time.Second
}

// StaleAgentAfter 返回 Agent 卡在 in_progress 多久后被标记为失败。
func (e EventsConfig) StaleAgentAfter() time.Duration {
	return time.Duration(e.StaleAgentSeconds) * time.Second
}

// ArchiveConfig 描述归档存储与异步队列。
type ArchiveConfig struct {
	Store StoreConfig `json:"store"`
	Queue QueueConfig `json:"queue"`
	// AlertWebhook 非空时，归档重试耗尽会额外推送到该地址。
	AlertWebhook string `json:"alert_webhook"`
}

// StoreConfig 描述 memory/mysql 两种存储后端。
type StoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// ConnMaxLifetime 返回连接最长存活时间。
func (s StoreConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(s.ConnMaxLifetimeSeconds) * time.Second
}

// QueueConfig 控制归档写入走哪种队列。driver 为 direct 时同步写入存储。
type QueueConfig struct {
	Driver   string         `json:"driver"`
	Workers  int            `json:"workers"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// RegistryConfig 描述 Agent 注册表的数据来源与变更通知。
type RegistryConfig struct {
	Store    StoreConfig  `json:"store"`
	SeedPath string       `json:"seed_path"`
	Notify   NotifyConfig `json:"notify"`
}

// NotifyConfig 为空 address 时只在进程内广播变更。
type NotifyConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

// Web3Config 包含访问区块链节点所需的 RPC 地址。
type Web3Config struct {
	RPCURL       string `json:"rpc_url"`
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 解析指定路径的 JSON 配置文件，并补齐默认值。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// Default 返回未提供配置文件时使用的配置，相对路径以 baseDir 为根。
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(baseDir)
	return cfg
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Events.URL == "" {
		c.Events.URL = "ws://localhost:8000/ws"
	}
	if c.Events.HandshakeTimeoutSeconds <= 0 {
		c.Events.HandshakeTimeoutSeconds = 10
	}

	if c.Archive.Store.Driver == "" {
		c.Archive.Store.Driver = "memory"
	}
	if c.Archive.Queue.Driver == "" {
		c.Archive.Queue.Driver = "memory"
	}
	if c.Archive.Queue.Workers <= 0 {
		c.Archive.Queue.Workers = 2
	}

	if c.Registry.Store.Driver == "" {
		c.Registry.Store.Driver = "memory"
	}
	if c.Registry.Notify.Channel == "" {
		c.Registry.Notify.Channel = "iris:agents"
	}
	c.Registry.SeedPath = resolve(baseDir, c.Registry.SeedPath)
	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}

	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
