package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers           []string `yaml:"brokers"`
		MeasurementsTopic string   `yaml:"measurements_topic"`
		EventsTopic       string   `yaml:"events_topic"`
		RequiredAcks      int      `yaml:"required_acks"`
		Compression       string   `yaml:"compression"`
		Producer          struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Oracle struct {
		HTTPURL        string        `yaml:"http_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"oracle"`
	Registry struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"registry"`
	Tokens struct {
		CreditURL   string `yaml:"credit_url"`
		CurrencyURL string `yaml:"currency_url"`
	} `yaml:"tokens"`
	Ledger struct {
		Window   int    `yaml:"window"`
		MinValue string `yaml:"min_value"`
		MaxValue string `yaml:"max_value"`
	} `yaml:"ledger"`
	Health struct {
		MaxSafeEmission     string `yaml:"max_safe_emission"`
		VulnerableThreshold string `yaml:"vulnerable_threshold"`
	} `yaml:"health"`
	Renewal struct {
		TickSize        string        `yaml:"tick_size"`
		RewardRate      string        `yaml:"reward_rate"`
		SalvageValue    string        `yaml:"salvage_value"`
		PenaltyRate     string        `yaml:"penalty_rate"`
		DiscountFactor  string        `yaml:"discount_factor"`
		TickInterval    time.Duration `yaml:"tick_interval"`
		MinInterval     time.Duration `yaml:"min_interval"`
		MaxRenewals     int           `yaml:"max_renewals"`
		ReductionTarget string        `yaml:"reduction_target"`
		SweepInterval   time.Duration `yaml:"sweep_interval"`
	} `yaml:"renewal"`
	Market struct {
		Operator string `yaml:"operator"`
		MinTrade string `yaml:"min_trade"`
		MaxTrade string `yaml:"max_trade"`
		Slippage string `yaml:"slippage"`
	} `yaml:"market"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_MEASUREMENTS_TOPIC"); v != "" {
		c.Kafka.MeasurementsTopic = v
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		c.Kafka.EventsTopic = v
	}
	if v := os.Getenv("ORACLE_WS_URL"); v != "" {
		c.Oracle.WebSocketURL = v
	}
	if v := os.Getenv("ORACLE_HTTP_URL"); v != "" {
		c.Oracle.HTTPURL = v
	}
	if v := os.Getenv("REGISTRY_URL"); v != "" {
		c.Registry.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Renewal.TickSize == "" {
		return fmt.Errorf("renewal.tick_size is required")
	}
	if c.Oracle.HTTPURL == "" && c.Oracle.WebSocketURL == "" {
		return fmt.Errorf("oracle.http_url or oracle.websocket_url is required")
	}
	return nil
}
