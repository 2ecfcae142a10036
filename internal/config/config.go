package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/shared/logger"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// PathEnv names the environment variable holding the config file path
	PathEnv = "DUNGEON_CONFIG_PATH"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig                `yaml:"app"`
	Logging    LoggingConfig            `yaml:"logging"`
	Donjon     DonjonConfig             `yaml:"donjon"`
	Generation domain.GenerationRequest `yaml:"generation"`
	Catalog    CatalogConfig            `yaml:"catalog"`
	Output     OutputConfig             `yaml:"output"`
	Server     ServerConfig             `yaml:"server"`
	Database   DatabaseConfig           `yaml:"database"`
	RabbitMQ   RabbitMQConfig           `yaml:"rabbitmq"`
	Worker     WorkerConfig             `yaml:"worker"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	TimeFormat   string `yaml:"time_format"`
	NoColor      bool   `yaml:"no_color"`
}

// DonjonConfig holds the remote generation service settings
type DonjonConfig struct {
	BaseURL         string        `yaml:"base_url"`
	NameURL         string        `yaml:"name_url"`
	UserAgent       string        `yaml:"user_agent"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
}

// CatalogConfig points at the monster catalog; an empty path disables population
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig holds where the CLI writes dungeons
type OutputConfig struct {
	Directory   string `yaml:"directory"`
	EmbedImages bool   `yaml:"embed_images"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins limits CORS to these origins; empty allows any origin
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// ConnectRetries extra pings are made while the server is still starting
	ConnectRetries       int           `yaml:"connect_retries"`
	ConnectRetryInterval time.Duration `yaml:"connect_retry_interval"`
	// ApplySchema creates the dungeon_jobs table on startup when missing
	ApplySchema bool `yaml:"apply_schema"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
	// DeadLetterExchange collects deliveries the worker rejects; empty disables it
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	// Confirm waits for the broker to acknowledge every publish
	Confirm bool `yaml:"confirm"`
}

// ConsumerConfig holds RabbitMQ consumer settings.
// A zero prefetch count matches the worker concurrency.
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	Exclusive     bool `yaml:"exclusive"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// StaleAfter lets another worker reclaim a RUNNING job this long after its last heartbeat
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Default returns a configuration the CLI can run with and no file at all
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "dungeon-forge",
			Version:     "dev",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Donjon: DonjonConfig{
			BaseURL:         "https://donjon.bin.sh/fantasy/dungeon/",
			NameURL:         "https://donjon.bin.sh/fantasy/random/rpc-fantasy.fcgi?type=Dungeon%20Name&n=1",
			UserAgent:       "dungeon-forge",
			HTTPTimeout:     30 * time.Second,
			PollInterval:    time.Second,
			MaxPollAttempts: 300,
			PollTimeout:     5 * time.Minute,
		},
		Generation: domain.DefaultRequest(),
		Output: OutputConfig{
			Directory: ".",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:                 "localhost",
			Port:                 5432,
			SSLMode:              "disable",
			MaxOpenConns:         10,
			MaxIdleConns:         5,
			ConnMaxLifetime:      30 * time.Minute,
			ConnMaxIdleTime:      5 * time.Minute,
			ConnectRetries:       5,
			ConnectRetryInterval: 2 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			Host:       "localhost",
			Port:       5672,
			VHost:      "/",
			Exchange:   ExchangeConfig{Name: "dungeons", Type: "direct", Durable: true},
			Queue:      QueueConfig{Name: "dungeon_jobs", Durable: true, DeadLetterExchange: "dungeons.dead"},
			RoutingKey: "dungeon.generate",
			Connection: ConnectionConfig{
				RetryAttempts: 5,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts:     3,
				RetryInterval:     100 * time.Millisecond,
				BackoffMultiplier: 2,
				Confirm:           true,
			},
		},
		Worker: WorkerConfig{
			Concurrency:       2,
			JobTimeout:        10 * time.Minute,
			HeartbeatInterval: 15 * time.Second,
			StaleAfter:        2 * time.Minute,
			ShutdownTimeout:   30 * time.Second,
		},
	}
}

// Load reads and parses the configuration file over Default
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads path, then the DUNGEON_CONFIG_PATH file, falling back to Default
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the settings every entry point needs
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format)
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	if strings.TrimSpace(c.Donjon.BaseURL) == "" {
		return fmt.Errorf("donjon base_url is required")
	}

	if c.Donjon.PollInterval <= 0 {
		return fmt.Errorf("donjon poll_interval must be greater than 0")
	}

	if c.Donjon.MaxPollAttempts <= 0 {
		return fmt.Errorf("donjon max_poll_attempts must be greater than 0")
	}

	if c.Donjon.PollTimeout < 0 {
		return fmt.Errorf("donjon poll_timeout must not be negative")
	}

	// name and seed may stay empty; they are filled in per run
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("invalid generation defaults: %w", err)
	}

	return nil
}

// ValidateAPIConfig checks the settings of the API service
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateRabbitMQ()
}

// ValidateWorkerConfig checks the settings of the worker service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	// zero disables reclaiming; otherwise a live worker must never look stale
	if c.Worker.StaleAfter < 0 || (c.Worker.StaleAfter > 0 && c.Worker.StaleAfter <= c.Worker.HeartbeatInterval) {
		return fmt.Errorf("worker stale_after must be 0 or longer than heartbeat_interval")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
