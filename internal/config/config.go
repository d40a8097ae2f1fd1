package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Carriers       CarriersConfig
	Workflow       WorkflowConfig
	Routing        RoutingConfig
	Fragments      FragmentsConfig
	Deduplication  DeduplicationConfig
	Admin          AdminConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string    `mapstructure:"brokers"`
	MessageTopic string      `mapstructure:"message_topic"`
	StatusTopic  string      `mapstructure:"status_topic"`
	Retry        RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CarriersConfig holds the per-carrier credential blocks. They are injected at
// process start and consumed read-only by validators and adapters.
type CarriersConfig struct {
	WhatsApp  MetaCarrierConfig `mapstructure:"whatsapp"`
	Messenger MetaCarrierConfig `mapstructure:"messenger"`
	SMSGW     SMSGatewayConfig  `mapstructure:"smsgw"`
	Telegram  TelegramConfig    `mapstructure:"telegram"`
	Webchat   WebchatConfig     `mapstructure:"webchat"`
	RCS       RCSConfig         `mapstructure:"rcs"`
	OrgID     string            `mapstructure:"org_id"`
}

type MetaCarrierConfig struct {
	AppSecret   string `mapstructure:"app_secret"`
	VerifyToken string `mapstructure:"verify_token"`
	AppID       string `mapstructure:"app_id"`
}

type SMSGatewayConfig struct {
	AccountID string `mapstructure:"account_id"`
	AuthToken string `mapstructure:"auth_token"`
}

type TelegramConfig struct {
	SecretToken string `mapstructure:"secret_token"`
	BotID       string `mapstructure:"bot_id"`
}

type WebchatConfig struct {
	// APIKeys maps organization id to its widget API key.
	APIKeys map[string]string `mapstructure:"api_keys"`
}

type RCSConfig struct {
	AgentID      string   `mapstructure:"agent_id"`
	TrustedCIDRs []string `mapstructure:"trusted_cidrs"`
}

type WorkflowConfig struct {
	EvaluatorURL string           `mapstructure:"evaluator_url"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	PreRouting   PreRoutingConfig `mapstructure:"prerouting"`
}

type PreRoutingConfig struct {
	ReloadIntervalSeconds int `mapstructure:"reload_interval_seconds"`
}

type RoutingConfig struct {
	ForwardTimeout time.Duration `mapstructure:"forward_timeout"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

type FragmentsConfig struct {
	TTLSeconds           int `mapstructure:"ttl_seconds"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

type DeduplicationConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type AdminConfig struct {
	Token     string          `mapstructure:"token"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}
