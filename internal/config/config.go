package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

type Config struct {
	Environment string
	Logging     LoggingConfig
	Server      ServerConfig
	Security    SecurityConfig
	Redis       RedisConfig
	Scylla      ScyllaConfig
	Kafka       KafkaConfig
	Clickhouse  ClickhouseConfig
	Elastic     ElasticConfig
	KMS         KMSConfig
	Hashing     HashingConfig
	Bucketing   BucketingConfig
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
}

// SecurityConfig carries the session and abuse-control policy for the
// admin back office and the public lead-capture forms.
type SecurityConfig struct {
	SessionTTL          time.Duration
	ExpirySweepInterval time.Duration
	LoginMaxAttempts    int
	LoginWindow         time.Duration
	FormMaxAttempts     int
	FormWindow          time.Duration
	AntiForgeryTTL      time.Duration
	CounterResetWindow  time.Duration
	MemoryCheckInterval time.Duration
	MemoryLimitBytes    uint64
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers    []string
	EventTopic string
	AlertTopic string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type ElasticConfig struct {
	URL        string
	Username   string
	Password   string
	AlertIndex string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type BucketingConfig struct {
	EventBuckets int
}

var current *Config

// LoadConfig reads configuration from the environment, loading a .env
// file first when present. The loaded config is retained for Get().
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: util.GetEnv("APP_ENV", "development"),
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", "json"),
		},
		Server: ServerConfig{
			Host:         util.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         util.GetEnvInt("SERVER_PORT", 8443),
			ReadTimeout:  util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			EnableTLS:    util.GetEnvBool("ENABLE_TLS", false),
			AutoCert:     util.GetEnvBool("AUTO_CERT", false),
			Domain:       util.GetEnv("TLS_DOMAIN", ""),
			CertFile:     util.GetEnv("TLS_CERT_FILE", ""),
			KeyFile:      util.GetEnv("TLS_KEY_FILE", ""),
			AutoCertDir:  util.GetEnv("AUTO_CERT_DIR", "./certs"),
			Email:        util.GetEnv("TLS_EMAIL", ""),
		},
		Security: SecurityConfig{
			SessionTTL:          util.GetEnvDuration("SESSION_TTL", 8*time.Hour),
			ExpirySweepInterval: util.GetEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			LoginMaxAttempts:    util.GetEnvInt("LOGIN_MAX_ATTEMPTS", 3),
			LoginWindow:         util.GetEnvDuration("LOGIN_WINDOW", 15*time.Minute),
			FormMaxAttempts:     util.GetEnvInt("FORM_MAX_ATTEMPTS", 10),
			FormWindow:          util.GetEnvDuration("FORM_WINDOW", time.Minute),
			AntiForgeryTTL:      util.GetEnvDuration("ANTIFORGERY_TTL", 30*time.Minute),
			CounterResetWindow:  util.GetEnvDuration("ALERT_COUNTER_RESET", time.Hour),
			MemoryCheckInterval: util.GetEnvDuration("MEMORY_CHECK_INTERVAL", 0),
			MemoryLimitBytes:    uint64(util.GetEnvInt("MEMORY_LIMIT_BYTES", 0)),
		},
		Redis: RedisConfig{
			URL:      util.GetEnv("REDIS_URL", "redis://localhost:6379"),
			Password: util.GetEnv("REDIS_PASSWORD", ""),
			DB:       util.GetEnvInt("REDIS_DB", 0),
			PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    util.GetEnvList("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: util.GetEnv("SCYLLA_KEYSPACE", "casa_hills_admin"),
			Username: util.GetEnv("SCYLLA_USERNAME", ""),
			Password: util.GetEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:    util.GetEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			EventTopic: util.GetEnv("KAFKA_EVENT_TOPIC", "admin-security-events"),
			AlertTopic: util.GetEnv("KAFKA_ALERT_TOPIC", "admin-security-alerts"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      util.GetEnv("CLICKHOUSE_URL", "http://localhost:8123"),
			Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database: util.GetEnv("CLICKHOUSE_DATABASE", "casa_hills_audit"),
		},
		Elastic: ElasticConfig{
			URL:        util.GetEnv("ELASTIC_URL", "http://localhost:9200"),
			Username:   util.GetEnv("ELASTIC_USERNAME", ""),
			Password:   util.GetEnv("ELASTIC_PASSWORD", ""),
			AlertIndex: util.GetEnv("ELASTIC_ALERT_INDEX", "security-alerts"),
		},
		KMS: KMSConfig{
			Enabled: util.GetEnvBool("KMS_ENABLED", false),
			KeyID:   util.GetEnv("KMS_KEY_ID", ""),
			Region:  util.GetEnv("KMS_REGION", "eu-west-1"),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  util.GetEnvInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    util.GetEnvInt("ARGON2_TIME_COST", 3),
			Argon2Parallelism: util.GetEnvInt("ARGON2_PARALLELISM", 2),
		},
		Bucketing: BucketingConfig{
			EventBuckets: util.GetEnvInt("EVENT_BUCKETS", 64),
		},
	}

	current = cfg
	return cfg
}

// Get returns the most recently loaded config
func Get() *Config {
	if current == nil {
		return LoadConfig()
	}
	return current
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
