package app

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ejjahanieklu/ehn/internal/docstore"
	"github.com/ejjahanieklu/ehn/internal/messaging/kafka"
	"github.com/ejjahanieklu/ehn/internal/notify"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverMongo    = "mongo"
	StorageDriverPostgres = "postgres"
)

const (
	envPrefix       = "EHN"
	configName      = "ehn"
	systemConfigDir = "/etc/ehn"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver       string
	MongoURI            string
	MongoDatabase       string
	MongoMode           string
	PostgresDSN         string
	PostgresAutoMigrate bool
	StoreOpTimeout      time.Duration

	NotifyTimeout time.Duration
	NotifyBuffer  int

	RedisAddr    string
	RedisChannel string

	// KafkaBrokers это список брокеров через запятую; пусто отключает Kafka.
	KafkaBrokers    string
	KafkaTopic      string
	KafkaGroup      string
	KafkaMaxRetries int

	CleanupInterval  time.Duration
	CleanupBatchSize int

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":3000",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		StorageDriver:       StorageDriverMemory,
		MongoDatabase:       docstore.DefaultDatabase,
		MongoMode:           "session",
		PostgresAutoMigrate: true,
		StoreOpTimeout:      docstore.DefaultOpTimeout,
		NotifyTimeout:       2 * time.Second,
		NotifyBuffer:        16,
		RedisChannel:        notify.DefaultRedisChannel,
		KafkaTopic:          kafka.TopicOrderEvents,
		KafkaGroup:          "ehn-cascade",
		KafkaMaxRetries:     3,
		CleanupInterval:     10 * time.Minute,
		CleanupBatchSize:    500,
		ShutdownTimeout:     5 * time.Second,
	}
}

// NewViper готовит viper: значения по умолчанию, файл ehn.yaml (или
// configFile) и переменные окружения EHN_*, где точка заменена на "_".
func NewViper(configFile string) (*viper.Viper, error) {
	def := DefaultConfig()
	v := viper.New()

	v.SetDefault("http.addr", def.HTTPAddr)
	v.SetDefault("grpc.addr", def.GRPCAddr)
	v.SetDefault("metrics.addr", def.MetricsAddr)
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("storage.driver", def.StorageDriver)
	v.SetDefault("storage.mongo.uri", def.MongoURI)
	v.SetDefault("storage.mongo.database", def.MongoDatabase)
	v.SetDefault("storage.mongo.mode", def.MongoMode)
	v.SetDefault("storage.postgres.dsn", def.PostgresDSN)
	v.SetDefault("storage.postgres.auto_migrate", def.PostgresAutoMigrate)
	v.SetDefault("storage.op_timeout", def.StoreOpTimeout.String())
	v.SetDefault("notify.timeout", def.NotifyTimeout.String())
	v.SetDefault("notify.buffer", def.NotifyBuffer)
	v.SetDefault("redis.addr", def.RedisAddr)
	v.SetDefault("redis.channel", def.RedisChannel)
	v.SetDefault("kafka.brokers", def.KafkaBrokers)
	v.SetDefault("kafka.topic", def.KafkaTopic)
	v.SetDefault("kafka.group", def.KafkaGroup)
	v.SetDefault("kafka.max_retries", def.KafkaMaxRetries)
	v.SetDefault("cleanup.interval", def.CleanupInterval.String())
	v.SetDefault("cleanup.batch_size", def.CleanupBatchSize)
	v.SetDefault("shutdown.timeout", def.ShutdownTimeout.String())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(systemConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// LoadConfig читает Config из viper. Невалидные значения заменяются
// значениями по умолчанию, по предупреждению на каждое.
func LoadConfig(v *viper.Viper) (Config, []string) {
	def := DefaultConfig()
	var warnings []string

	str := func(key, fallback string) string {
		if value := strings.TrimSpace(v.GetString(key)); value != "" {
			return value
		}
		return fallback
	}
	positiveDuration := func(key string, fallback time.Duration) time.Duration {
		raw := strings.TrimSpace(v.GetString(key))
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			warnings = append(warnings, fmt.Sprintf("invalid %s=%q, using %s", key, raw, fallback))
			return fallback
		}
		return d
	}
	positiveInt := func(key string, fallback int) int {
		n := v.GetInt(key)
		if n <= 0 {
			warnings = append(warnings, fmt.Sprintf("invalid %s=%q, using %d", key, v.GetString(key), fallback))
			return fallback
		}
		return n
	}

	cfg := Config{
		HTTPAddr:            str("http.addr", def.HTTPAddr),
		GRPCAddr:            str("grpc.addr", def.GRPCAddr),
		MetricsAddr:         str("metrics.addr", def.MetricsAddr),
		LogLevel:            strings.ToLower(str("log.level", def.LogLevel)),
		StorageDriver:       strings.ToLower(str("storage.driver", def.StorageDriver)),
		MongoURI:            str("storage.mongo.uri", def.MongoURI),
		MongoDatabase:       str("storage.mongo.database", def.MongoDatabase),
		MongoMode:           strings.ToLower(str("storage.mongo.mode", def.MongoMode)),
		PostgresDSN:         str("storage.postgres.dsn", def.PostgresDSN),
		PostgresAutoMigrate: v.GetBool("storage.postgres.auto_migrate"),
		StoreOpTimeout:      positiveDuration("storage.op_timeout", def.StoreOpTimeout),
		NotifyTimeout:       positiveDuration("notify.timeout", def.NotifyTimeout),
		NotifyBuffer:        positiveInt("notify.buffer", def.NotifyBuffer),
		RedisAddr:           str("redis.addr", def.RedisAddr),
		RedisChannel:        str("redis.channel", def.RedisChannel),
		KafkaBrokers:        str("kafka.brokers", def.KafkaBrokers),
		KafkaTopic:          str("kafka.topic", def.KafkaTopic),
		KafkaGroup:          str("kafka.group", def.KafkaGroup),
		KafkaMaxRetries:     v.GetInt("kafka.max_retries"),
		CleanupInterval:     positiveDuration("cleanup.interval", def.CleanupInterval),
		CleanupBatchSize:    positiveInt("cleanup.batch_size", def.CleanupBatchSize),
		ShutdownTimeout:     positiveDuration("shutdown.timeout", def.ShutdownTimeout),
	}

	if cfg.KafkaMaxRetries < 0 {
		warnings = append(warnings, fmt.Sprintf("invalid kafka.max_retries=%d, using %d", cfg.KafkaMaxRetries, def.KafkaMaxRetries))
		cfg.KafkaMaxRetries = def.KafkaMaxRetries
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		warnings = append(warnings, fmt.Sprintf("invalid log.level=%q, using %s", cfg.LogLevel, def.LogLevel))
		cfg.LogLevel = def.LogLevel
	}
	return cfg, warnings
}

// Brokers возвращает список брокеров Kafka.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
