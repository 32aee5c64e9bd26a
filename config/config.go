package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultSyncStepTimeout    = 5 * time.Second
	defaultCacheSize          = 4096
	defaultCacheTTL           = 30 * time.Second
	defaultSampleTTL          = 6 * time.Hour
	defaultSlowQuery          = 200 * time.Millisecond
	defaultMonitorInterval    = 5 * time.Second
	defaultPoolWaitWarn       = 50 * time.Millisecond
)

// DefaultLadder is the refetch schedule used when sync.ladder is not configured.
var DefaultLadder = []time.Duration{500 * time.Millisecond, 1750 * time.Millisecond, 3500 * time.Millisecond}

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Database tunes query logging and the pool and replica monitor
	Database *DatabaseConfig `json:"database" yaml:"database"`

	// Migration controls the embedded goose migrations run on start
	Migration *MigrationConfig `json:"migration" yaml:"migration"`

	SecretKey struct {
		Access string `json:"access" yaml:"access"`
	} `json:"secretKey" yaml:"secretKey"`

	// Sync configures the post-mutation convergence ladder
	Sync *SyncConfig `json:"sync" yaml:"sync"`

	// Cache configures the view cache the synchronizer invalidates
	Cache *CacheConfig `json:"cache" yaml:"cache"`

	// Redis connection shared by the redis cache and the redis location store
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	// Tracking configures the live location store
	Tracking *TrackingConfig `json:"tracking" yaml:"tracking"`

	// Booking holds booking lifecycle rules
	Booking *BookingConfig `json:"booking" yaml:"booking"`

	// Firebase configuration for push notifications
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// QRCode configuration for booking passes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	// PubSub configuration for event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// Payment configuration for the payment verifier
	Payment *PaymentConfig `json:"payment" yaml:"payment"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// DatabaseConfig defines query logging and pool monitoring
type DatabaseConfig struct {
	// Queries slower than this are logged at warn
	SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`

	// How often pool statistics and replica lag are sampled
	MonitorInterval time.Duration `json:"monitorInterval" yaml:"monitorInterval"`

	// Pool wait time per interval above which a warning is logged
	PoolWaitWarn time.Duration `json:"poolWaitWarn" yaml:"poolWaitWarn"`

	// Replica lag above which a warning is logged; 0 uses the last sync ladder step
	ReplicaLagWarn time.Duration `json:"replicaLagWarn" yaml:"replicaLagWarn"`
}

// MigrationConfig defines schema migration behaviour
type MigrationConfig struct {
	// Run embedded migrations against the primary before serving
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
}

// SyncConfig defines the convergence ladder used after every mutation
type SyncConfig struct {
	// Delays after the mutation at which views are invalidated and refetched again
	Ladder []time.Duration `json:"ladder" yaml:"ladder"`

	// Upper bound for a single refetch or verification read
	StepTimeout time.Duration `json:"stepTimeout" yaml:"stepTimeout"`
}

// CacheConfig defines the view cache
type CacheConfig struct {
	// Provider type: "memory" for in-process LRU or "redis"
	Provider string `json:"provider" yaml:"provider"`

	// Maximum entries held by the memory provider
	Size int `json:"size" yaml:"size"`

	// Entry lifetime for both providers
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Key prefix for the redis provider
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// RedisConfig defines the redis connection
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// TrackingConfig defines the live location store
type TrackingConfig struct {
	// Store type: "postgres" or "redis"
	Store string `json:"store" yaml:"store"`

	// Lifetime of the latest sample in the redis store
	SampleTTL time.Duration `json:"sampleTtl" yaml:"sampleTtl"`
}

// BookingConfig defines booking lifecycle rules
type BookingConfig struct {
	// Bookings scheduled earlier than now minus this tolerance are rejected
	ScheduleTolerance time.Duration `json:"scheduleTolerance" yaml:"scheduleTolerance"`
}

// FirebaseConfig defines Firebase configuration for push notifications
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
	BaseURL              string `json:"baseUrl" yaml:"baseUrl"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local", "google" or "rabbitmq"; empty disables publishing
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// AMQP URL and queue name (for rabbitmq provider)
	RabbitMQURL   string `json:"rabbitmqUrl" yaml:"rabbitmqUrl"`
	RabbitMQQueue string `json:"rabbitmqQueue" yaml:"rabbitmqQueue"`
}

// PaymentConfig defines the payment verifier
type PaymentConfig struct {
	// Provider type: "noop" trusts the client reference, "stripe" looks up the PaymentIntent
	Provider  string `json:"provider" yaml:"provider"`
	SecretKey string `json:"secretKey" yaml:"secretKey"`
	Currency  string `json:"currency" yaml:"currency"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	keys := envKeyIndex(koanfInstance.Raw())

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return keys.resolve(k), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				// SYNC_LADDER=500ms,2s,4s
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	applyDefaults(cfg)

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}

// applyDefaults fills optional sections so that consumers never nil-check them.
func applyDefaults(cfg *Config) {
	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}
	if cfg.Database.SlowQueryThreshold <= 0 {
		cfg.Database.SlowQueryThreshold = defaultSlowQuery
	}
	if cfg.Database.MonitorInterval <= 0 {
		cfg.Database.MonitorInterval = defaultMonitorInterval
	}
	if cfg.Database.PoolWaitWarn <= 0 {
		cfg.Database.PoolWaitWarn = defaultPoolWaitWarn
	}

	if cfg.Migration == nil {
		cfg.Migration = &MigrationConfig{}
	}

	if cfg.Sync == nil {
		cfg.Sync = &SyncConfig{}
	}
	if len(cfg.Sync.Ladder) == 0 {
		cfg.Sync.Ladder = DefaultLadder
	}
	if cfg.Sync.StepTimeout <= 0 {
		cfg.Sync.StepTimeout = defaultSyncStepTimeout
	}
	if cfg.Database.ReplicaLagWarn <= 0 {
		cfg.Database.ReplicaLagWarn = cfg.Sync.Ladder[len(cfg.Sync.Ladder)-1]
	}

	if cfg.Cache == nil {
		cfg.Cache = &CacheConfig{}
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = defaultCacheSize
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}

	if cfg.Tracking == nil {
		cfg.Tracking = &TrackingConfig{}
	}
	if cfg.Tracking.SampleTTL <= 0 {
		cfg.Tracking.SampleTTL = defaultSampleTTL
	}

	if cfg.Booking == nil {
		cfg.Booking = &BookingConfig{}
	}
}
