package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"userapi/internal/domain/constants"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultHTTPPort           = 8000

	// DefaultBcryptCost is the work factor used when auth.bcryptCost is unset.
	// At cost 12 a single hash takes roughly 200-300ms on current server CPUs.
	DefaultBcryptCost = 12
)

type Config struct {
	App struct {
		Name    string `json:"name" yaml:"name"`
		Version string `json:"version" yaml:"version"`
	} `json:"app" yaml:"app"`

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

	Postgres *PostgresConfig `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	Pagination *PaginationConfig `json:"pagination" yaml:"pagination"`

	// PubSub configuration for user event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PostgresConfig defines the primary connection, optional read replicas and pool limits
type PostgresConfig struct {
	URL      string          `json:"url" yaml:"url"`
	Replicas []ReplicaConfig `json:"replicas" yaml:"replicas"`

	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`

	// Interval between connection pool statistics samples; zero disables sampling
	PoolMonitorInterval time.Duration `json:"poolMonitorInterval" yaml:"poolMonitorInterval"`

	// Create or migrate the users table on startup
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
}

// ReplicaConfig defines a read-only replica connection
type ReplicaConfig struct {
	URL string `json:"url" yaml:"url"`
}

// AuthConfig defines credential hashing configuration
type AuthConfig struct {
	BcryptCost int `json:"bcryptCost" yaml:"bcryptCost"`

	// Maximum number of concurrent hash or verify computations; zero means runtime.NumCPU()
	HashConcurrency int `json:"hashConcurrency" yaml:"hashConcurrency"`
}

// PaginationConfig defines limits for list endpoints
type PaginationConfig struct {
	DefaultLimit int `json:"defaultLimit" yaml:"defaultLimit"`
	MaxLimit     int `json:"maxLimit" yaml:"maxLimit"`
}

// PubSubConfig defines event publishing configuration
type PubSubConfig struct {
	// Provider type: "", "local", "google", "kafka" or "nats"
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Topic for google and kafka providers, subject for nats
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// Kafka broker addresses (for kafka provider)
	Brokers []string `json:"brokers" yaml:"brokers"`

	// NATS server URL (for nats provider)
	URL string `json:"url" yaml:"url"`

	// Upper bound for a single publish call
	PublishTimeout time.Duration `json:"publishTimeout" yaml:"publishTimeout"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate

			break
		}
	}

	if configFile == "" {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Example: POSTGRES_MAXOPENCONNS -> postgres.maxOpenConns
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: strings.EqualFold,
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

	if cfg.Postgres == nil {
		cfg.Postgres = &PostgresConfig{}
	}

	// DATABASE_URL takes precedence over postgres.url for container deployments.
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		cfg.Postgres.URL = url
	}

	if replicas := buildReplicasFromEnv(); len(replicas) > 0 {
		cfg.Postgres.Replicas = replicas
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills unset values and rejects settings the service cannot run with.
func (cfg *Config) applyDefaults() error {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = defaultHTTPPort
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = DefaultBcryptCost
	}
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return errors.Errorf("auth.bcryptCost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cfg.Auth.BcryptCost)
	}
	if cfg.Auth.HashConcurrency <= 0 {
		cfg.Auth.HashConcurrency = runtime.NumCPU()
	}

	if cfg.Pagination == nil {
		cfg.Pagination = &PaginationConfig{}
	}
	if cfg.Pagination.MaxLimit <= 0 {
		cfg.Pagination.MaxLimit = constants.MaxListLimit
	}
	if cfg.Pagination.DefaultLimit <= 0 {
		cfg.Pagination.DefaultLimit = constants.DefaultListLimit
	}
	if cfg.Pagination.DefaultLimit > cfg.Pagination.MaxLimit {
		return errors.Errorf("pagination.defaultLimit %d exceeds pagination.maxLimit %d",
			cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_URL, starting at 0 with no gaps.
func buildReplicasFromEnv() []ReplicaConfig {
	var replicas []ReplicaConfig

	for i := 0; ; i++ {
		url := os.Getenv("POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_URL")
		if url == "" {
			break
		}

		replicas = append(replicas, ReplicaConfig{URL: url})
	}

	return replicas
}
