package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type EngineKind string

const (
	EngineAthena EngineKind = "athena"
	EngineDuckDB EngineKind = "duckdb"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Engine        EngineConfig
	Athena        AthenaConfig
	ObjectStore   ObjectStoreConfig
	Catalog       CatalogConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// EngineConfig drives the query orchestration loop: how often the engine is
// polled, how many polls are allowed, and the wall-clock budget for a single
// request.
type EngineConfig struct {
	Kind            EngineKind
	PollInterval    time.Duration
	MaxPollAttempts int
	QueryTimeout    time.Duration
	MaxSQLBytes     int
	ResultsPageSize int
}

type AthenaConfig struct {
	Region         string
	Workgroup      string
	Database       string
	Catalog        string
	OutputLocation string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type CatalogConfig struct {
	// Path points at a named-query YAML file. Empty means the embedded
	// default catalog.
	Path string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYDESK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYDESK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "QUERYDESK_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYDESK_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYDESK_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYDESK_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyEngineKind(lookup, "QUERYDESK_ENGINE_KIND", &cfg.Engine.Kind); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYDESK_ENGINE_POLL_INTERVAL", &cfg.Engine.PollInterval); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYDESK_ENGINE_MAX_POLL_ATTEMPTS", &cfg.Engine.MaxPollAttempts); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYDESK_ENGINE_QUERY_TIMEOUT", &cfg.Engine.QueryTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYDESK_ENGINE_MAX_SQL_BYTES", &cfg.Engine.MaxSQLBytes); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYDESK_ENGINE_RESULTS_PAGE_SIZE", &cfg.Engine.ResultsPageSize); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_ATHENA_REGION", &cfg.Athena.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_ATHENA_WORKGROUP", &cfg.Athena.Workgroup); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_ATHENA_DATABASE", &cfg.Athena.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_ATHENA_CATALOG", &cfg.Athena.Catalog); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_ATHENA_OUTPUT_LOCATION", &cfg.Athena.OutputLocation); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYDESK_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYDESK_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_CATALOG_PATH", &cfg.Catalog.Path); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYDESK_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "QUERYDESK_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "QUERYDESK_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYDESK_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Engine.PollInterval <= 0 {
		return Config{}, fmt.Errorf("engine poll interval must be positive")
	}
	if cfg.Engine.MaxPollAttempts <= 0 {
		return Config{}, fmt.Errorf("engine max poll attempts must be positive")
	}
	if cfg.Engine.QueryTimeout <= 0 {
		return Config{}, fmt.Errorf("engine query timeout must be positive")
	}
	if cfg.Engine.MaxSQLBytes <= 0 {
		return Config{}, fmt.Errorf("engine max sql bytes must be positive")
	}
	if cfg.Engine.ResultsPageSize <= 0 {
		return Config{}, fmt.Errorf("engine results page size must be positive")
	}
	if cfg.Engine.Kind == EngineAthena && cfg.Athena.OutputLocation == "" {
		return Config{}, fmt.Errorf("athena output location is required for the athena engine")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querydesk-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 150 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			Kind:            EngineDuckDB,
			PollInterval:    time.Second,
			MaxPollAttempts: 120,
			QueryTimeout:    2 * time.Minute,
			MaxSQLBytes:     256 * 1024,
			ResultsPageSize: 1000,
		},
		Athena: AthenaConfig{
			Region:    "us-east-1",
			Workgroup: "primary",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querydesk-results",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Engine.PollInterval = 10 * time.Millisecond
		cfg.Engine.QueryTimeout = 5 * time.Second
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Engine.Kind = EngineAthena
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyEngineKind(lookup LookupFunc, key string, dst *EngineKind) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	kind := EngineKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case EngineAthena, EngineDuckDB:
		*dst = kind
		return nil
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
