package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Roles       RolesConfig
	Units       UnitsConfig
	Attachments AttachmentsConfig
	Protocol    ProtocolConfig
	RateLimit   RateLimitConfig
	Internal    InternalConfig
	Catalogs    CatalogsConfig
	Audit       AuditConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how bearer tokens issued by the identity service are read.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RolesConfig maps the numeric profile codes carried in tokens to workflow roles.
type RolesConfig struct {
	DirectorCode  string
	AssistantCode string
	DistrictCode  string
	CentralCode   string
}

// UnitsConfig points to the units/DRE registry microservice.
type UnitsConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// AttachmentsConfig points to the attachments microservice.
type AttachmentsConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// ProtocolConfig controls protocol number rendering.
type ProtocolConfig struct {
	Prefix string
}

// RateLimitConfig bounds requests per principal.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	TTL               time.Duration
}

// InternalConfig guards service-to-service endpoints.
type InternalConfig struct {
	Token string
}

// CatalogsConfig tunes catalog caching.
type CatalogsConfig struct {
	CacheTTL time.Duration
}

// AuditConfig sizes the background audit writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Roles = RolesConfig{
		DirectorCode:  v.GetString("CODIGO_PERFIL_DIRETOR"),
		AssistantCode: v.GetString("CODIGO_PERFIL_ASSISTENTE_DIRECAO"),
		DistrictCode:  v.GetString("CODIGO_PERFIL_DRE"),
		CentralCode:   v.GetString("CODIGO_PERFIL_GIPE"),
	}

	cfg.Units = UnitsConfig{
		BaseURL:  strings.TrimRight(v.GetString("UNIDADES_BASE_URL"), "/"),
		Timeout:  parseDuration(v.GetString("UNIDADES_TIMEOUT"), 3*time.Second),
		CacheTTL: parseDuration(v.GetString("UNIDADES_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Attachments = AttachmentsConfig{
		BaseURL: strings.TrimRight(v.GetString("ANEXOS_BASE_URL"), "/"),
		Token:   v.GetString("ANEXOS_INTERNAL_TOKEN"),
		Timeout: parseDuration(v.GetString("ANEXOS_TIMEOUT"), 30*time.Second),
	}

	cfg.Protocol = ProtocolConfig{Prefix: v.GetString("PROTOCOL_PREFIX")}

	cfg.RateLimit = RateLimitConfig{
		Enabled:           v.GetBool("RATE_LIMIT_ENABLED"),
		RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:             v.GetInt("RATE_LIMIT_BURST"),
		TTL:               parseDuration(v.GetString("RATE_LIMIT_TTL"), 10*time.Minute),
	}

	cfg.Internal = InternalConfig{Token: v.GetString("INTERNAL_SERVICE_TOKEN")}

	cfg.Catalogs = CatalogsConfig{
		CacheTTL: parseDuration(v.GetString("CATALOGS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api-intercorrencias/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "intercorrencias")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CODIGO_PERFIL_DIRETOR", "3360")
	v.SetDefault("CODIGO_PERFIL_ASSISTENTE_DIRECAO", "3085")
	v.SetDefault("CODIGO_PERFIL_DRE", "0")
	v.SetDefault("CODIGO_PERFIL_GIPE", "1")

	v.SetDefault("UNIDADES_BASE_URL", "http://localhost:8001/api-unidades/v1/unidades")
	v.SetDefault("UNIDADES_TIMEOUT", "3s")
	v.SetDefault("UNIDADES_CACHE_TTL", "10m")

	v.SetDefault("ANEXOS_BASE_URL", "http://localhost:8002/api-anexos/v1")
	v.SetDefault("ANEXOS_INTERNAL_TOKEN", "")
	v.SetDefault("ANEXOS_TIMEOUT", "30s")

	v.SetDefault("PROTOCOL_PREFIX", "GIPE")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_TTL", "10m")

	v.SetDefault("INTERNAL_SERVICE_TOKEN", "")
	v.SetDefault("CATALOGS_CACHE_TTL", "5m")

	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
