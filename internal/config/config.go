package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	BucketPhotos string
	UseSSL       bool
	Region       string
	PresignTTL   time.Duration
}

// AuthConfig holds the token and cookie policy.
type AuthConfig struct {
	JWTSecret        string
	Issuer           string
	Audience         string
	TokenTTL         time.Duration
	CookieName       string
	CookieSecure     bool
	AllowAdminSignup bool
	RevokeOnLogout   bool
	LoginRate        float64
	LoginBurst       int
}

type AnalyzerConfig struct {
	URL            string
	Timeout        time.Duration
	ScoreThreshold float64
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Auth             AuthConfig
	Analyzer         AnalyzerConfig
	Worker           WorkerConfig
	AllowCORSOrigins []string
}

var ErrMissingJWTSecret = errors.New("auth.jwtsecret is required")

func Load() (*AppConfig, error) {
	if strings.ToLower(os.Getenv("DECENTRA_ENVIRONMENT")) != "production" {
		_ = godotenv.Load()
	}

	v := newViper("config")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// No default on purpose: unset means "Secure in production only".
	if v.IsSet("auth.cookiesecure") {
		cfg.Auth.CookieSecure = v.GetBool("auth.cookiesecure")
	} else {
		cfg.Auth.CookieSecure = cfg.Environment == "production"
	}

	return &cfg, nil
}

// Validate checks settings the API cannot run without.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.tokenttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	return nil
}

func newViper(name string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("DECENTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "mapstructure"
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5002)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "3m") // uploads wait for the analyzer
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketphotos", "decentra-photos")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignttl", "1h")

	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "decentra-api")
	v.SetDefault("auth.audience", "decentra-web")
	v.SetDefault("auth.tokenttl", "24h")
	v.SetDefault("auth.cookiename", "jwt-token")
	v.SetDefault("auth.allowadminsignup", false)
	v.SetDefault("auth.revokeonlogout", false)
	v.SetDefault("auth.loginrate", 1.0)
	v.SetDefault("auth.loginburst", 10)

	v.SetDefault("analyzer.url", "http://localhost:8000")
	v.SetDefault("analyzer.timeout", "2m")
	v.SetDefault("analyzer.scorethreshold", 0.5)

	setWorkerDefaults(v)
}
