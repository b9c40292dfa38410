package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	authapi "warden/cmd/internal/auth/api"
	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/auth/edge"
	"warden/cmd/internal/auth/revocation"
	"warden/cmd/internal/kv"
	"warden/cmd/internal/realtime"
	"warden/cmd/security/password"
)

// ErrConfig marks an invalid runtime configuration.
var ErrConfig = errors.New("app: invalid config")

// Config holds the settings of both binaries, loaded from the environment and
// an optional .env file.
type Config struct {
	HTTPAddr  string `mapstructure:"WARDEN_HTTP_ADDR"`
	LogLevel  string `mapstructure:"WARDEN_LOG_LEVEL"`
	LogFormat string `mapstructure:"WARDEN_LOG_FORMAT"`
	LogColor  bool   `mapstructure:"WARDEN_LOG_COLOR"`

	ReadHeaderTimeout time.Duration `mapstructure:"WARDEN_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"WARDEN_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"WARDEN_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"WARDEN_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `mapstructure:"WARDEN_HTTP_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"WARDEN_HTTP_MAX_HEADER_BYTES"`

	// JWTSecret is shared by the edge and the authority.
	JWTSecret  string        `mapstructure:"WARDEN_JWT_SECRET"`
	AccessTTL  time.Duration `mapstructure:"WARDEN_JWT_ACCESS_TTL"`
	RefreshTTL time.Duration `mapstructure:"WARDEN_JWT_REFRESH_TTL"`

	CookieSalt   string `mapstructure:"WARDEN_COOKIE_SALT"`
	CookieSecure bool   `mapstructure:"WARDEN_COOKIE_SECURE"`
	CookieDomain string `mapstructure:"WARDEN_COOKIE_DOMAIN"`

	RedisAddr            string        `mapstructure:"WARDEN_REDIS_ADDR"`
	RedisPassword        string        `mapstructure:"WARDEN_REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"WARDEN_REDIS_DB"`
	StoreTimeout         time.Duration `mapstructure:"WARDEN_STORE_TIMEOUT"`
	WatermarkFailureMode string        `mapstructure:"WARDEN_WATERMARK_FAILURE_MODE"`

	// DatabaseURL selects the Postgres user directory; empty uses memory.
	DatabaseURL        string `mapstructure:"WARDEN_DATABASE_URL"`
	DBMaxConns         int32  `mapstructure:"WARDEN_DB_MAX_CONNS"`
	DBMinConns         int32  `mapstructure:"WARDEN_DB_MIN_CONNS"`
	DBMigrate          bool   `mapstructure:"WARDEN_DB_MIGRATE"`
	ReadinessRequireDB bool   `mapstructure:"WARDEN_READINESS_REQUIRE_DB"`

	PasswordMemoryKiB   uint32 `mapstructure:"WARDEN_PASSWORD_MEMORY_KIB"`
	PasswordIterations  uint32 `mapstructure:"WARDEN_PASSWORD_ITERATIONS"`
	PasswordParallelism uint8  `mapstructure:"WARDEN_PASSWORD_PARALLELISM"`

	LoginIPMax    int           `mapstructure:"WARDEN_LOGIN_IP_MAX"`
	LoginIPWindow time.Duration `mapstructure:"WARDEN_LOGIN_IP_WINDOW"`

	EdgeUpstream     string   `mapstructure:"WARDEN_EDGE_UPSTREAM"`
	EdgeAuthorityURL string   `mapstructure:"WARDEN_EDGE_AUTHORITY_URL"`
	EdgePublicPaths  []string `mapstructure:"WARDEN_EDGE_PUBLIC_PATHS"`

	BootstrapAdminEmail    string `mapstructure:"WARDEN_BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `mapstructure:"WARDEN_BOOTSTRAP_ADMIN_PASSWORD"`

	CORSAllowedOrigins   []string `mapstructure:"WARDEN_CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `mapstructure:"WARDEN_CORS_ALLOW_CREDENTIALS"`
	CORSMaxAgeSeconds    int      `mapstructure:"WARDEN_CORS_MAX_AGE_SECONDS"`

	WSAllowedOrigins    []string      `mapstructure:"WARDEN_WS_ALLOWED_ORIGINS"`
	WSOriginRequired    bool          `mapstructure:"WARDEN_WS_ORIGIN_REQUIRED"`
	WSWriteTimeout      time.Duration `mapstructure:"WARDEN_WS_WRITE_TIMEOUT"`
	WSHeartbeatInterval time.Duration `mapstructure:"WARDEN_WS_HEARTBEAT_INTERVAL"`
}

func setDefaults(v *viper.Viper) {
	pw := password.DefaultConfig().Params
	gw := realtime.DefaultGatewayConfig()
	api := authapi.DefaultConfig()

	v.SetDefault("WARDEN_HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("WARDEN_LOG_LEVEL", "info")
	v.SetDefault("WARDEN_LOG_FORMAT", "json")
	v.SetDefault("WARDEN_LOG_COLOR", true)

	v.SetDefault("WARDEN_HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	v.SetDefault("WARDEN_HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("WARDEN_HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("WARDEN_HTTP_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("WARDEN_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("WARDEN_HTTP_MAX_HEADER_BYTES", 1<<20)

	v.SetDefault("WARDEN_JWT_SECRET", "")
	v.SetDefault("WARDEN_JWT_ACCESS_TTL", 15*time.Minute)
	v.SetDefault("WARDEN_JWT_REFRESH_TTL", 168*time.Hour)

	v.SetDefault("WARDEN_COOKIE_SALT", "")
	v.SetDefault("WARDEN_COOKIE_SECURE", true)
	v.SetDefault("WARDEN_COOKIE_DOMAIN", "")

	v.SetDefault("WARDEN_REDIS_ADDR", kv.DefaultRedisConfig().Addr)
	v.SetDefault("WARDEN_REDIS_PASSWORD", "")
	v.SetDefault("WARDEN_REDIS_DB", 0)
	v.SetDefault("WARDEN_STORE_TIMEOUT", kv.DefaultRedisConfig().OpTimeout)
	v.SetDefault("WARDEN_WATERMARK_FAILURE_MODE", revocation.FailOpen.String())

	v.SetDefault("WARDEN_DATABASE_URL", "")
	v.SetDefault("WARDEN_DB_MAX_CONNS", 10)
	v.SetDefault("WARDEN_DB_MIN_CONNS", 0)
	v.SetDefault("WARDEN_DB_MIGRATE", false)
	v.SetDefault("WARDEN_READINESS_REQUIRE_DB", false)

	v.SetDefault("WARDEN_PASSWORD_MEMORY_KIB", pw.MemoryKiB)
	v.SetDefault("WARDEN_PASSWORD_ITERATIONS", pw.Iterations)
	v.SetDefault("WARDEN_PASSWORD_PARALLELISM", pw.Parallelism)

	v.SetDefault("WARDEN_LOGIN_IP_MAX", api.LoginIPMax)
	v.SetDefault("WARDEN_LOGIN_IP_WINDOW", api.LoginIPWindow)

	v.SetDefault("WARDEN_BOOTSTRAP_ADMIN_EMAIL", "")
	v.SetDefault("WARDEN_BOOTSTRAP_ADMIN_PASSWORD", "")

	v.SetDefault("WARDEN_EDGE_UPSTREAM", "")
	v.SetDefault("WARDEN_EDGE_AUTHORITY_URL", "")
	v.SetDefault("WARDEN_EDGE_PUBLIC_PATHS", edge.DefaultMiddlewareConfig().PublicPaths)

	v.SetDefault("WARDEN_CORS_ALLOWED_ORIGINS", []string{})
	v.SetDefault("WARDEN_CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("WARDEN_CORS_MAX_AGE_SECONDS", 600)

	v.SetDefault("WARDEN_WS_ALLOWED_ORIGINS", gw.AllowedOrigins)
	v.SetDefault("WARDEN_WS_ORIGIN_REQUIRED", gw.OriginRequired)
	v.SetDefault("WARDEN_WS_WRITE_TIMEOUT", gw.WriteTimeout)
	v.SetDefault("WARDEN_WS_HEARTBEAT_INTERVAL", gw.HeartbeatInterval)
}

// LoadConfig reads envFile when it exists, then the environment, which wins.
// An empty envFile means ".env".
func LoadConfig(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}

	v := viper.New()
	setDefaults(v)
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfig, envFile, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.EdgePublicPaths = splitList(cfg.EdgePublicPaths)
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.WSAllowedOrigins = splitList(cfg.WSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings shared by both binaries.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: WARDEN_HTTP_ADDR must be set", ErrConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: WARDEN_LOG_FORMAT must be json or pretty", ErrConfig)
	}
	if _, err := c.FailureMode(); err != nil {
		return fmt.Errorf("%w: WARDEN_WATERMARK_FAILURE_MODE: %v", ErrConfig, err)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("%w: WARDEN_STORE_TIMEOUT must be positive", ErrConfig)
	}
	return nil
}

// FailureMode parses WatermarkFailureMode.
func (c Config) FailureMode() (revocation.FailureMode, error) {
	return revocation.ParseFailureMode(c.WatermarkFailureMode)
}

// Codec maps the JWT settings.
func (c Config) Codec() codec.Config {
	return codec.Config{
		Secret:     []byte(c.JWTSecret),
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}
}

// Redis maps the shared store settings.
func (c Config) Redis() kv.RedisConfig {
	rc := kv.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	rc.OpTimeout = c.StoreTimeout
	rc.ReadTimeout = c.StoreTimeout
	rc.WriteTimeout = c.StoreTimeout
	return rc
}

// Passwords maps the argon2id cost settings.
func (c Config) Passwords() password.Config {
	pc := password.DefaultConfig()
	pc.Params.MemoryKiB = c.PasswordMemoryKiB
	pc.Params.Iterations = c.PasswordIterations
	pc.Params.Parallelism = c.PasswordParallelism
	return pc
}

// AuthAPI maps the cookie and throttle settings. The cookie lives as long as
// the refresh token.
func (c Config) AuthAPI() authapi.Config {
	ac := authapi.DefaultConfig()
	ac.CookieSecure = c.CookieSecure
	ac.CookieDomain = c.CookieDomain
	ac.CookieMaxAge = c.RefreshTTL
	ac.LoginIPMax = c.LoginIPMax
	ac.LoginIPWindow = c.LoginIPWindow
	return ac
}

// Gateway maps the realtime settings.
func (c Config) Gateway() realtime.GatewayConfig {
	gc := realtime.DefaultGatewayConfig()
	gc.AllowedOrigins = c.WSAllowedOrigins
	gc.OriginRequired = c.WSOriginRequired
	gc.WriteTimeout = c.WSWriteTimeout
	gc.HeartbeatInterval = c.WSHeartbeatInterval
	return gc
}

// Middleware maps the edge public paths.
func (c Config) Middleware() edge.MiddlewareConfig {
	mc := edge.DefaultMiddlewareConfig()
	if len(c.EdgePublicPaths) > 0 {
		mc.PublicPaths = c.EdgePublicPaths
	}
	return mc
}

// Proxy maps the edge backends.
func (c Config) Proxy() edge.ProxyConfig {
	return edge.ProxyConfig{
		AuthorityURL: c.EdgeAuthorityURL,
		UpstreamURL:  c.EdgeUpstream,
	}
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
