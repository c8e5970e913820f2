package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Security  SecurityConfig  `mapstructure:"security"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AuthConfig struct {
	// APIKey authenticates callers of the ingestion endpoint.
	APIKey string `mapstructure:"api_key"`
	// JWTSecret signs and verifies staff access tokens for the query API.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SecurityConfig struct {
	// LogDir is the security log directory. Relative paths are resolved
	// against BaseDir.
	LogDir  string `mapstructure:"log_dir"`
	BaseDir string `mapstructure:"base_dir"`
	// LineFormat is the text-mirror template for security.log.
	LineFormat string `mapstructure:"line_format"`
	// CacheCapacity bounds the in-memory recent-events window.
	CacheCapacity int `mapstructure:"cache_capacity"`
	// RotationMaxAge is how old a log file must be before archival.
	RotationMaxAge time.Duration `mapstructure:"rotation_max_age"`
	// RotationInterval is how often the background rotation runs.
	RotationInterval time.Duration `mapstructure:"rotation_interval"`
	// AuditLogs toggles per-request audit logging.
	AuditLogs bool `mapstructure:"audit_logs"`
	// SensitiveURLPatterns are regular expressions for paths subject to
	// the stricter rate limit.
	SensitiveURLPatterns []string `mapstructure:"sensitive_url_patterns"`
	// HighRiskOperations are operation names flagged for extra audit
	// scrutiny regardless of path.
	HighRiskOperations []string `mapstructure:"high_risk_operations"`
	// PermissionRules map path prefixes and methods to required
	// permissions; first match wins, no match allows.
	PermissionRules []PermissionRule `mapstructure:"permission_rules"`
}

type PermissionRule struct {
	PathPrefix string   `mapstructure:"path_prefix"`
	Methods    []string `mapstructure:"methods"`
	Permission string   `mapstructure:"permission"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "memory" (default) or "redis".
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`

	GlobalLimit     int           `mapstructure:"global_limit"`
	GlobalWindow    time.Duration `mapstructure:"global_window"`
	SensitiveLimit  int           `mapstructure:"sensitive_limit"`
	SensitiveWindow time.Duration `mapstructure:"sensitive_window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.jwt_secret", "change-this-in-production")

	v.SetDefault("security.log_dir", "security_logs")
	v.SetDefault("security.base_dir", "")
	v.SetDefault("security.line_format", "")
	v.SetDefault("security.cache_capacity", 1000)
	v.SetDefault("security.rotation_max_age", "720h")
	v.SetDefault("security.rotation_interval", "1h")
	v.SetDefault("security.audit_logs", true)
	v.SetDefault("security.sensitive_url_patterns", []string{
		`^/graphql/.*$`,
		`^/api/.*$`,
		`^/dashboard/.*$`,
		`^/admin/.*$`,
	})
	v.SetDefault("security.high_risk_operations", []string{
		"createToken",
		"refreshToken",
		"accountRegister",
		"passwordChange",
		"updatePermission",
		"deleteCustomer",
		"deleteProduct",
		"deleteOrder",
	})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("rate_limit.global_limit", 60)
	v.SetDefault("rate_limit.global_window", "1m")
	v.SetDefault("rate_limit.sensitive_limit", 30)
	v.SetDefault("rate_limit.sensitive_window", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/secmon")
	}

	// Environment variables override
	v.SetEnvPrefix("SECMON")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Security.PermissionRules) == 0 {
		cfg.Security.PermissionRules = DefaultPermissionRules()
	}

	return &cfg, nil
}

// DefaultPermissionRules covers the storefront API surface the interceptor
// is expected to guard out of the box.
func DefaultPermissionRules() []PermissionRule {
	return []PermissionRule{
		{PathPrefix: "/api/orders/", Methods: []string{"PUT", "DELETE"}, Permission: "manage_orders"},
		{PathPrefix: "/api/products/", Methods: []string{"POST", "PUT", "DELETE"}, Permission: "manage_products"},
		{PathPrefix: "/dashboard/", Methods: nil, Permission: "access_dashboard"},
	}
}
