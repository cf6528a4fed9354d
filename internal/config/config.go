package config // package config loads application configuration from the environment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv" // optional .env file for local development
	"github.com/spf13/viper"   // env lookup with typed getters and defaults
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; see defaults() for the fallback of each one.
type Config struct {
	Env      string // application environment (development, test, production)
	Port     string // HTTP port to listen on
	LogLevel string // zap level

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	DBConnectRetry time.Duration // how long startup keeps retrying the first ping

	JWTSecret    string        // secret used to sign JWTs
	JWTAlgorithm string        // HS256, HS384 or HS512
	AccessTTL    time.Duration // access token lifetime
	RefreshTTL   time.Duration // refresh token lifetime
	ResetTTL     time.Duration // password reset token lifetime

	BcryptCost        int           // bcrypt cost for password hashing
	PasswordMinLength int           // minimum accepted password length
	RequestTimeout    time.Duration // per-request deadline for store calls
	ExposeResetToken  bool          // return reset tokens in responses (development only)

	CORSOrigins []string // allowed CORS origins
	RabbitMQURL string   // broker for auth events; empty disables publishing

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8005")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_USER", "auth")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "auth_service")
	v.SetDefault("DB_CONNECT_RETRY", "30s")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("REQUEST_TIMEOUT", "5s")
	v.SetDefault("EXPOSE_RESET_TOKEN", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")
	v.SetDefault("RABBITMQ_URL", "")
	redisDefaults(v)
	rateLimitDefaults(v)
	cacheDefaults(v)
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is normal outside development

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := Config{
		Env:               v.GetString("APP_ENV"),
		Port:              v.GetString("APP_PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DBUser:            v.GetString("DB_USER"),
		DBPass:            v.GetString("DB_PASS"),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBName:            v.GetString("DB_NAME"),
		DBConnectRetry:    v.GetDuration("DB_CONNECT_RETRY"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTAlgorithm:      strings.ToUpper(v.GetString("JWT_ALGORITHM")),
		AccessTTL:         v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTTL:        v.GetDuration("REFRESH_TOKEN_TTL"),
		ResetTTL:          v.GetDuration("RESET_TOKEN_TTL"),
		BcryptCost:        v.GetInt("BCRYPT_COST"),
		PasswordMinLength: v.GetInt("PASSWORD_MIN_LENGTH"),
		RequestTimeout:    v.GetDuration("REQUEST_TIMEOUT"),
		ExposeResetToken:  v.GetBool("EXPOSE_RESET_TOKEN"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		Redis:             loadRedis(v),
		RateLimit:         loadRateLimit(v),
		Cache:             loadCache(v),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production safeguards.
func (c Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ResetTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RefreshTTL < c.AccessTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31 (got %d)", c.BcryptCost))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.IsProduction() && c.ExposeResetToken {
		errs = append(errs, errors.New("EXPOSE_RESET_TOKEN cannot be enabled in production"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
