package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Supported attempt store backends
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Store    StoreConfig
	Guard    GuardConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestsPerMin int
	MetricsEnabled bool
}

type StoreConfig struct {
	Backend    string `validate:"oneof=postgres redis sqlite"`
	SQLitePath string
}

// GuardConfig is the recognized option set of the login gate. It can be
// supplied as a TOML file ([guard] table) and overridden per key from the environment.
type GuardConfig struct {
	Enabled                bool     `toml:"enabled"`
	MaxAttemptsPerIP       int      `toml:"max_attempts_per_ip" validate:"gte=1"`
	LockoutDurationMinutes int      `toml:"lockout_duration_minutes" validate:"gte=1,lte=1440"`
	MaxAttemptsPerUsername int      `toml:"max_attempts_per_username" validate:"gte=1"`
	TrustedProxies         []string `toml:"trusted_proxies" validate:"dive,ip|cidr"`
}

type AuthConfig struct {
	UsersFile           string
	TimingDelayBaseMs   int
	TimingDelayRandomMs int
}

// fileConfig is the layout of GUARD_CONFIG_FILE
type fileConfig struct {
	Guard GuardConfig `toml:"guard"`
}

// DefaultGuardConfig returns the documented defaults
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Enabled:                true,
		MaxAttemptsPerIP:       5,
		LockoutDurationMinutes: 10,
		MaxAttemptsPerUsername: 10,
		TrustedProxies:         []string{},
	}
}

var validate = validator.New()

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	guard, err := loadGuardConfig(getEnv("GUARD_CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatekeeper"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "gk"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestsPerMin: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 30),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv("GUARD_STORE", StorePostgres)),
			SQLitePath: getEnv("GUARD_SQLITE_PATH", "gatekeeper.db"),
		},
		Guard: applyGuardEnv(guard),
		Auth: AuthConfig{
			UsersFile:           getEnv("GUARD_USERS_FILE", ""),
			TimingDelayBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration for unusable values
func (c *Config) Validate() error {
	if err := validate.Struct(c.Store); err != nil {
		return fmt.Errorf("invalid GUARD_STORE %q: %w", c.Store.Backend, err)
	}
	if err := validate.Struct(c.Guard); err != nil {
		return fmt.Errorf("invalid guard configuration: %w", err)
	}
	if c.Store.Backend == StorePostgres && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required for the postgres store")
	}
	return nil
}

// loadGuardConfig starts from defaults and overlays the optional TOML file
func loadGuardConfig(path string) (GuardConfig, error) {
	fc := fileConfig{Guard: DefaultGuardConfig()}
	if path == "" {
		return fc.Guard, nil
	}

	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return GuardConfig{}, fmt.Errorf("failed to parse guard config file %s: %w", path, err)
	}
	return fc.Guard, nil
}

// applyGuardEnv lets environment variables override individual guard keys
func applyGuardEnv(g GuardConfig) GuardConfig {
	g.Enabled = getEnvAsBool("GUARD_ENABLED", g.Enabled)
	g.MaxAttemptsPerIP = getEnvAsInt("GUARD_MAX_ATTEMPTS_PER_IP", g.MaxAttemptsPerIP)
	g.LockoutDurationMinutes = getEnvAsInt("GUARD_LOCKOUT_DURATION_MINUTES", g.LockoutDurationMinutes)
	g.MaxAttemptsPerUsername = getEnvAsInt("GUARD_MAX_ATTEMPTS_PER_USERNAME", g.MaxAttemptsPerUsername)
	if proxies := getEnv("GUARD_TRUSTED_PROXIES", ""); proxies != "" {
		g.TrustedProxies = splitList(proxies)
	}
	return g
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
