package config

import (
	"errors"
	"io/fs"
	"strconv"
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

	Backend  BackendConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	CORS     CORSConfig
	Log      LogConfig
	Audit    AuditConfig
	Grid     GridConfig
	Session  SessionConfig
}

// BackendConfig points the console at the university REST backend.
type BackendConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxParallel int
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

// CacheConfig governs the shared Redis cache in front of the backend.
type CacheConfig struct {
	Enabled      bool
	ReferenceTTL time.Duration
	ScheduleTTL  time.Duration
	ProfileTTL   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuditConfig toggles the mutation audit trail.
type AuditConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// GridConfig describes the fixed axes of the schedule grid.
type GridConfig struct {
	Shifts        []Shift
	UpperWeekName string
	LowerWeekName string
}

// Shift is a named band of hour names rendered as one table.
type Shift struct {
	Name  string
	Hours []string
}

// SessionConfig controls viewer identity resolution.
type SessionConfig struct {
	SuperAdminRole string
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL:     strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout:     parseDuration(v.GetString("BACKEND_TIMEOUT"), 0),
		MaxParallel: v.GetInt("BACKEND_MAX_PARALLEL"),
	}

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

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		ReferenceTTL: parseDuration(v.GetString("REFERENCE_CACHE_TTL"), 10*time.Minute),
		ScheduleTTL:  parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), time.Minute),
		ProfileTTL:   parseDuration(v.GetString("PROFILE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT"),
		Workers: v.GetInt("AUDIT_WORKERS"),
		Retries: v.GetInt("AUDIT_RETRIES"),
	}

	cfg.Grid = GridConfig{
		Shifts:        ParseShifts(v.GetString("GRID_SHIFTS")),
		UpperWeekName: v.GetString("GRID_UPPER_WEEK"),
		LowerWeekName: v.GetString("GRID_LOWER_WEEK"),
	}

	cfg.Session = SessionConfig{
		SuperAdminRole: v.GetString("SUPER_ADMIN_ROLE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:8000")
	v.SetDefault("BACKEND_TIMEOUT", "")
	v.SetDefault("BACKEND_MAX_PARALLEL", 8)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REFERENCE_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULE_CACHE_TTL", "1m")
	v.SetDefault("PROFILE_CACHE_TTL", "5m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_RETRIES", 3)

	v.SetDefault("GRID_SHIFTS", DefaultShifts)
	v.SetDefault("GRID_UPPER_WEEK", "upper")
	v.SetDefault("GRID_LOWER_WEEK", "lower")

	v.SetDefault("SUPER_ADMIN_ROLE", "super-admin")
}

// DefaultShifts lists the three hour bands rendered by the grid. Bands are
// separated by ';', a band is "name=hour,hour,...".
const DefaultShifts = "morning=08:30-09:50,10:00-11:20,11:30-12:50;" +
	"afternoon=13:30-14:50,15:00-16:20,16:30-17:50;" +
	"evening=18:00-19:20,19:30-20:50"

// ParseShifts decodes the GRID_SHIFTS format. Bands without hours are skipped;
// a band without an explicit name is named after its position.
func ParseShifts(raw string) []Shift {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultShifts
	}
	var shifts []Shift
	for i, band := range strings.Split(raw, ";") {
		band = strings.TrimSpace(band)
		if band == "" {
			continue
		}
		name := ""
		hours := band
		if idx := strings.Index(band, "="); idx >= 0 {
			name = strings.TrimSpace(band[:idx])
			hours = band[idx+1:]
		}
		list := splitAndTrim(hours)
		if len(list) == 0 {
			continue
		}
		if name == "" {
			name = "shift-" + strconv.Itoa(i+1)
		}
		shifts = append(shifts, Shift{Name: name, Hours: list})
	}
	return shifts
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
