package config

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	DataDir               string
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogLevel              string
	LogPretty             bool
	SyncMaxAttempts       int
	SyncResyncSpec        string
	DefaultCurrency       string
	LowStockThreshold     int
	Timezone              string
}

// Load reads a .env file when present, then the YAML file named by
// CONFIG_FILE, then the process environment. Later sources win. YAML keys
// are the lower-cased variable names, e.g. redis_addr.
func Load() (Config, error) {
	if err := godotenv.Load(envFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	k := koanf.New(".")
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			// Empty variables do not mask values from the file.
			if strings.TrimSpace(value) == "" {
				return "", nil
			}
			return strings.ToLower(key), value
		},
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "load env variables")
	}

	src := source{k: k}
	cfg := Config{
		Port:                  src.get("PORT", "8080"),
		AllowedOrigin:         src.get("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           src.get("DATABASE_URL", ""),
		RedisAddr:             src.get("REDIS_ADDR", ""),
		RedisPassword:         src.get("REDIS_PASSWORD", ""),
		RedisDB:               src.getInt("REDIS_DB", 0, 0),
		DataDir:               src.get("DATA_DIR", "data"),
		AuthSecret:            strings.TrimSpace(src.get("AUTH_SECRET", "")),
		AccessTokenTTLMinutes: src.getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		LogLevel:              src.get("LOG_LEVEL", "info"),
		LogPretty:             src.getBool("LOG_PRETTY", false),
		SyncMaxAttempts:       src.getInt("SYNC_MAX_ATTEMPTS", 4, 1),
		SyncResyncSpec:        src.get("SYNC_RESYNC_SPEC", "0 */5 * * * *"),
		DefaultCurrency:       src.get("DEFAULT_CURRENCY", "৳"),
		LowStockThreshold:     src.getInt("LOW_STOCK_THRESHOLD", 5, 0),
		Timezone:              src.get("TIMEZONE", "UTC"),
	}

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location is the zone that decides which calendar day "today" is.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid TIMEZONE %q", c.Timezone)
	}
	return loc, nil
}

func envFile() string {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		return path
	}
	return ".env"
}

type source struct {
	k *koanf.Koanf
}

func (s source) get(key, fallback string) string {
	val := strings.TrimSpace(s.k.String(strings.ToLower(key)))
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func (s source) getInt(key string, fallback, min int) int {
	n, err := strconv.Atoi(s.get(key, strconv.Itoa(fallback)))
	if err != nil || n < min {
		return fallback
	}
	return n
}

func (s source) getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(s.get(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return b
}
