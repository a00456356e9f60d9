package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Status   StatusConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Files    FilesConfig
	Logging  LoggingConfig
}

type StatusConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	PredicateTimeout     time.Duration
	ChallengeCeiling     time.Duration
	ResultsTimeout       time.Duration
	SettleDelay          time.Duration
	PollInterval         time.Duration
	TileDelayMin         time.Duration
	TileDelayMax         time.Duration
	TileDelayCeiling     time.Duration
	MaxLoginAttempts     int
	MaxAttemptsPerTarget int
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	UserAgents     []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	FilePath string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Stream    string
	ResumeKey string
}

type FilesConfig struct {
	Targets      string
	Credentials  string
	FilterConfig string
	SessionsDir  string
	ExportDir    string
	ExportPrefix string
	ExportSize   int
	CategoryTree string
	CategoryCSV  string
	ResumeFile   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Status: StatusConfig{
			Addr:            getEnvOrDefault("STATUS_ADDR", ":8090"),
			ShutdownTimeout: getDurationOrDefault("STATUS_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			PredicateTimeout:     getDurationOrDefault("SCRAPER_PREDICATE_TIMEOUT", 300*time.Millisecond),
			ChallengeCeiling:     getDurationOrDefault("SCRAPER_CHALLENGE_CEILING", 600*time.Second),
			ResultsTimeout:       getDurationOrDefault("SCRAPER_RESULTS_TIMEOUT", 300*time.Second),
			SettleDelay:          getDurationOrDefault("SCRAPER_SETTLE_DELAY", time.Second),
			PollInterval:         getDurationOrDefault("SCRAPER_POLL_INTERVAL", 500*time.Millisecond),
			TileDelayMin:         getDurationOrDefault("SCRAPER_TILE_DELAY_MIN", 800*time.Millisecond),
			TileDelayMax:         getDurationOrDefault("SCRAPER_TILE_DELAY_MAX", 2*time.Second),
			TileDelayCeiling:     getDurationOrDefault("SCRAPER_TILE_DELAY_CEILING", 10*time.Second),
			MaxLoginAttempts:     getIntOrDefault("SCRAPER_MAX_LOGIN_ATTEMPTS", 3),
			MaxAttemptsPerTarget: getIntOrDefault("SCRAPER_MAX_ATTEMPTS_PER_TARGET", 0),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", "firefox"),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", false),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 768),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "id-ID,id;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Jakarta"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "id-ID"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
			UserAgents:     getStringSliceOrDefault("BROWSER_USER_AGENTS", defaultUserAgents()),
		},
		Database: DatabaseConfig{
			Driver:   getEnvOrDefault("DB_DRIVER", "postgres"),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "marketplace_catalog"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
			FilePath: getEnvOrDefault("DB_FILE", "data/records.json"),
		},
		Redis: RedisConfig{
			Addr:      getEnvOrDefault("REDIS_ADDR", ""),
			Password:  getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:        getIntOrDefault("REDIS_DB", 0),
			Stream:    getEnvOrDefault("REDIS_STREAM", "stream:catalog_records"),
			ResumeKey: getEnvOrDefault("REDIS_RESUME_KEY", "harvester:resume"),
		},
		Files: FilesConfig{
			Targets:      getEnvOrDefault("TARGETS_FILE", "list_url_or_keyword.txt"),
			Credentials:  getEnvOrDefault("CREDENTIALS_FILE", "akun.txt"),
			FilterConfig: getEnvOrDefault("FILTER_CONFIG_FILE", "data/config.json"),
			SessionsDir:  getEnvOrDefault("SESSIONS_DIR", "sessions"),
			ExportDir:    getEnvOrDefault("EXPORT_DIR", "export"),
			ExportPrefix: getEnvOrDefault("EXPORT_PREFIX", "shopee_variants"),
			ExportSize:   getIntOrDefault("EXPORT_SIZE", 1000),
			CategoryTree: getEnvOrDefault("CATEGORY_TREE_FILE", "data/category_list_from_shopee.json"),
			CategoryCSV:  getEnvOrDefault("CATEGORY_CSV_FILE", "shopee_list_category.csv"),
			ResumeFile:   getEnvOrDefault("RESUME_FILE", "data/resume.json"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "firefox", "chromium":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be firefox or chromium, got %q", c.Browser.Engine)
	}

	switch c.Database.Driver {
	case "postgres", "memory", "file":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, memory or file, got %q", c.Database.Driver)
	}

	if c.Scraper.TileDelayMin > c.Scraper.TileDelayMax {
		return fmt.Errorf("SCRAPER_TILE_DELAY_MIN cannot be greater than SCRAPER_TILE_DELAY_MAX")
	}

	if c.Scraper.PredicateTimeout <= 0 || c.Scraper.PollInterval <= 0 {
		return fmt.Errorf("SCRAPER_PREDICATE_TIMEOUT and SCRAPER_POLL_INTERVAL must be positive")
	}

	if c.Scraper.ChallengeCeiling < c.Scraper.PredicateTimeout {
		return fmt.Errorf("SCRAPER_CHALLENGE_CEILING cannot be shorter than SCRAPER_PREDICATE_TIMEOUT")
	}

	if c.Scraper.MaxLoginAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_LOGIN_ATTEMPTS must be at least 1")
	}

	if c.Scraper.MaxAttemptsPerTarget < 0 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS_PER_TARGET cannot be negative")
	}

	if c.Files.ExportSize < 0 {
		return fmt.Errorf("EXPORT_SIZE cannot be negative")
	}

	return nil
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.5; rv:128.0) Gecko/20100101 Firefox/128.0",
	}
}
