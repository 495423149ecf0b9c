package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway and supporting services.
type Config struct {
	HTTPListenAddr string
	PublicBaseURL  string
	MySQLDSN       string

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string

	StripeSecretKey     string
	StripeWebhookSecret string

	ImageGenerationCost int
	SignupBonusCredits  int
	GenerationTimeout   time.Duration
	ReserveCredits      bool
	StrictSizeCheck     bool

	LedgerBackend string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UsePathStyle bool
	S3Prefix       string

	TelegramBotToken    string
	TelegramAlertChatID int64
	AlertCooldown       time.Duration

	LogLevel       string
	LogFile        string
	LogMaxSizeMB   int
	LogMaxBackups  int
	LogMaxAgeDays  int
	MetricsEnabled bool
}

const (
	LedgerMySQL = "mysql"
	LedgerRedis = "redis"
)

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPListenAddr:         getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBaseURL:          normalizeBaseURL(getEnv("PUBLIC_BASE_URL", "http://localhost:3000")),
		SupabaseURL:            normalizeBaseURL(os.Getenv("SUPABASE_URL")),
		SupabaseAnonKey:        os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ImageGenerationCost:    getInt("IMAGE_GENERATION_COST", 10),
		SignupBonusCredits:     getInt("SIGNUP_BONUS_CREDITS", 50),
		GenerationTimeout:      getDuration("GENERATION_TIMEOUT", 30*time.Second),
		ReserveCredits:         getBool("RESERVE_CREDITS", true),
		StrictSizeCheck:        getBool("STRICT_SIZE_CHECK", false),
		LedgerBackend:          strings.ToLower(getEnv("LEDGER_BACKEND", LedgerMySQL)),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0),
		S3Endpoint:             getEnv("S3_ENDPOINT", ""),
		S3Region:               os.Getenv("S3_REGION"),
		S3AccessKey:            os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:            os.Getenv("S3_SECRET_KEY"),
		S3Bucket:               os.Getenv("S3_BUCKET"),
		S3UsePathStyle:         getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:               getEnv("S3_PREFIX", "generations"),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAlertChatID:    getInt64("TELEGRAM_ALERT_CHAT_ID", 0),
		AlertCooldown:          getDuration("ALERT_COOLDOWN", 10*time.Minute),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFile:                os.Getenv("LOG_FILE"),
		LogMaxSizeMB:           getInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:          getInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:          getInt("LOG_MAX_AGE_DAYS", 30),
		MetricsEnabled:         getBool("METRICS_ENABLED", true),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAlertChatID == 0 {
		missing = append(missing, "TELEGRAM_ALERT_CHAT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.ImageGenerationCost <= 0 {
		return Config{}, fmt.Errorf("IMAGE_GENERATION_COST must be positive, got %d", cfg.ImageGenerationCost)
	}
	switch cfg.LedgerBackend {
	case LedgerMySQL, LedgerRedis:
	default:
		return Config{}, fmt.Errorf("unsupported LEDGER_BACKEND: %s", cfg.LedgerBackend)
	}

	return cfg, nil
}

// normalizeBaseURL trims trailing slashes and adds a scheme when missing.
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(raw, "/")
	}
	if parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + raw)
		if err != nil {
			return strings.TrimRight(raw, "/")
		}
	}
	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getDuration accepts Go duration syntax ("30s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// loadEnvFile loads the first dotenv file found. Running without one is fine:
// containers usually pass the environment directly.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
