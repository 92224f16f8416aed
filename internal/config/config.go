package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	JWT         JWTConfig
	S3          S3Config
	Log         LogConfig
	Vision      VisionConfig
	Taxonomy    TaxonomyConfig
	Classifier  ClassifierConfig
	Corrections CorrectionsConfig
	Receipt     ReceiptConfig
	CORS        CORSConfig
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// VisionProviderConfig holds settings for a single vision-capable LLM provider.
type VisionProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// VisionConfig holds receipt vision service settings with multi-provider support.
// Secondary and tertiary providers are only tried when an earlier provider is rate limited.
type VisionConfig struct {
	Primary   VisionProviderConfig `mapstructure:"primary"`
	Secondary VisionProviderConfig `mapstructure:"secondary"`
	Tertiary  VisionProviderConfig `mapstructure:"tertiary"`
}

// PrimaryConfig returns the primary provider config, or nil if not configured.
func (v *VisionConfig) PrimaryConfig() *VisionProviderConfig {
	if v.Primary.Provider != "" {
		return &v.Primary
	}
	return nil
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (v *VisionConfig) SecondaryConfig() *VisionProviderConfig {
	if v.Secondary.Provider != "" {
		return &v.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (v *VisionConfig) TertiaryConfig() *VisionProviderConfig {
	if v.Tertiary.Provider != "" {
		return &v.Tertiary
	}
	return nil
}

// Providers returns the configured providers in fallback order.
func (v *VisionConfig) Providers() []*VisionProviderConfig {
	var out []*VisionProviderConfig
	for _, p := range []*VisionProviderConfig{v.PrimaryConfig(), v.SecondaryConfig(), v.TertiaryConfig()} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// TaxonomyConfig points at the category taxonomy source.
// File takes precedence over the inline Categories list.
type TaxonomyConfig struct {
	File       string   `mapstructure:"file"`
	Categories []string `mapstructure:"categories"`
	Fallback   string   `mapstructure:"fallback"`
}

// ClassifierConfig holds category model and ranking settings.
type ClassifierConfig struct {
	ModelPath          string  `mapstructure:"model_path"`
	TopK               int     `mapstructure:"top_k"`
	LowConfidenceFloor float64 `mapstructure:"low_confidence_floor"`
	BatchConcurrency   int     `mapstructure:"batch_concurrency"`
	MaxBatchSize       int     `mapstructure:"max_batch_size"`
}

// CorrectionsConfig selects the correction log backend.
type CorrectionsConfig struct {
	Backend string `mapstructure:"backend"` // file, sqlite or postgres
	Path    string `mapstructure:"path"`
}

// ReceiptConfig holds receipt extraction settings.
type ReceiptConfig struct {
	MaxImageSizeMB int64 `mapstructure:"max_image_size_mb"`
	TimeoutSecs    int   `mapstructure:"timeout_secs"`
	Archive        bool  `mapstructure:"archive"`
}

// Timeout returns the per-call vision timeout.
func (r *ReceiptConfig) Timeout() time.Duration {
	if r.TimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(r.TimeoutSecs) * time.Second
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer            string        `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for receipt image archiving.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the LEDGERLENS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGERLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "ledgerlens")
	v.SetDefault("db.password", "ledgerlens_secret")
	v.SetDefault("db.name", "ledgerlens_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "24h")
	v.SetDefault("jwt.issuer", "ledgerlens")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "ledgerlens-receipts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Vision defaults
	v.SetDefault("vision.primary.provider", "gemini")
	v.SetDefault("vision.primary.api_key", "")
	v.SetDefault("vision.primary.default_model", "")
	v.SetDefault("vision.primary.timeout_secs", 60)
	v.SetDefault("vision.secondary.provider", "")
	v.SetDefault("vision.secondary.api_key", "")
	v.SetDefault("vision.secondary.default_model", "")
	v.SetDefault("vision.secondary.timeout_secs", 60)
	v.SetDefault("vision.tertiary.provider", "")
	v.SetDefault("vision.tertiary.api_key", "")
	v.SetDefault("vision.tertiary.default_model", "")
	v.SetDefault("vision.tertiary.timeout_secs", 60)

	// Taxonomy and classifier defaults
	v.SetDefault("taxonomy.file", "configs/taxonomy.yaml")
	v.SetDefault("taxonomy.categories", "")
	v.SetDefault("taxonomy.fallback", "Other")
	v.SetDefault("classifier.model_path", "models/keyword_model.yaml")
	v.SetDefault("classifier.top_k", 3)
	v.SetDefault("classifier.low_confidence_floor", 0.15)
	v.SetDefault("classifier.batch_concurrency", 8)
	v.SetDefault("classifier.max_batch_size", 500)

	// Corrections defaults
	v.SetDefault("corrections.backend", "file")
	v.SetDefault("corrections.path", "data/corrections.jsonl")

	// Receipt defaults
	v.SetDefault("receipt.max_image_size_mb", 10)
	v.SetDefault("receipt.timeout_secs", 60)
	v.SetDefault("receipt.archive", false)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                     "LEDGERLENS_SERVER_PORT",
		"server.read_timeout":             "LEDGERLENS_SERVER_READ_TIMEOUT",
		"server.write_timeout":            "LEDGERLENS_SERVER_WRITE_TIMEOUT",
		"server.environment":              "LEDGERLENS_SERVER_ENVIRONMENT",
		"db.enabled":                      "LEDGERLENS_DB_ENABLED",
		"db.host":                         "LEDGERLENS_DB_HOST",
		"db.port":                         "LEDGERLENS_DB_PORT",
		"db.user":                         "LEDGERLENS_DB_USER",
		"db.password":                     "LEDGERLENS_DB_PASSWORD",
		"db.name":                         "LEDGERLENS_DB_NAME",
		"db.sslmode":                      "LEDGERLENS_DB_SSLMODE",
		"db.max_open":                     "LEDGERLENS_DB_MAX_OPEN",
		"db.max_idle":                     "LEDGERLENS_DB_MAX_IDLE",
		"jwt.secret":                      "LEDGERLENS_JWT_SECRET",
		"jwt.access_expiry":               "LEDGERLENS_JWT_ACCESS_EXPIRY",
		"jwt.issuer":                      "LEDGERLENS_JWT_ISSUER",
		"s3.region":                       "LEDGERLENS_S3_REGION",
		"s3.bucket":                       "LEDGERLENS_S3_BUCKET",
		"s3.endpoint":                     "LEDGERLENS_S3_ENDPOINT",
		"s3.access_key":                   "LEDGERLENS_S3_ACCESS_KEY",
		"s3.secret_key":                   "LEDGERLENS_S3_SECRET_KEY",
		"s3.presign_expiry":               "LEDGERLENS_S3_PRESIGN_EXPIRY",
		"log.level":                       "LEDGERLENS_LOG_LEVEL",
		"log.format":                      "LEDGERLENS_LOG_FORMAT",
		"cors.allowed_origins":            "LEDGERLENS_CORS_ALLOWED_ORIGINS",
		"vision.primary.provider":         "LEDGERLENS_VISION_PRIMARY_PROVIDER",
		"vision.primary.api_key":          "LEDGERLENS_VISION_PRIMARY_API_KEY",
		"vision.primary.default_model":    "LEDGERLENS_VISION_PRIMARY_DEFAULT_MODEL",
		"vision.primary.timeout_secs":     "LEDGERLENS_VISION_PRIMARY_TIMEOUT_SECS",
		"vision.secondary.provider":       "LEDGERLENS_VISION_SECONDARY_PROVIDER",
		"vision.secondary.api_key":        "LEDGERLENS_VISION_SECONDARY_API_KEY",
		"vision.secondary.default_model":  "LEDGERLENS_VISION_SECONDARY_DEFAULT_MODEL",
		"vision.secondary.timeout_secs":   "LEDGERLENS_VISION_SECONDARY_TIMEOUT_SECS",
		"vision.tertiary.provider":        "LEDGERLENS_VISION_TERTIARY_PROVIDER",
		"vision.tertiary.api_key":         "LEDGERLENS_VISION_TERTIARY_API_KEY",
		"vision.tertiary.default_model":   "LEDGERLENS_VISION_TERTIARY_DEFAULT_MODEL",
		"vision.tertiary.timeout_secs":    "LEDGERLENS_VISION_TERTIARY_TIMEOUT_SECS",
		"taxonomy.file":                   "LEDGERLENS_TAXONOMY_FILE",
		"taxonomy.categories":             "LEDGERLENS_TAXONOMY_CATEGORIES",
		"taxonomy.fallback":               "LEDGERLENS_TAXONOMY_FALLBACK",
		"classifier.model_path":           "LEDGERLENS_CLASSIFIER_MODEL_PATH",
		"classifier.top_k":                "LEDGERLENS_CLASSIFIER_TOP_K",
		"classifier.low_confidence_floor": "LEDGERLENS_CLASSIFIER_LOW_CONFIDENCE_FLOOR",
		"classifier.batch_concurrency":    "LEDGERLENS_CLASSIFIER_BATCH_CONCURRENCY",
		"classifier.max_batch_size":       "LEDGERLENS_CLASSIFIER_MAX_BATCH_SIZE",
		"corrections.backend":             "LEDGERLENS_CORRECTIONS_BACKEND",
		"corrections.path":                "LEDGERLENS_CORRECTIONS_PATH",
		"receipt.max_image_size_mb":       "LEDGERLENS_RECEIPT_MAX_IMAGE_SIZE_MB",
		"receipt.timeout_secs":            "LEDGERLENS_RECEIPT_TIMEOUT_SECS",
		"receipt.archive":                 "LEDGERLENS_RECEIPT_ARCHIVE",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if LEDGERLENS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LEDGERLENS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:            v.GetString("jwt.secret"),
		AccessTokenExpiry: v.GetDuration("jwt.access_expiry"),
		Issuer:            v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: SplitList(v.GetString("cors.allowed_origins")),
	}

	cfg.Vision = VisionConfig{
		Primary:   providerConfig(v, "vision.primary"),
		Secondary: providerConfig(v, "vision.secondary"),
		Tertiary:  providerConfig(v, "vision.tertiary"),
	}

	cfg.Taxonomy = TaxonomyConfig{
		File:       v.GetString("taxonomy.file"),
		Categories: SplitList(v.GetString("taxonomy.categories")),
		Fallback:   v.GetString("taxonomy.fallback"),
	}
	// An inline list given through the environment wins over the default file.
	if len(cfg.Taxonomy.Categories) > 0 && os.Getenv("LEDGERLENS_TAXONOMY_FILE") == "" {
		cfg.Taxonomy.File = ""
	}

	cfg.Classifier = ClassifierConfig{
		ModelPath:          v.GetString("classifier.model_path"),
		TopK:               v.GetInt("classifier.top_k"),
		LowConfidenceFloor: v.GetFloat64("classifier.low_confidence_floor"),
		BatchConcurrency:   v.GetInt("classifier.batch_concurrency"),
		MaxBatchSize:       v.GetInt("classifier.max_batch_size"),
	}

	cfg.Corrections = CorrectionsConfig{
		Backend: v.GetString("corrections.backend"),
		Path:    v.GetString("corrections.path"),
	}

	cfg.Receipt = ReceiptConfig{
		MaxImageSizeMB: v.GetInt64("receipt.max_image_size_mb"),
		TimeoutSecs:    v.GetInt("receipt.timeout_secs"),
		Archive:        v.GetBool("receipt.archive"),
	}

	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) VisionProviderConfig {
	return VisionProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}

// SplitList parses a comma-separated list, dropping blank entries.
func SplitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
