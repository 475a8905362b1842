package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Data     DataConfig     `mapstructure:"data"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Store    StoreConfig    `mapstructure:"store"`
	Fitness  FitnessConfig  `mapstructure:"fitness"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DataConfig points at the static artifacts loaded at startup.
type DataConfig struct {
	CatalogCSV     string `mapstructure:"catalog_csv"`
	IngredientsCSV string `mapstructure:"ingredients_csv"`
	CalorieModel   string `mapstructure:"calorie_model"`
}

type LLMConfig struct {
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	GroqAPIKey        string        `mapstructure:"groq_api_key"`
	GenerationModel   string        `mapstructure:"generation_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	GroqModel         string        `mapstructure:"groq_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	SaveGenerated     bool          `mapstructure:"save_generated"`
	EmbeddingCache    string        `mapstructure:"embedding_cache"`
}

// Available reports whether any generative backend is credentialed.
func (l LLMConfig) Available() bool {
	return l.GeminiAPIKey != "" || l.GroqAPIKey != ""
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig lists the ordered-query indexes the plan store declares,
// each in "collection.field" form.
type StoreConfig struct {
	Indexes []string `mapstructure:"indexes"`
}

type FitnessConfig struct {
	PredictorURL string        `mapstructure:"predictor_url"`
	LabelsPath   string        `mapstructure:"labels_path"`
	WorkoutsDir  string        `mapstructure:"workouts_dir"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the workout classifier is configured.
func (f FitnessConfig) Enabled() bool {
	return f.PredictorURL != "" && f.LabelsPath != ""
}

type TelegramConfig struct {
	BotToken       string  `mapstructure:"bot_token"`
	WebhookURL     string  `mapstructure:"webhook_url"`
	AllowedUserIDs []int64 `mapstructure:"allowed_user_ids"`
	AdminID        int64   `mapstructure:"admin_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from an optional file, a .env file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NUTRITIONIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.path", "data/db/nutritionist.db")

	v.SetDefault("data.catalog_csv", "data/meal_plans.csv")
	v.SetDefault("data.ingredients_csv", "data/all_recipe_ingredients.csv")
	v.SetDefault("data.calorie_model", "")

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.groq_api_key", "")
	v.SetDefault("llm.generation_model", "gemini-1.5-flash")
	v.SetDefault("llm.embedding_model", "text-embedding-004")
	v.SetDefault("llm.groq_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("llm.requests_per_minute", 15)
	v.SetDefault("llm.save_generated", true)
	v.SetDefault("llm.embedding_cache", "data/cache/embeddings.json")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("store.indexes", []string{"custom_meal_plans.ts_ms", "meal_suggestions.ts_ms"})

	v.SetDefault("fitness.predictor_url", "")
	v.SetDefault("fitness.labels_path", "data/fitness/labels.txt")
	v.SetDefault("fitness.workouts_dir", "data/workouts")
	v.SetDefault("fitness.timeout", 10*time.Second)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.allowed_user_ids", []int64{})
	v.SetDefault("telegram.admin_id", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// bindLegacyEnv keeps the bare variable names used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"llm.gemini_api_key":        {"NUTRITIONIST_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"llm.groq_api_key":          {"NUTRITIONIST_LLM_GROQ_API_KEY", "GROQ_API_KEY"},
		"database.path":             {"NUTRITIONIST_DATABASE_PATH", "DATABASE_PATH"},
		"server.port":               {"NUTRITIONIST_SERVER_PORT", "PORT"},
		"redis.addr":                {"NUTRITIONIST_REDIS_ADDR", "REDIS_ADDR"},
		"telegram.bot_token":        {"NUTRITIONIST_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
		"telegram.webhook_url":      {"NUTRITIONIST_TELEGRAM_WEBHOOK_URL", "TELEGRAM_WEBHOOK_URL"},
		"telegram.allowed_user_ids": {"NUTRITIONIST_TELEGRAM_ALLOWED_USER_IDS", "TELEGRAM_ALLOWED_USER_IDS"},
		"telegram.admin_id":         {"NUTRITIONIST_TELEGRAM_ADMIN_ID", "ADMIN_TELEGRAM_ID"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// ValidateBot checks the settings the Telegram surface cannot run without.
func (c *Config) ValidateBot() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path must be set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	return nil
}
