package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Search    Search    `mapstructure:"search"`
	Topics    Topics    `mapstructure:"topics"`
	Draft     Draft     `mapstructure:"draft"`
	Links     Links     `mapstructure:"links"`
	Thumbnail Thumbnail `mapstructure:"thumbnail"`
	Scheduler Scheduler `mapstructure:"scheduler"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
	SiteHost string `mapstructure:"site_host"` // Hostname treated as internal when classifying links
}

// AI holds provider chain configuration
type AI struct {
	Gemini      GeminiConfig `mapstructure:"gemini"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	MaxRetries  int          `mapstructure:"max_retries"`  // Retries per provider on transient failure
	Timeout     string       `mapstructure:"timeout"`      // Per-call timeout
	CooldownTTL string       `mapstructure:"cooldown_ttl"` // Provider disable window after auth/quota failure
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	ImageModel string `mapstructure:"image_model"`
	BaseURL    string `mapstructure:"base_url"`
}

// Search holds search provider configuration
type Search struct {
	MaxResults int    `mapstructure:"max_results"`
	Timeout    string `mapstructure:"timeout"`
	RateLimit  string `mapstructure:"rate_limit"`
}

// Topics holds topic selection and deduplication configuration
type Topics struct {
	MaxAttempts         int     `mapstructure:"max_attempts"`         // Selection attempts before declaring exhaustion
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // Percent above which two titles are duplicates
}

// Draft holds draft and optimize stage configuration
type Draft struct {
	MinWords            int `mapstructure:"min_words"`
	MaxWords            int `mapstructure:"max_words"`
	ParagraphSplitWords int `mapstructure:"paragraph_split_words"` // Paragraphs longer than this get split
	ParagraphChunkWords int `mapstructure:"paragraph_chunk_words"` // Target chunk size when splitting
}

// Links holds link-management quotas and thresholds
type Links struct {
	MaxInternal      int     `mapstructure:"max_internal"`
	MaxExternal      int     `mapstructure:"max_external"`
	MaxValidExternal int     `mapstructure:"max_valid_external"` // Hard cap after validation
	MaxTotal         int     `mapstructure:"max_total"`
	ScoreThreshold   float64 `mapstructure:"score_threshold"` // Minimum relevance score for discovered links
	ValidateTimeout  string  `mapstructure:"validate_timeout"`
}

// Thumbnail holds thumbnail generation configuration
type Thumbnail struct {
	OutputDir           string  `mapstructure:"output_dir"`
	MaxAttempts         int     `mapstructure:"max_attempts"`         // Render retries before falling back
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // Percent above which two renders are duplicates
	Width               int     `mapstructure:"width"`
	Height              int     `mapstructure:"height"`
}

// Scheduler holds daily scheduling configuration
type Scheduler struct {
	DailyLimit int    `mapstructure:"daily_limit"`
	LockPath   string `mapstructure:"lock_path"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file, and environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".inkwell")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// API keys come from the environment when not set in the file
	if config.AI.Gemini.APIKey == "" {
		config.AI.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if config.AI.OpenAI.APIKey == "" {
		config.AI.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".inkwell-data")
	viper.SetDefault("app.site_host", "")

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)
	viper.SetDefault("ai.openai.model", "gpt-4o-mini")
	viper.SetDefault("ai.openai.image_model", "gpt-image-1")
	viper.SetDefault("ai.openai.base_url", "")
	viper.SetDefault("ai.max_retries", 2)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.cooldown_ttl", "1h")

	// Search defaults
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("search.rate_limit", "2s")

	// Topic selection defaults. The 80% duplicate threshold mirrors the
	// editorial rule of thumb; keep it configurable rather than derived.
	viper.SetDefault("topics.max_attempts", 10)
	viper.SetDefault("topics.similarity_threshold", 80.0)

	// Draft defaults
	viper.SetDefault("draft.min_words", 500)
	viper.SetDefault("draft.max_words", 5000)
	viper.SetDefault("draft.paragraph_split_words", 80)
	viper.SetDefault("draft.paragraph_chunk_words", 40)

	// Link defaults
	viper.SetDefault("links.max_internal", 4)
	viper.SetDefault("links.max_external", 3)
	viper.SetDefault("links.max_valid_external", 4)
	viper.SetDefault("links.max_total", 7)
	viper.SetDefault("links.score_threshold", 75.0)
	viper.SetDefault("links.validate_timeout", "5s")

	// Thumbnail defaults
	viper.SetDefault("thumbnail.output_dir", "thumbnails")
	viper.SetDefault("thumbnail.max_attempts", 3)
	viper.SetDefault("thumbnail.similarity_threshold", 80.0)
	viper.SetDefault("thumbnail.width", 1200)
	viper.SetDefault("thumbnail.height", 630)

	// Scheduler defaults
	viper.SetDefault("scheduler.daily_limit", 3)
	viper.SetDefault("scheduler.lock_path", ".inkwell-data/scheduler.lock")
}
