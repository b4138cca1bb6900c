package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	Search    SearchConfig    `mapstructure:"search"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Output    OutputConfig    `mapstructure:"output"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds the optional status HTTP server configuration.
// An empty port disables the server.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the optional audit database configuration.
// An empty host disables the audit log.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// MailboxConfig holds mailbox connection configuration
type MailboxConfig struct {
	Backend      string `mapstructure:"backend"` // "imap" or "gmail"
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// SearchConfig holds the mailbox query parameters
type SearchConfig struct {
	SubjectToken string `mapstructure:"subject_token"`
	LookbackDays int    `mapstructure:"lookback_days"`
}

// ExtractorConfig holds LLM extraction service configuration
type ExtractorConfig struct {
	APIBase          string        `mapstructure:"api_base"`
	APIKey           string        `mapstructure:"api_key"`
	Models           []string      `mapstructure:"models"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxPromptChars   int           `mapstructure:"max_prompt_chars"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

// FilterConfig holds the job filtering criteria embedded into the prompt
type FilterConfig struct {
	MinSalaryLPA      int      `mapstructure:"min_salary_lpa"`
	TargetRoles       []string `mapstructure:"target_roles"`
	ForbiddenKeywords []string `mapstructure:"forbidden_keywords"`
}

// PipelineConfig holds batch processing configuration
type PipelineConfig struct {
	InterItemSleep   time.Duration `mapstructure:"inter_item_sleep"`
	ReconnectEvery   int           `mapstructure:"reconnect_every"`
	FetchRetries     int           `mapstructure:"fetch_retries"`
	FetchRetryDelay  time.Duration `mapstructure:"fetch_retry_delay"`
	MinContentLength int           `mapstructure:"min_content_length"`
}

// OutputConfig holds the durable file paths
type OutputConfig struct {
	ResultsFile    string `mapstructure:"results_file"`
	CheckpointFile string `mapstructure:"checkpoint_file"`
}

// SchedulerConfig holds the optional watch-mode configuration.
// An interval of 0 means run the batch once and exit.
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.port", 3306)

	viper.SetDefault("mailbox.backend", "imap")
	viper.SetDefault("mailbox.imap_host", "imap.gmail.com")
	viper.SetDefault("mailbox.imap_port", 993)

	viper.SetDefault("search.lookback_days", 45)

	viper.SetDefault("extractor.api_base", "https://api.groq.com/openai/v1")
	viper.SetDefault("extractor.models", []string{"llama-3.1-8b-instant"})
	viper.SetDefault("extractor.temperature", 0.0)
	viper.SetDefault("extractor.max_prompt_chars", 6000)
	viper.SetDefault("extractor.max_attempts", 3)
	viper.SetDefault("extractor.rate_limit_backoff", "60s")
	viper.SetDefault("extractor.retry_delay", "5s")

	viper.SetDefault("filter.min_salary_lpa", 12)
	viper.SetDefault("filter.target_roles", []string{
		"SDE", "Software Engineer", "AIML", "Machine Learning", "Deep Learning",
		"MLOps", "LLM Engineer", "Generative AI", "Agentic AI", "AI Agent",
		"Research Scientist", "Quant", "Algo Trading", "Founder's Office",
		"Chief of Staff", "Founding Engineer",
	})
	viper.SetDefault("filter.forbidden_keywords", []string{})

	viper.SetDefault("pipeline.inter_item_sleep", "10s")
	viper.SetDefault("pipeline.reconnect_every", 25)
	viper.SetDefault("pipeline.fetch_retries", 3)
	viper.SetDefault("pipeline.fetch_retry_delay", "2s")
	viper.SetDefault("pipeline.min_content_length", 100)

	viper.SetDefault("output.results_file", "final_jobs_list.csv")
	viper.SetDefault("output.checkpoint_file", "processed_email_ids.txt")

	viper.SetDefault("scheduler.interval_minutes", 0)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Mailbox
	viper.BindEnv("mailbox.backend", "MAILBOX_BACKEND")
	viper.BindEnv("mailbox.imap_host", "IMAP_HOST")
	viper.BindEnv("mailbox.imap_port", "IMAP_PORT")
	viper.BindEnv("mailbox.imap_user", "EMAIL_USER")
	viper.BindEnv("mailbox.imap_password", "EMAIL_PASS")
	viper.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mailbox.user_email", "GMAIL_USER_EMAIL")

	// Search
	viper.BindEnv("search.subject_token", "EMAIL_SUBJECT_QUERY")
	viper.BindEnv("search.lookback_days", "DAYS_BACK_TO_SEARCH")

	// Extractor
	viper.BindEnv("extractor.api_base", "LLM_API_BASE")
	viper.BindEnv("extractor.api_key", "GROQ_API_KEY")
	viper.BindEnv("extractor.models", "LLM_MODELS")
	viper.BindEnv("extractor.temperature", "LLM_TEMPERATURE")
	viper.BindEnv("extractor.max_prompt_chars", "MAX_CONTEXT_CHARS")
	viper.BindEnv("extractor.max_attempts", "MAX_RETRIES")
	viper.BindEnv("extractor.rate_limit_backoff", "RATE_LIMIT_SLEEP")
	viper.BindEnv("extractor.retry_delay", "RETRY_DELAY")

	// Filter
	viper.BindEnv("filter.min_salary_lpa", "MIN_SALARY_LPA")

	// Pipeline
	viper.BindEnv("pipeline.inter_item_sleep", "NORMAL_SLEEP_INTERVAL")
	viper.BindEnv("pipeline.reconnect_every", "RECONNECT_EVERY")
	viper.BindEnv("pipeline.fetch_retries", "FETCH_RETRIES")
	viper.BindEnv("pipeline.fetch_retry_delay", "FETCH_RETRY_DELAY")
	viper.BindEnv("pipeline.min_content_length", "MIN_CONTENT_LENGTH")

	// Output
	viper.BindEnv("output.results_file", "OUTPUT_CSV_FILE")
	viper.BindEnv("output.checkpoint_file", "CHECKPOINT_FILE")

	// Scheduler
	viper.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Enabled reports whether the audit database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Mailbox.Backend {
	case "imap":
		if c.Mailbox.IMAPUser == "" || c.Mailbox.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using the imap backend")
		}
	case "gmail":
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when using the gmail backend")
		}
		if c.Mailbox.UserEmail == "" {
			return fmt.Errorf("Gmail user email is required when using the gmail backend")
		}
	default:
		return fmt.Errorf("unknown mailbox backend: %q", c.Mailbox.Backend)
	}

	if c.Extractor.APIKey == "" {
		return fmt.Errorf("extractor API key is required")
	}
	if len(c.Extractor.Models) == 0 {
		return fmt.Errorf("at least one extractor model is required")
	}
	if c.Extractor.MaxAttempts <= 0 {
		return fmt.Errorf("extractor max attempts must be greater than 0")
	}
	if c.Extractor.MaxPromptChars <= 0 {
		return fmt.Errorf("extractor max prompt chars must be greater than 0")
	}

	if c.Search.SubjectToken == "" {
		return fmt.Errorf("search subject token is required")
	}
	if c.Search.LookbackDays <= 0 {
		return fmt.Errorf("search lookback days must be greater than 0")
	}

	if c.Pipeline.ReconnectEvery <= 0 {
		return fmt.Errorf("pipeline reconnect interval must be greater than 0")
	}
	if c.Pipeline.FetchRetries <= 0 {
		return fmt.Errorf("pipeline fetch retries must be greater than 0")
	}

	if c.Output.ResultsFile == "" || c.Output.CheckpointFile == "" {
		return fmt.Errorf("results and checkpoint file paths are required")
	}

	if c.Database.Enabled() {
		if c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database user and dbname are required when a database host is set")
		}
	}

	return nil
}
