package config

// Config holds itihasa configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Fetch        FetchCfg                  `mapstructure:"fetch" yaml:"fetch"`
	Store        StoreCfg                  `mapstructure:"store" yaml:"store"`
	Review       ReviewCfg                 `mapstructure:"review" yaml:"review"`
	Import       ImportCfg                 `mapstructure:"import" yaml:"import"`
	Container    ContainerCfg              `mapstructure:"container" yaml:"container"`
	ThemesFile   string                    `mapstructure:"themes_file" yaml:"themes_file"` // Empty = {home}/themes.toml
}

// LLMProviderCfg configures a chat completion provider.
type LLMProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`                       // "openrouter", "openai"
	Model          string  `mapstructure:"model" yaml:"model"`                     // Model name
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`               // Optional endpoint override
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`           // Requests per minute
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`         // Provider call attempts
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies generation defaults.
type DefaultsCfg struct {
	LLMProvider       string  `mapstructure:"llm_provider" yaml:"llm_provider"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	QuestionCount     int     `mapstructure:"question_count" yaml:"question_count"`           // Standard questions per chapter
	PassQuestionCount int     `mapstructure:"pass_question_count" yaml:"pass_question_count"` // Questions per thematic pass
	PassDelaySeconds  float64 `mapstructure:"pass_delay_seconds" yaml:"pass_delay_seconds"`   // Pause between provider calls
	BatchDelaySeconds float64 `mapstructure:"batch_delay_seconds" yaml:"batch_delay_seconds"` // Pause between chapters
}

// FetchCfg configures the chapter scraper.
type FetchCfg struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Encoding       string `mapstructure:"encoding" yaml:"encoding"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Retries        int    `mapstructure:"retries" yaml:"retries"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
}

// StoreCfg configures the backend store.
type StoreCfg struct {
	Driver       string `mapstructure:"driver" yaml:"driver"` // "postgres" or "supabase"
	DSN          string `mapstructure:"dsn" yaml:"dsn"`       // Supports ${ENV_VAR}
	SupabaseURL  string `mapstructure:"supabase_url" yaml:"supabase_url"`
	SupabaseKey  string `mapstructure:"supabase_key" yaml:"supabase_key"`
	MaxConns     int    `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns     int    `mapstructure:"min_conns" yaml:"min_conns"`
	QueryTimeout int    `mapstructure:"query_timeout_seconds" yaml:"query_timeout_seconds"`
}

// ReviewCfg configures the review surface.
type ReviewCfg struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // "csv" or "mongo"
	Dir        string `mapstructure:"dir" yaml:"dir"`         // CSV directory; empty = {home}/review
	MongoURI   string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	Database   string `mapstructure:"database" yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// ImportCfg configures write retries.
type ImportCfg struct {
	Retry       bool `mapstructure:"retry" yaml:"retry"`
	MaxAttempts int  `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS int  `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
}

// ContainerCfg configures the local Postgres container used in development.
type ContainerCfg struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Image    string `mapstructure:"image" yaml:"image"`
	Port     string `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:           "openrouter",
				Model:          "anthropic/claude-sonnet-4",
				APIKey:         "${OPENROUTER_API_KEY}",
				RateLimit:      60,
				MaxRetries:     3,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"openai": {
				Type:           "openai",
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      60,
				MaxRetries:     3,
				TimeoutSeconds: 120,
				Enabled:        false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:       "openrouter",
			MaxTokens:         4000,
			Temperature:       0.3,
			QuestionCount:     10,
			PassQuestionCount: 5,
			PassDelaySeconds:  2,
			BatchDelaySeconds: 5,
		},
		Fetch: FetchCfg{
			Host:           "www.valmikiramayan.net",
			Encoding:       "utf8",
			TimeoutSeconds: 30,
			Retries:        3,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
		},
		Store: StoreCfg{
			Driver:       "postgres",
			DSN:          "${DATABASE_URL}",
			MaxConns:     4,
			QueryTimeout: 10,
		},
		Review: ReviewCfg{
			Backend:    "csv",
			Database:   "itihasa",
			Collection: "review_rows",
		},
		Import: ImportCfg{
			Retry:       true,
			MaxAttempts: 3,
			BaseDelayMS: 500,
		},
		Container: ContainerCfg{
			Name:     "itihasa-postgres",
			Image:    "postgres:16-alpine",
			Port:     "5433",
			Password: "itihasa",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
