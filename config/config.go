package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research workflow system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Models    ModelConfig     `mapstructure:"models"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	AuthUser     string `mapstructure:"auth_user"`
	AuthPassword string `mapstructure:"auth_password"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai or anthropic
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Timeout time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// ModelConfig names the model used for each workflow role. It is built once
// at startup and passed by reference into the orchestrator and agents.
type ModelConfig struct {
	Planner  string `mapstructure:"planner"`
	Router   string `mapstructure:"router"`
	Research string `mapstructure:"research"`
	Writer   string `mapstructure:"writer"`
	Editor   string `mapstructure:"editor"`
}

// validModelPrefixes is the recognized-model-name policy. A model identifier
// must start with one of these to be accepted.
var validModelPrefixes = []string{"gpt-", "o1", "claude-"}

func validateModelName(role, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("models.%s is required", role)
	}
	for _, p := range validModelPrefixes {
		if strings.HasPrefix(name, p) {
			return nil
		}
	}
	return fmt.Errorf("models.%s: unrecognized model name %q", role, name)
}

// Normalize fills unset roles from the planner model.
func (m ModelConfig) Normalize() ModelConfig {
	if strings.TrimSpace(m.Planner) == "" {
		m.Planner = "gpt-4o"
	}
	fill := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return m.Planner
		}
		return s
	}
	m.Router = fill(m.Router)
	m.Research = fill(m.Research)
	m.Writer = fill(m.Writer)
	m.Editor = fill(m.Editor)
	return m
}

// Validate checks every role against the recognized-model-name policy.
func (m ModelConfig) Validate() error {
	roles := map[string]string{
		"planner":  m.Planner,
		"router":   m.Router,
		"research": m.Research,
		"writer":   m.Writer,
		"editor":   m.Editor,
	}
	for role, name := range roles {
		if err := validateModelName(role, name); err != nil {
			return err
		}
	}
	return nil
}

// WorkflowConfig contains orchestration limits and truncation ceilings.
type WorkflowConfig struct {
	MaxSteps           int  `mapstructure:"max_steps"`
	LimitSteps         bool `mapstructure:"limit_steps"`
	MaxToolTurns       int  `mapstructure:"max_tool_turns"`
	ResearchContextMax int  `mapstructure:"research_context_max"`
	WriterContextMax   int  `mapstructure:"writer_context_max"`
	ToolResultMax      int  `mapstructure:"tool_result_max"`
}

// Normalize applies the standard ceilings for unset values.
func (w WorkflowConfig) Normalize() WorkflowConfig {
	if w.MaxSteps <= 0 {
		w.MaxSteps = 10
	}
	if w.MaxToolTurns <= 0 {
		w.MaxToolTurns = 6
	}
	if w.ResearchContextMax <= 0 {
		w.ResearchContextMax = 3000
	}
	if w.WriterContextMax <= 0 {
		w.WriterContextMax = 5000
	}
	if w.ToolResultMax <= 0 {
		w.ToolResultMax = 10000
	}
	return w
}

// ToolsConfig contains search connector settings
type ToolsConfig struct {
	MCPCommand    string        `mapstructure:"mcp_command"`
	MCPArgs       []string      `mapstructure:"mcp_args"`
	TavilyAPIKey  string        `mapstructure:"tavily_api_key"`
	MaxResults    int           `mapstructure:"max_results"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FetchFullText bool          `mapstructure:"fetch_full_text"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	File     FileConfig     `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// FileConfig contains document store settings
type FileConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	IndexDir string `mapstructure:"index_dir"`
}

// Normalize applies the default papers directory.
func (f FileConfig) Normalize() FileConfig {
	if strings.TrimSpace(f.DataDir) == "" {
		f.DataDir = "research_papers"
	}
	return f
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether any connection detail was supplied.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a connection string from the discrete fields when URL is unset.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port for the go-redis client.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// LoadConfig loads config from file, falling back to defaults and RESEARCHER_*
// environment variables when no file is found.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "120s")
	v.SetDefault("server.address", ":10002")
	v.SetDefault("models.planner", "gpt-4o")
	v.SetDefault("workflow.max_steps", 10)
	v.SetDefault("workflow.max_tool_turns", 6)
	v.SetDefault("workflow.research_context_max", 3000)
	v.SetDefault("workflow.writer_context_max", 5000)
	v.SetDefault("workflow.tool_result_max", 10000)
	v.SetDefault("tools.max_results", 5)
	v.SetDefault("tools.timeout", "30s")
	v.SetDefault("storage.file.data_dir", "research_papers")

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); path != "" || !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Models = cfg.Models.Normalize()
	cfg.Workflow = cfg.Workflow.Normalize()
	cfg.Storage.File = cfg.Storage.File.Normalize()

	if err := cfg.Models.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
