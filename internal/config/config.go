package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ModelConfig locates the classifier artifact and the reference dataset
// categorical domains are derived from.
type ModelConfig struct {
	ArtifactPath      string `yaml:"artifact_path" mapstructure:"artifact_path"`
	ReferenceDataPath string `yaml:"reference_data_path" mapstructure:"reference_data_path"`
}

// ValidationConfig holds the single-record numeric ceilings.
type ValidationConfig struct {
	MaxBalance float64 `yaml:"max_balance" mapstructure:"max_balance"`
	MaxSalary  float64 `yaml:"max_salary" mapstructure:"max_salary"`
}

// BatchConfig tunes upload parsing and batch summaries.
type BatchConfig struct {
	TopN          int    `yaml:"top_n" mapstructure:"top_n"`
	HistogramBins int    `yaml:"histogram_bins" mapstructure:"histogram_bins"`
	CSVDelimiter  string `yaml:"csv_delimiter" mapstructure:"csv_delimiter"`
	TrimSpace     bool   `yaml:"trim_space" mapstructure:"trim_space"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
}

// Delimiter returns the CSV field separator, defaulting to a comma.
func (b BatchConfig) Delimiter() rune {
	r := []rune(b.CSVDelimiter)
	if len(r) == 0 {
		return ','
	}
	return r[0]
}

// StoreConfig configures the account database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BcryptCost  int    `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SessionConfig bounds the in-memory session table.
type SessionConfig struct {
	TTLMinutes  int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// TTL returns the idle lifetime of a session.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB     int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	LoginRatePerMin int      `yaml:"login_rate_per_min" mapstructure:"login_rate_per_min"`
	SecureCookies   bool     `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHURN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("model.artifact_path", "churn_model.json")
	v.SetDefault("model.reference_data_path", "Churn_Modelling.csv")
	v.SetDefault("validation.max_balance", 300000)
	v.SetDefault("validation.max_salary", 300000)
	v.SetDefault("batch.top_n", 10)
	v.SetDefault("batch.histogram_bins", 20)
	v.SetDefault("batch.csv_delimiter", ",")
	v.SetDefault("batch.trim_space", false)
	v.SetDefault("batch.sheet", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "churn.db")
	v.SetDefault("store.bcrypt_cost", 10)
	v.SetDefault("session.ttl_minutes", 60)
	v.SetDefault("session.max_sessions", 1024)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.login_rate_per_min", 30)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys the given command mode depends on are
// set. Every problem is reported, not just the first.
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
		}
	}

	switch mode {
	case "serve":
		need("model.artifact_path", c.Model.ArtifactPath)
		need("model.reference_data_path", c.Model.ReferenceDataPath)
		need("store.database_url", c.Store.DatabaseURL)
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			problems = append(problems, "server.max_upload_mb must be > 0")
		}
		if c.Session.TTLMinutes <= 0 || c.Session.MaxSessions <= 0 {
			problems = append(problems, "session.ttl_minutes and session.max_sessions must be > 0")
		}
		problems = append(problems, c.Batch.problems()...)
	case "predict", "score":
		need("model.artifact_path", c.Model.ArtifactPath)
		need("model.reference_data_path", c.Model.ReferenceDataPath)
		if mode == "score" {
			problems = append(problems, c.Batch.problems()...)
		}
	case "account":
		need("store.database_url", c.Store.DatabaseURL)
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Validation.MaxBalance <= 0 || c.Validation.MaxSalary <= 0 {
		problems = append(problems, "validation.max_balance and validation.max_salary must be > 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (b BatchConfig) problems() []string {
	d := []rune(b.CSVDelimiter)
	if len(d) > 1 || (len(d) == 1 && strings.ContainsRune("\"\r\n", d[0])) {
		return []string{"batch.csv_delimiter must be a single character other than quote or newline"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
