package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func init() {
	godotenv.Load(".env")
}

func Get(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetBool(key, defaultVal string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		v = defaultVal
	}
	return v == "1" || v == "true" || v == "t" || v == "yes"
}

type Config struct {
	SEC       SECConfig
	Intrinio  IntrinioConfig
	FMP       FMPConfig
	Database  DatabaseConfig
	Mail      MailConfig
	Logging   LoggingConfig
	Server    ServerConfig
	Telemetry TelemetryConfig
	Paths     PathsConfig
}

type SECConfig struct {
	QueryAPIKey string `mapstructure:"query_api_key"`
	QueryURL    string `mapstructure:"query_url"`
	UserAgent   string `mapstructure:"user_agent"`
	RatePerSec  int    `mapstructure:"rate_per_sec"`
	PageSize    int    `mapstructure:"page_size"`
}

type IntrinioConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	PageSize int    `mapstructure:"page_size"`
}

type FMPConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string `mapstructure:"output_path"`
	SaveLogs   bool   `mapstructure:"save_logs"`
}

type ServerConfig struct {
	Port     string
	AdminKey string `mapstructure:"admin_key"`
}

type TelemetryConfig struct {
	Traces bool
}

type PathsConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	Checkpoint  string
	MetricsFile string `mapstructure:"metrics_file"`
	LogDir      string `mapstructure:"log_dir"`
}

// Load reads INSIDER_* environment variables (after .env) over the defaults.
// Nested keys map with underscores: INSIDER_SEC_USER_AGENT -> sec.user_agent.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INSIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Mail.To = splitList(v.GetString("mail.to"))
	// Unprefixed keys kept for existing deployments.
	if cfg.SEC.QueryAPIKey == "" {
		cfg.SEC.QueryAPIKey = Get("QUERY_API_KEY")
	}
	if cfg.Intrinio.APIKey == "" {
		cfg.Intrinio.APIKey = Get("INTRINIO_API_KEY")
	}
	if cfg.FMP.APIKey == "" {
		cfg.FMP.APIKey = Get("FMP_API_KEY")
	}
	if cfg.Mail.Password == "" {
		cfg.Mail.Password = Get("EMAIL_PASSWORD")
	}
	if !cfg.Logging.SaveLogs {
		cfg.Logging.SaveLogs = GetBool("SHOULD_SAVE_LOGS", "false")
	}
	if p := Get("PORT"); p != "" && cfg.Server.Port == "8000" {
		cfg.Server.Port = p
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sec.query_api_key", "")
	v.SetDefault("sec.query_url", "https://api.sec-api.io")
	v.SetDefault("sec.user_agent", "insider-trades admin@example.com")
	v.SetDefault("sec.rate_per_sec", 9)
	v.SetDefault("sec.page_size", 50)

	v.SetDefault("intrinio.api_key", "")
	v.SetDefault("intrinio.base_url", "https://api-v2.intrinio.com")
	v.SetDefault("intrinio.page_size", 100)

	v.SetDefault("fmp.api_key", "")
	v.SetDefault("fmp.base_url", "https://financialmodelingprep.com/stable")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/insider_trades.db")

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.save_logs", false)

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.admin_key", Get("ADMIN_API_KEY"))

	v.SetDefault("telemetry.traces", false)

	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.checkpoint", "data/local_db.json")
	v.SetDefault("paths.metrics_file", "")
	v.SetDefault("paths.log_dir", "logs")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
