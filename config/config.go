package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig admin api config
type WebConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Secret   string `yaml:"secret"`
	BaseURL  string `yaml:"base_url"`  // public address used in emailed review links
	TokenTTL int    `yaml:"token_ttl"` // operator JWT lifetime in hours
}

// DBConfig database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres | sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// MailConfig outgoing SMTP config. When Enabled is false messages are only logged.
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseHTML  bool   `yaml:"use_html"`
}

type AppConfig struct {
	System   SysConfig  `yaml:"system"`
	Web      WebConfig  `yaml:"web"`
	Database DBConfig   `yaml:"database"`
	Logger   LogConfig  `yaml:"logger"`
	Mail     MailConfig `yaml:"mail"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
}

// DefaultAppConfig returns a config that works out of the box for local development.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "estmator",
			Location: "America/Los_Angeles",
			Workdir:  "/var/estmator",
			Debug:    true,
		},
		Web: WebConfig{
			Host:     "0.0.0.0",
			Port:     1816,
			Secret:   "9b6de5cc-0731-4bf1-8e18-8c1a3b3cd1c0",
			BaseURL:  "http://127.0.0.1:1816",
			TokenTTL: 12,
		},
		Database: DBConfig{
			Type:     "postgres",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "estmator",
			User:     "postgres",
			Passwd:   "myroot",
			MaxConn:  50,
			IdleConn: 5,
			Debug:    false,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: false,
			Filename:   "/var/estmator/logs/estmator.log",
		},
		Mail: MailConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    25,
			From:    "estmator@localhost",
			UseHTML: true,
		},
	}
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToInt(v)
	}
}

// LoadConfig reads cfile (when it exists), then applies ESTMATOR_* environment overrides.
// A .env file in the working directory is loaded first.
func LoadConfig(cfile string) *AppConfig {
	_ = godotenv.Load()

	cfg := DefaultAppConfig()
	if cfile == "" {
		cfile = "estmator.yml"
	}
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(fmt.Errorf("parse config %s: %w", cfile, err))
		}
	}

	cfg.applyEnv()
	if !strings.HasPrefix(cfg.Database.Name, "file:") && cfg.Database.Name != ":memory:" {
		cfg.initDirs()
	}
	return cfg
}

func (c *AppConfig) applyEnv() {
	setEnvValue("ESTMATOR_SYSTEM_WORKER_DIR", &c.System.Workdir)
	setEnvValue("ESTMATOR_SYSTEM_LOCATION", &c.System.Location)
	setEnvBoolValue("ESTMATOR_SYSTEM_DEBUG", &c.System.Debug)

	setEnvValue("ESTMATOR_WEB_HOST", &c.Web.Host)
	setEnvIntValue("ESTMATOR_WEB_PORT", &c.Web.Port)
	setEnvValue("ESTMATOR_WEB_SECRET", &c.Web.Secret)
	setEnvValue("ESTMATOR_WEB_BASE_URL", &c.Web.BaseURL)
	setEnvIntValue("ESTMATOR_WEB_TOKEN_TTL", &c.Web.TokenTTL)

	setEnvValue("ESTMATOR_DB_TYPE", &c.Database.Type)
	setEnvValue("ESTMATOR_DB_HOST", &c.Database.Host)
	setEnvIntValue("ESTMATOR_DB_PORT", &c.Database.Port)
	setEnvValue("ESTMATOR_DB_NAME", &c.Database.Name)
	setEnvValue("ESTMATOR_DB_USER", &c.Database.User)
	setEnvValue("ESTMATOR_DB_PWD", &c.Database.Passwd)
	setEnvIntValue("ESTMATOR_DB_MAX_CONN", &c.Database.MaxConn)
	setEnvIntValue("ESTMATOR_DB_IDLE_CONN", &c.Database.IdleConn)
	setEnvBoolValue("ESTMATOR_DB_DEBUG", &c.Database.Debug)

	setEnvValue("ESTMATOR_LOGGER_MODE", &c.Logger.Mode)
	setEnvBoolValue("ESTMATOR_LOGGER_FILE_ENABLE", &c.Logger.FileEnable)
	setEnvValue("ESTMATOR_LOGGER_FILENAME", &c.Logger.Filename)

	setEnvBoolValue("ESTMATOR_MAIL_ENABLED", &c.Mail.Enabled)
	setEnvValue("ESTMATOR_MAIL_HOST", &c.Mail.Host)
	setEnvIntValue("ESTMATOR_MAIL_PORT", &c.Mail.Port)
	setEnvValue("ESTMATOR_MAIL_USER", &c.Mail.User)
	setEnvValue("ESTMATOR_MAIL_PASSWORD", &c.Mail.Password)
	setEnvValue("ESTMATOR_MAIL_FROM", &c.Mail.From)
	setEnvBoolValue("ESTMATOR_MAIL_USE_HTML", &c.Mail.UseHTML)
}
