package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/refreshd/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel         = LogLevelWarning
	DefaultConnectorCommand = "displayctl get-default-output"
	DefaultCallTimeout      = 5 * time.Second
	DefaultApplyMethod      = ApplyTemporary

	// MaxCallTimeout bounds every D-Bus call made during a reconciliation.
	MaxCallTimeout = 5 * time.Second

	defaultEnvPrefix = "REFRESHD"
	configName       = "refreshd"
	appDir           = "refreshd"
)

type Config struct {
	LogLevel         string        `mapstructure:"log_level"`
	Debug            bool          `mapstructure:"debug"`
	Verbose          bool          `mapstructure:"verbose"`
	Connector        string        `mapstructure:"connector"`
	ConnectorCommand string        `mapstructure:"connector_command"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	ApplyMethod      string        `mapstructure:"apply_method"`
	SkipIfCurrent    bool          `mapstructure:"skip_if_current"`
	SettingsFile     string        `mapstructure:"settings_file"`
	History          bool          `mapstructure:"history"`
	HistoryDB        string        `mapstructure:"history_db"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	PIDFile          string        `mapstructure:"pid_file"`

	// File is the configuration file that was read, empty if none.
	File string `mapstructure:"-"`
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":         "log_level",
	"debug":             "debug",
	"verbose":           "verbose",
	"connector":         "connector",
	"connector-command": "connector_command",
	"call-timeout":      "call_timeout",
	"apply-method":      "apply_method",
	"settings-file":     "settings_file",
	"history":           "history",
	"history-db":        "history_db",
	"metrics-addr":      "metrics_addr",
}

// RegisterFlags defines the daemon flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the configuration file")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("connector", "", "Output connector to manage (e.g. eDP-1)")
	fs.String("connector-command", DefaultConnectorCommand, "Command printing the default output connector")
	fs.Duration("call-timeout", DefaultCallTimeout, "Timeout for each display service call")
	fs.String("apply-method", string(DefaultApplyMethod), "Apply method (temporary, persistent)")
	fs.String("settings-file", "", "Path to the refresh rate settings file")
	fs.Bool("history", false, "Record reconciliation attempts in a sqlite database")
	fs.String("history-db", "", "Path to the history database")
	fs.String("metrics-addr", "", "Listen address for the Prometheus endpoint (disabled when empty)")
}

// Load reads the configuration from defaults, the config file, the
// environment and flags, in increasing order of precedence. The file is the
// one given with WithConfigFile, else $REFRESHD_CONFIG, else the first
// refreshd.toml found in the search path.
func Load(fs *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(defaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errFactory.Wrap(errors.ErrBindFlags, err)
				}
			}
		}
	}

	if o.configPath == "" {
		o.configPath = os.Getenv(defaultEnvPrefix + "_CONFIG")
	}

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appDir))
		}
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	config.File = v.ConfigFileUsed()

	if config.LogLevel == "" {
		switch {
		case config.Debug:
			config.LogLevel = string(LogLevelDebug)
		case config.Verbose:
			config.LogLevel = string(LogLevelInfo)
		default:
			config.LogLevel = string(DefaultLogLevel)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connector_command", DefaultConnectorCommand)
	v.SetDefault("call_timeout", DefaultCallTimeout)
	v.SetDefault("apply_method", string(DefaultApplyMethod))
	v.SetDefault("skip_if_current", true)
	v.SetDefault("settings_file", filepath.Join(configDir(), "settings.toml"))
	v.SetDefault("history", false)
	v.SetDefault("history_db", filepath.Join(stateDir(), "history.db"))
	v.SetDefault("pid_file", filepath.Join(runtimeDir(), "refreshd.pid"))
}

// Validate checks the loaded values and returns an invalid_configuration
// error carrying every ValidationError found.
func (c *Config) Validate() error {
	var problems []ValidationError

	if !LogLevel(c.LogLevel).IsValid() {
		return errors.New().WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.CallTimeout <= 0 || c.CallTimeout > MaxCallTimeout {
		problems = append(problems, &fieldError{"call_timeout", c.CallTimeout, "must be within (0s, 5s]"})
	}
	if !ApplyMethod(c.ApplyMethod).IsValid() {
		problems = append(problems, &fieldError{"apply_method", c.ApplyMethod, "must be temporary or persistent"})
	}
	if c.SettingsFile == "" {
		problems = append(problems, &fieldError{"settings_file", c.SettingsFile, "must not be empty"})
	}
	if c.History && c.HistoryDB == "" {
		problems = append(problems, &fieldError{"history_db", c.HistoryDB, "required when history is enabled"})
	}

	if len(problems) > 0 {
		return errors.New().WithData(errors.ErrInvalidConfig, problems)
	}

	return nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDir)
	}

	return filepath.Join(os.TempDir(), appDir)
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appDir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appDir)
	}

	return filepath.Join(os.TempDir(), appDir)
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}

	return os.TempDir()
}
