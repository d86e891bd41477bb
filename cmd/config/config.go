package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	coreconfig "github.com/mattsolo1/grove-core/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-elements/pkg/service"
)

var cfgFile string

// Settings is the resolved client and server configuration.
type Settings struct {
	APIURL      string        `yaml:"api_url" mapstructure:"api_url"`
	PushURL     string        `yaml:"push_url" mapstructure:"push_url"`
	ListenAddr  string        `yaml:"listen_addr" mapstructure:"listen_addr"`
	DataDir     string        `yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel    string        `yaml:"log_level" mapstructure:"log_level"`
	HTTPTimeout time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`
}

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "el")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("EL")

	// Set defaults
	viper.SetDefault("api_url", "http://localhost:5023/api")
	viper.SetDefault("push_url", "ws://localhost:5023/socket")
	viper.SetDefault("listen_addr", ":5023")
	viper.SetDefault("data_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "el"))
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("http_timeout", 10*time.Second)

	// An "elements" section in grove.yml overrides the built-in defaults but
	// not the config file, environment or flags.
	if coreCfg, err := coreconfig.LoadDefault(); err == nil {
		var ext Settings
		if err := coreCfg.UnmarshalExtension("elements", &ext); err == nil {
			applyDefaults(&ext)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file %s: %v\n", cfgFile, err)
		}
	}
}

func applyDefaults(ext *Settings) {
	for key, val := range map[string]string{
		"api_url":     ext.APIURL,
		"push_url":    ext.PushURL,
		"listen_addr": ext.ListenAddr,
		"data_dir":    ext.DataDir,
		"log_level":   ext.LogLevel,
	} {
		if val != "" {
			viper.SetDefault(key, val)
		}
	}
	if ext.HTTPTimeout > 0 {
		viper.SetDefault("http_timeout", ext.HTTPTimeout)
	}
}

// Load reads the current settings from viper.
func Load() *Settings {
	return &Settings{
		APIURL:      viper.GetString("api_url"),
		PushURL:     viper.GetString("push_url"),
		ListenAddr:  viper.GetString("listen_addr"),
		DataDir:     viper.GetString("data_dir"),
		LogLevel:    viper.GetString("log_level"),
		HTTPTimeout: viper.GetDuration("http_timeout"),
	}
}

// NewLogger returns a stderr logger at the configured level. Unknown levels
// fall back to warn.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func InitService(settings *Settings, logger logrus.FieldLogger) (*service.Service, error) {
	svc, err := service.New(&service.Config{
		APIURL:      settings.APIURL,
		PushURL:     settings.PushURL,
		HTTPTimeout: settings.HTTPTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file (default is $HOME/.config/el/config.yaml)")
	cmd.PersistentFlags().String("api-url", "", "REST endpoint of the elements service")
	cmd.PersistentFlags().String("push-url", "", "websocket endpoint of the elements service")
	_ = viper.BindPFlag("api_url", cmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("push_url", cmd.PersistentFlags().Lookup("push-url"))
}
