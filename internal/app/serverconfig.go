package app

import (
	"github.com/spf13/viper"
)

// ServerConfig holds the settings that only matter for long-running
// deployments: the durable store and the sandbox location. It is read from a
// YAML file; a missing file means in-memory stores.
type ServerConfig struct {
	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`
	Sandbox struct {
		Root string `mapstructure:"root"`
	} `mapstructure:"sandbox"`
}

// loadServerConfig loads the server configuration from the given file and
// the environment. path may be empty, in which case defaults apply.
func loadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("flowforge")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
