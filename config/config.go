package config

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"
)

const configFilePath = "/etc/chatline/config.yaml"

var (
	chatlineConf *ChatlineConfModel
	PathPrefix   string
)

func LoadConfig() (*ChatlineConfModel, error) {
	if err := loadViperConfig(configFilePath); err != nil {
		return nil, err
	}

	return chatlineConf, nil
}

func loadViperConfig(filePath string) error {
	viper.SetConfigFile(filePath)
	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading viper config: %w", err)
	}

	setEnvConf()
	setDefault()

	viper.WatchConfig()

	err = viper.Unmarshal(&chatlineConf)
	if err != nil {
		return fmt.Errorf("error loading viper config to struct: %w", err)
	}

	// /api/v1
	PathPrefix, err = url.JoinPath(chatlineConf.Server.APIPrefix, chatlineConf.Server.APIVersion)
	if err != nil {
		return err
	}

	return nil
}

// LoadDefaults populates the config from defaults alone, with no config
// file on disk. Intended for tests and one-off tooling.
func LoadDefaults() error {
	setEnvConf()
	setDefault()

	if err := viper.Unmarshal(&chatlineConf); err != nil {
		return fmt.Errorf("error loading viper config to struct: %w", err)
	}

	var err error
	PathPrefix, err = url.JoinPath(chatlineConf.Server.APIPrefix, chatlineConf.Server.APIVersion)
	return err
}

func setEnvConf() {
	viper.BindEnv("store.auth_token", "CHATLINE_STORE_AUTH_TOKEN")
	viper.BindEnv("store.credentials_file", "CHATLINE_STORE_CREDENTIALS_FILE")
	viper.BindEnv("local_handle", "CHATLINE_LOCAL_HANDLE")
}

func setDefault() {
	viper.SetDefault("mode", "local")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("login_token_expiry", "720h")
	viper.SetDefault("server.api_prefix", "/api")
	viper.SetDefault("server.api_version", "v1")
	viper.SetDefault("server.port", 8086)
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("presence.heartbeat_seconds", 30)
	viper.SetDefault("presence.offline_after_seconds", 75)
	viper.SetDefault("call.ring_timeout_seconds", 30)
	viper.SetDefault("cursor.path", "/var/lib/chatline/cursors.db")
}

// GetConfig returns env config
func GetConfig() *ChatlineConfModel {
	return chatlineConf
}
