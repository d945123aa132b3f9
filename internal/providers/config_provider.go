package providers

import (
	"complywatch/internal/structures"
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "CW_LOG_LEVEL")
	viper.BindEnv("storage.driver", "CW_STORAGE_DRIVER")
	viper.BindEnv("storage.dsn", "CW_STORAGE_DSN")
	viper.BindEnv("scan.concurrency", "CW_SCAN_CONCURRENCY")
	viper.BindEnv("scan.executorUrl", "CW_SCAN_EXECUTOR_URL")
	viper.BindEnv("scan.executorToken", "CW_SCAN_EXECUTOR_TOKEN")
	viper.BindEnv("mail.password", "CW_MAIL_PASSWORD")
	viper.BindEnv("trigger.secret", "CW_TRIGGER_SECRET")
	viper.BindEnv("cache.enabled", "CW_CACHE_ENABLED")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "ComplyWatch"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
