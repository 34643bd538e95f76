package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/pixel-detector/")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug().Msg("Config file not found, using defaults")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
	SetDefaultConfig()
}

func SetDefaultConfig() {
	// Navigation
	viper.SetDefault("navigation.user_agent", "")
	viper.SetDefault("navigation.timeout", "30s")
	viper.SetDefault("navigation.settle_delay", "3s")
	viper.SetDefault("navigation.headless", true)
	viper.SetDefault("navigation.proxy", "")
	viper.SetDefault("navigation.browser.disable_images", false)
	viper.SetDefault("navigation.browser.disable_gpu", true)
	viper.SetDefault("navigation.browser.no_sandbox", false)

	// Scan
	viper.SetDefault("scan.pool_size", 4)

	// Pre-flight probe
	viper.SetDefault("probe.enabled", true)
	viper.SetDefault("probe.timeout", "10s")

	// Retry
	viper.SetDefault("retry.max_retries", 2)
	viper.SetDefault("retry.initial_delay", "5s")
	viper.SetDefault("retry.max_delay", "60s")
	viper.SetDefault("retry.backoff_base", 2.0)
	viper.SetDefault("retry.jitter", true)
	viper.SetDefault("retry.bot_protection_bonus", 1)

	// Batch
	viper.SetDefault("batch.concurrency", 5)
	viper.SetDefault("batch.checkpoint_every", 10)
	viper.SetDefault("batch.checkpoint", "scan_checkpoint.json")
	viper.SetDefault("batch.progress", "scan_progress.json")
	viper.SetDefault("batch.results_dir", "scan_results")
}
