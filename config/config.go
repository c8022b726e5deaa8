/*
Package config handles environment-driven configuration for the server.

Settings come from environment variables (optionally loaded from a .env
file by the entrypoint), with sane defaults for local development.
*/
package config

import (
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the fund server.
type Config struct {
	Port             string `mapstructure:"PORT"`
	DBPath           string `mapstructure:"DB_PATH"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	Environment      string `mapstructure:"ENVIRONMENT"`
	ReminderSchedule string `mapstructure:"REMINDER_SCHEDULE"`
	BackupDir        string `mapstructure:"BACKUP_DIR"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_PATH", "fundkeeper.db")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("REMINDER_SCHEDULE", "0 9 * * *") // At 09:00 every day.
	viper.SetDefault("BACKUP_DIR", "backups")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DB_PATH")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("ENVIRONMENT")
	_ = viper.BindEnv("REMINDER_SCHEDULE")
	_ = viper.BindEnv("BACKUP_DIR")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
