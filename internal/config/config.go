/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort        string `mapstructure:"SERVER_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	RedisOtpPrefix    string `mapstructure:"REDIS_OTP_PREFIX"`
	RabbitMQURL       string `mapstructure:"RABBITMQ_URL"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`
	SMTPHost          string `mapstructure:"SMTP_HOST"`
	SMTPPort          int    `mapstructure:"SMTP_PORT"`
	SMTPUser          string `mapstructure:"SMTP_USER"`
	SMTPPassword      string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom          string `mapstructure:"SMTP_FROM"`
	IPInfoToken       string `mapstructure:"IPINFO_TOKEN"`
	MonthlyCapPaise   int64  `mapstructure:"MONTHLY_CAP_PAISE"`
	StatementSchedule string `mapstructure:"STATEMENT_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_OTP_PREFIX", "smartpay:otp")
	viper.SetDefault("SESSION_TTL_MINUTES", 60)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MONTHLY_CAP_PAISE", 7000_00)
	viper.SetDefault("STATEMENT_SCHEDULE", "0 9 1 * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_OTP_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("SESSION_TTL_MINUTES")
	_ = viper.BindEnv("SMTP_HOST")
	_ = viper.BindEnv("SMTP_PORT")
	_ = viper.BindEnv("SMTP_USER")
	_ = viper.BindEnv("SMTP_PASSWORD")
	_ = viper.BindEnv("SMTP_FROM")
	_ = viper.BindEnv("IPINFO_TOKEN")
	_ = viper.BindEnv("MONTHLY_CAP_PAISE")
	_ = viper.BindEnv("MONTHLY_CAP")
	_ = viper.BindEnv("STATEMENT_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisOtpPrefix = strings.TrimSpace(config.RedisOtpPrefix)
	if config.RedisOtpPrefix == "" {
		config.RedisOtpPrefix = "smartpay:otp"
	}

	// Allow specifying the cap in whole currency units via MONTHLY_CAP.
	if viper.IsSet("MONTHLY_CAP") {
		capStr := strings.TrimSpace(viper.GetString("MONTHLY_CAP"))
		if capStr != "" {
			capValue, parseErr := strconv.ParseFloat(capStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MONTHLY_CAP\" value=%q err=%v", capStr, parseErr)
			} else {
				config.MonthlyCapPaise = int64(math.Round(capValue * 100))
			}
		}
	}

	if config.MonthlyCapPaise <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive monthly cap configured; using default\" cap_paise=%d", config.MonthlyCapPaise)
		config.MonthlyCapPaise = 7000_00
	}
	if config.SessionTTLMinutes <= 0 {
		config.SessionTTLMinutes = 60
	}
	if strings.TrimSpace(config.StatementSchedule) == "" {
		config.StatementSchedule = "0 9 1 * *"
	}

	return
}
