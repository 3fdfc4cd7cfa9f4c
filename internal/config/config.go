package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/waveline/crm-services/dispatcher/pkg/mq"
	"github.com/waveline/crm-services/dispatcher/pkg/mysql"
	"github.com/waveline/crm-services/dispatcher/pkg/staging"
	"github.com/waveline/crm-services/dispatcher/pkg/transport"
)

type Config struct {
	API       API              `mapstructure:"api"`
	Database  mysql.Config     `mapstructure:"database"`
	RabbitMQ  mq.Config        `mapstructure:"rabbitmq"`
	Transport transport.Config `mapstructure:"transport"`
	Governor  Governor         `mapstructure:"governor"`
	Engine    Engine           `mapstructure:"engine"`
	Drip      Drip             `mapstructure:"drip"`
	Staging   staging.Config   `mapstructure:"staging"`
}

type API struct {
	Port string `mapstructure:"port"`
}

type Governor struct {
	// AbsoluteMax caps every channel regardless of configuration.
	AbsoluteMax float64 `mapstructure:"absolute_max"`
}

type Engine struct {
	BatchSize      int           `mapstructure:"batch_size"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	ClaimStaleness time.Duration `mapstructure:"claim_staleness"`
	SchedulerTick  time.Duration `mapstructure:"scheduler_tick"`
}

type Drip struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// ZeroDelayImmediate processes a step with no configured delay on the
	// next sweep instead of stalling the enrollment.
	ZeroDelayImmediate bool `mapstructure:"zero_delay_immediate"`
}

func Load() (cfg *Config, err error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath("./config")

	viper.SetDefault("governor.absolute_max", 20.0)
	viper.SetDefault("engine.batch_size", 50)
	viper.SetDefault("engine.max_attempts", 3)
	viper.SetDefault("engine.send_timeout", 15*time.Second)
	viper.SetDefault("engine.claim_staleness", 5*time.Minute)
	viper.SetDefault("engine.scheduler_tick", 30*time.Second)
	viper.SetDefault("drip.sweep_interval", time.Minute)
	viper.SetDefault("drip.zero_delay_immediate", true)

	err = viper.ReadInConfig()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
