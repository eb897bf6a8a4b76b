// config/sweeper.go
package config

import "time"

type SweeperConfig struct {
	BaseConfig
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepGrace    time.Duration `mapstructure:"SWEEP_GRACE"`
	SweepBatch    int           `mapstructure:"SWEEP_BATCH"`
}

func LoadSweeperConfig() (*SweeperConfig, error) {
	base, err := LoadBase()
	if err != nil {
		return nil, err
	}

	v := newViper("sweeper")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("SWEEP_GRACE", "30s")
	v.SetDefault("SWEEP_BATCH", 500)

	if err := readOptional(v); err != nil {
		return nil, err
	}

	var config SweeperConfig
	config.BaseConfig = *base

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
