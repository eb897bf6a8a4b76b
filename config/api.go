// config/api.go
package config

import "time"

type APIConfig struct {
	BaseConfig
	API_PORT       string        `mapstructure:"API_PORT"`
	PublishTimeout time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
}

func LoadAPIConfig() (*APIConfig, error) {
	base, err := LoadBase()
	if err != nil {
		return nil, err
	}

	v := newViper("api")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("PUBLISH_TIMEOUT", "5s")

	if err := readOptional(v); err != nil {
		return nil, err
	}

	var config APIConfig
	config.BaseConfig = *base

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
