// config/worker.go
package config

type WorkerConfig struct {
	BaseConfig
	Concurrency int    `mapstructure:"WORKER_CONCURRENCY"`
	MetricsPort string `mapstructure:"METRICS_PORT"`
}

func LoadWorkerConfig() (*WorkerConfig, error) {
	base, err := LoadBase()
	if err != nil {
		return nil, err
	}

	v := newViper("worker")
	v.SetDefault("WORKER_CONCURRENCY", 1)
	v.SetDefault("METRICS_PORT", "9090")

	if err := readOptional(v); err != nil {
		return nil, err
	}

	var config WorkerConfig
	config.BaseConfig = *base

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
