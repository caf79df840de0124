// internal/workers/matching/recalibrate-weights/config.go
package recalibrateweights

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 2 * time.Minute,
	}
}
