// internal/workers/matching/batch-match/config.go
package batchmatch

import "time"

type Config struct {
	Timeout         time.Duration
	HoursBack       int
	LimitPerFreight int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Minute,
		HoursBack:       24,
		LimitPerFreight: 5,
	}
}
