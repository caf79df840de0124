// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Batch         BatchConfig             `mapstructure:"batch"`
	Recalibration RecalibrationConfig     `mapstructure:"recalibration"`
	Pricing       PricingConfig           `mapstructure:"pricing"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Engine Configuration Sections ---

// MatchingConfig holds the tunable constants of the filter, feature
// extractor and scorer. Every decay curve the engine uses is configured
// here rather than hard-coded.
type MatchingConfig struct {
	MaxRadiusKm      float64            `mapstructure:"max_radius_km"`     // geo filter + distance decay span
	MaxCandidates    int                `mapstructure:"max_candidates"`    // candidate cap before scoring
	TimingDecayDays  float64            `mapstructure:"timing_decay_days"` // timing score decay span
	DefaultLimit     int                `mapstructure:"default_limit"`     // smart-match result cap
	NeutralScore     float64            `mapstructure:"neutral_score"`     // fallback sub-score on missing data
	PremiumThreshold float64            `mapstructure:"premium_threshold"` // bootstrap tier cut
	GoodThreshold    float64            `mapstructure:"good_threshold"`    // bootstrap tier cut
	CarbonBaseline   float64            `mapstructure:"carbon_baseline"`   // gCO2 per ton-km reference
	CarbonFactors    map[string]float64 `mapstructure:"carbon_factors"`    // per vehicle type
}

// BatchConfig holds the scheduled batch matcher settings.
type BatchConfig struct {
	HoursBack          int `mapstructure:"hours_back"`
	LimitPerFreight    int `mapstructure:"limit_per_freight"`
	Concurrency        int `mapstructure:"concurrency"`
	IntervalMinutes    int `mapstructure:"interval_minutes"`
	SuggestionTTLHours int `mapstructure:"suggestion_ttl_hours"` // markExpired cutoff
	SweepIntervalHours int `mapstructure:"sweep_interval_hours"`
}

// RecalibrationConfig holds the weight recalibration settings.
type RecalibrationConfig struct {
	MinSamples     int     `mapstructure:"min_samples"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	MaxStep        float64 `mapstructure:"max_step"` // per-feature weight delta bound
	LookbackDays   int     `mapstructure:"lookback_days"`
	IntervalHours  int     `mapstructure:"interval_hours"`
	LockTTLSeconds int     `mapstructure:"lock_ttl_seconds"` // single-flight lease
}

// PricingConfig holds the market-rate lookup settings.
type PricingConfig struct {
	Index        string `mapstructure:"index"`          // Elasticsearch index of route market rates
	TimeoutMs    int    `mapstructure:"timeout_ms"`
	CacheTTLMins int    `mapstructure:"cache_ttl_mins"` // redis read-through cache
}

// NotificationConfig holds settings for the premium-suggestion notifier.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"` // dispatcher distribution list
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicArn string `mapstructure:"topic_arn"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
