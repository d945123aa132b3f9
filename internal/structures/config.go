package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type StorageConfig struct {
	Driver       string        `yaml:"driver" validate:"required|in:memory,postgres"`
	DSN          string        `yaml:"dsn"`
	MaxConns     int32         `yaml:"maxConns"`
	FilePath     string        `yaml:"filePath"`
	SaveInterval time.Duration `yaml:"saveInterval"`
}

type ScanConfig struct {
	Interval        time.Duration `yaml:"interval" validate:"required|min:1"`
	ClaimWindow     time.Duration `yaml:"claimWindow" validate:"required|min:1"`
	Concurrency     int           `yaml:"concurrency" validate:"required|int|min:1"`
	DispatchTimeout time.Duration `yaml:"dispatchTimeout" validate:"required|min:1"`
	ExecutorURL     string        `yaml:"executorUrl"`
	ExecutorToken   string        `yaml:"executorToken"`
	BreakerFailures uint32        `yaml:"breakerFailures"`
	BreakerCooldown time.Duration `yaml:"breakerCooldown"`
}

type AlertsConfig struct {
	BatchInterval time.Duration `yaml:"batchInterval" validate:"required|min:1"`
}

// AlertLookbackRuns is how many batch intervals a scheduled-only pass looks
// back over, so a skipped run is picked up by the next one.
const AlertLookbackRuns = 2

func (a AlertsConfig) WindowStart(now time.Time) time.Time {
	return now.Add(-AlertLookbackRuns * a.BatchInterval)
}

type DigestConfig struct {
	Interval    time.Duration `yaml:"interval" validate:"required|min:1"`
	Lookback    time.Duration `yaml:"lookback" validate:"required|min:1"`
	Concurrency int           `yaml:"concurrency" validate:"required|int|min:1"`
}

// WindowStart aligns the digest window to the interval, so every run inside
// one interval addresses the same ledger window whatever the exact time.
func (d DigestConfig) WindowStart(now time.Time) time.Time {
	return now.UTC().Truncate(d.Interval).Add(-d.Lookback)
}

type MailConfig struct {
	Driver        string `yaml:"driver" validate:"required|in:log,smtp"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	From          string `yaml:"from"`
	RatePerMinute int    `yaml:"ratePerMinute"`
}

type TriggerConfig struct {
	Secret        string        `yaml:"secret" validate:"required|minLen:16"`
	InternalClock bool          `yaml:"internalClock"`
	PassTimeout   time.Duration `yaml:"passTimeout"`
}

const defaultPassTimeout = 10 * time.Minute

// PassBudget is how long a cron request may take to write its response.
func (t TriggerConfig) PassBudget() time.Duration {
	if t.PassTimeout > 0 {
		return t.PassTimeout
	}
	return defaultPassTimeout
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	WebServer Server        `yaml:"webServer"`
	Logger    LoggerConfig  `yaml:"logger"`
	Storage   StorageConfig `yaml:"storage"`
	Scan      ScanConfig    `yaml:"scan"`
	Alerts    AlertsConfig  `yaml:"alerts"`
	Digest    DigestConfig  `yaml:"digest"`
	Mail      MailConfig    `yaml:"mail"`
	Trigger   TriggerConfig `yaml:"trigger"`
	Cache     CacheConfig   `yaml:"cache"`
	Metrics   MetricsConfig `yaml:"metrics"`
}
