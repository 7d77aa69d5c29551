package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Market   MarketConfig   `mapstructure:"market"`
	Decision DecisionConfig `mapstructure:"decision"`
	Feed     FeedConfig     `mapstructure:"feed"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TickSpec string `mapstructure:"tick_spec"`
}

// MarketConfig holds the tunable parameters of the transfer window protocol.
type MarketConfig struct {
	MaxFreeMarketRounds   uint `mapstructure:"max_free_market_rounds"`
	MaxTransferRounds     uint `mapstructure:"max_transfer_rounds"`
	StableRoundsThreshold uint `mapstructure:"stable_rounds_threshold"`
	TransferStableRounds  uint `mapstructure:"transfer_stable_rounds_threshold"`

	PoachAbilityThreshold int `mapstructure:"poach_ability_threshold"`
	RetirementAge         int `mapstructure:"retirement_age"`
	MinRosterSize         int `mapstructure:"min_roster_size"`

	// Emergency signings are 1-year deals priced at this fraction of the
	// player's minimum acceptable salary.
	EmergencySalaryFactor float64 `mapstructure:"emergency_salary_factor"`

	// Transfer fee as a multiple of the player's market value.
	TransferFeeFactor float64 `mapstructure:"transfer_fee_factor"`
}

type DecisionConfig struct {
	// Mode selects the provider implementation: "llm" or "heuristic".
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxConcurrent caps parallel provider calls within one round.
	MaxConcurrent int       `mapstructure:"max_concurrent"`
	LLM           LLMConfig `mapstructure:"llm"`
}

type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxCallsPerMin int           `mapstructure:"max_calls_per_min"`
}

type FeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Buffer  int  `mapstructure:"buffer"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.tick_spec", "@every 30s")

	v.SetDefault("market.max_free_market_rounds", 7)
	v.SetDefault("market.max_transfer_rounds", 3)
	v.SetDefault("market.stable_rounds_threshold", 2)
	v.SetDefault("market.transfer_stable_rounds_threshold", 1)
	v.SetDefault("market.poach_ability_threshold", 80)
	v.SetDefault("market.retirement_age", 36)
	v.SetDefault("market.min_roster_size", 12)
	v.SetDefault("market.emergency_salary_factor", 0.6)
	v.SetDefault("market.transfer_fee_factor", 1.0)

	v.SetDefault("decision.mode", "heuristic")
	v.SetDefault("decision.timeout", "30s")
	v.SetDefault("decision.max_concurrent", 8)
	v.SetDefault("decision.llm.base_url", "https://api.anthropic.com")
	v.SetDefault("decision.llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("decision.llm.max_tokens", 600)
	v.SetDefault("decision.llm.timeout", "30s")
	v.SetDefault("decision.llm.max_calls_per_min", 60)

	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.buffer", 64)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
