package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Run
	Env  string `mapstructure:"ENV"`
	Site string `mapstructure:"SITE"` // "draftkings" or "fanduel"
	Mode string `mapstructure:"MODE"` // "classic" or "showdown"

	// Catalog
	ProjectionMinimum float64 `mapstructure:"PROJECTION_MINIMUM"`
	DefaultVariance   float64 `mapstructure:"DEFAULT_VARIANCE"`

	// Optimizer
	NumLineups       int     `mapstructure:"NUM_LINEUPS"`
	NumUniques       int     `mapstructure:"NUM_UNIQUES"`
	Randomness       float64 `mapstructure:"RANDOMNESS"` // percent; 0 means deterministic cuts
	DiversityEpsilon float64 `mapstructure:"DIVERSITY_EPSILON"`

	// Field generation
	FieldSize        int     `mapstructure:"FIELD_SIZE"`
	MinLineupSalary  int     `mapstructure:"MIN_LINEUP_SALARY"`
	MaxPctOffOptimal float64 `mapstructure:"MAX_PCT_OFF_OPTIMAL"`
	GlobalTeamLimit  int     `mapstructure:"GLOBAL_TEAM_LIMIT"`
	OverlapLimit     int     `mapstructure:"OVERLAP_LIMIT"`

	// Group rules, parsed from comma-separated "A+B>=1" style expressions
	AtLeast map[string][]string `mapstructure:"-"`
	AtMost  map[string][]string `mapstructure:"-"`

	// Matchup rules
	MatchupLimits  map[string]int `mapstructure:"-"`
	MatchupAtLeast map[string]int `mapstructure:"-"`

	// Correlation overrides: position -> peer label -> value
	CorrelationOverrides map[string]map[string]float64 `mapstructure:"-"`

	// Simulation
	NumIterations     int     `mapstructure:"NUM_ITERATIONS"`
	SimulationWorkers int     `mapstructure:"SIMULATION_WORKERS"`
	RandomSeed        int64   `mapstructure:"RANDOM_SEED"`
	TopPercentile     float64 `mapstructure:"TOP_PERCENTILE"`

	// Swap
	MaxSwapAttempts   int     `mapstructure:"MAX_SWAP_ATTEMPTS"`
	BackoffFactor     float64 `mapstructure:"BACKOFF_FACTOR"`
	MinSalaryFloorPct float64 `mapstructure:"MIN_SALARY_FLOOR_PCT"`

	// Cache
	RedisURL     string        `mapstructure:"REDIS_URL"`
	CacheEnabled bool          `mapstructure:"CACHE_ENABLED"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`

	// Paths
	SlatePath   string `mapstructure:"SLATE_PATH"`
	ContestPath string `mapstructure:"CONTEST_PATH"`
	EntriesPath string `mapstructure:"ENTRIES_PATH"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("ENV", "development")
	viper.SetDefault("SITE", "draftkings")
	viper.SetDefault("MODE", "classic")

	viper.SetDefault("PROJECTION_MINIMUM", 15.0)
	viper.SetDefault("DEFAULT_VARIANCE", 0.25)

	viper.SetDefault("NUM_LINEUPS", 20)
	viper.SetDefault("NUM_UNIQUES", 1)
	viper.SetDefault("RANDOMNESS", 0.0)
	viper.SetDefault("DIVERSITY_EPSILON", 0.01)

	viper.SetDefault("FIELD_SIZE", 10000)
	viper.SetDefault("MIN_LINEUP_SALARY", 49000)
	viper.SetDefault("MAX_PCT_OFF_OPTIMAL", 0.25)
	viper.SetDefault("GLOBAL_TEAM_LIMIT", 4)
	viper.SetDefault("OVERLAP_LIMIT", 6)

	viper.SetDefault("NUM_ITERATIONS", 10000)
	viper.SetDefault("SIMULATION_WORKERS", 0) // 0 = runtime.NumCPU
	viper.SetDefault("RANDOM_SEED", 0)        // 0 = time-based
	viper.SetDefault("TOP_PERCENTILE", 0.01)

	viper.SetDefault("MAX_SWAP_ATTEMPTS", 50)
	viper.SetDefault("BACKOFF_FACTOR", 0.95)
	viper.SetDefault("MIN_SALARY_FLOOR_PCT", 0.90)

	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("CACHE_TTL", "1h")

	viper.SetDefault("SLATE_PATH", "")
	viper.SetDefault("CONTEST_PATH", "")
	viper.SetDefault("ENTRIES_PATH", "")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Site != "draftkings" && config.Site != "fanduel" {
		return nil, fmt.Errorf("unknown site %q: must be draftkings or fanduel", config.Site)
	}
	if config.Mode != "classic" && config.Mode != "showdown" {
		return nil, fmt.Errorf("unknown mode %q: must be classic or showdown", config.Mode)
	}

	config.AtLeast = parseGroupRules(viper.GetString("AT_LEAST"))
	config.AtMost = parseGroupRules(viper.GetString("AT_MOST"))
	config.MatchupLimits = parseIntRules(viper.GetString("MATCHUP_LIMITS"))
	config.MatchupAtLeast = parseIntRules(viper.GetString("MATCHUP_AT_LEAST"))

	return &config, nil
}

// parseGroupRules parses "2:PlayerA+PlayerB,1:PlayerC+PlayerD" into a map from
// count to player-name groups. Multiple groups with the same count are keyed
// by a running suffix so none are lost.
func parseGroupRules(raw string) map[string][]string {
	rules := make(map[string][]string)
	if raw == "" {
		return rules
	}
	for i, clause := range strings.Split(raw, ",") {
		parts := strings.SplitN(clause, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := fmt.Sprintf("%s#%d", strings.TrimSpace(parts[0]), i)
		rules[key] = strings.Split(parts[1], "+")
	}
	return rules
}

// parseIntRules parses "BOS@NYK:3,LAL@GSW:2" into matchup caps.
func parseIntRules(raw string) map[string]int {
	rules := make(map[string]int)
	if raw == "" {
		return rules
	}
	for _, clause := range strings.Split(raw, ",") {
		parts := strings.SplitN(clause, ":", 2)
		if len(parts) != 2 {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &n); err == nil {
			rules[strings.TrimSpace(parts[0])] = n
		}
	}
	return rules
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
