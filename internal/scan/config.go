package scan

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete bulk scanner configuration.
type Config struct {
	Subjects SubjectsConfig `mapstructure:"subjects"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Ethos    EthosConfig    `mapstructure:"ethos"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// SubjectsConfig describes where scan targets come from.
type SubjectsConfig struct {
	// Seed is an inline list of userkeys to scan.
	Seed []string `mapstructure:"seed"`
	// SeedFile is a newline-separated file of userkeys, merged with Seed.
	SeedFile string `mapstructure:"seed_file"`
	// RescanLeaderboard re-queues every subject already stored.
	RescanLeaderboard bool `mapstructure:"rescan_leaderboard"`
}

// RunnerConfig holds rate-control settings for the worker pool.
type RunnerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Delay       time.Duration `mapstructure:"delay"`
}

// EthosConfig holds upstream API settings.
type EthosConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig optionally persists scan results to the same database the
// server reads. Disabled when the URL is empty.
type StorageConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
}

// LoadConfig reads configuration from a YAML file with environment variable
// overrides under the R4R_SCAN prefix.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("R4R_SCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runner.concurrency", 3)
	v.SetDefault("runner.delay", "500ms")
	v.SetDefault("ethos.base_url", "https://api.ethos.network")
	v.SetDefault("ethos.timeout", "30s")
	v.SetDefault("output.path", "./r4r-scan.csv")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if len(c.Subjects.Seed) == 0 && c.Subjects.SeedFile == "" && !c.Subjects.RescanLeaderboard {
		return fmt.Errorf("subjects: at least one of seed, seed_file or rescan_leaderboard is required")
	}
	if c.Subjects.RescanLeaderboard && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("subjects.rescan_leaderboard requires storage.database_url")
	}
	if c.Runner.Concurrency < 1 {
		return fmt.Errorf("runner.concurrency must be at least 1")
	}
	if c.Runner.Delay < 0 {
		return fmt.Errorf("runner.delay must not be negative")
	}
	if c.Ethos.BaseURL == "" {
		return fmt.Errorf("ethos.base_url is required")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	return nil
}

// SeedSubjects resolves the inline seed list plus the seed file, deduplicated
// in first-seen order.
func (c *Config) SeedSubjects() ([]Subject, error) {
	seen := make(map[string]struct{})
	var subjects []Subject
	add := func(userkey, method string) {
		userkey = strings.TrimSpace(userkey)
		if userkey == "" || strings.HasPrefix(userkey, "#") {
			return
		}
		if _, ok := seen[userkey]; ok {
			return
		}
		seen[userkey] = struct{}{}
		subjects = append(subjects, Subject{Userkey: userkey, DiscoveryMethod: method})
	}

	for _, s := range c.Subjects.Seed {
		add(s, DiscoverySeed)
	}

	if c.Subjects.SeedFile != "" {
		f, err := os.Open(c.Subjects.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			add(sc.Text(), DiscoverySeedFile)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}
	return subjects, nil
}
