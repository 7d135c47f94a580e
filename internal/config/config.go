package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"roomdesk/internal/core"
	"roomdesk/internal/domain"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	Rooms    RoomsConfig    `mapstructure:"rooms"`
	Flow     FlowConfig     `mapstructure:"flow"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

type RoomsConfig struct {
	Maps         []string      `mapstructure:"maps"`
	Modes        []string      `mapstructure:"modes"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	ExtendBy     time.Duration `mapstructure:"extend_by"`
	ExtendPolicy string        `mapstructure:"extend_policy"`
	OnePerOwner  bool          `mapstructure:"one_per_owner"`
	CodeLength   int           `mapstructure:"code_length"`
	CodeAlphabet string        `mapstructure:"code_alphabet"`
	HostMaxLen   int           `mapstructure:"host_max_len"`
}

type FlowConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Rules converts the room limits into the domain's validation rules.
func (c *Config) Rules() domain.Rules {
	return domain.Rules{
		Maps:         c.Rooms.Maps,
		Modes:        c.Rooms.Modes,
		HostMaxLen:   c.Rooms.HostMaxLen,
		CodeLength:   c.Rooms.CodeLength,
		CodeAlphabet: c.Rooms.CodeAlphabet,
	}
}

func (c *Config) ExtendPolicy() core.ExtendPolicy {
	if c.Rooms.ExtendPolicy == string(core.ExtendReset) {
		return core.ExtendReset
	}
	return core.ExtendAdd
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("rooms.maps", []string{"The Skeld", "MIRA HQ", "Polus", "The Airship", "Fungle"})
	v.SetDefault("rooms.modes", []string{"Classic", "Hide and Seek", "Many Roles", "Mods", "Bug Room"})
	v.SetDefault("rooms.default_ttl", "5h")
	v.SetDefault("rooms.extend_by", "1h")
	v.SetDefault("rooms.extend_policy", "add")
	v.SetDefault("rooms.one_per_owner", false)
	v.SetDefault("rooms.code_length", 6)
	v.SetDefault("rooms.code_alphabet", "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	v.SetDefault("rooms.host_max_len", 25)
	v.SetDefault("flow.idle_ttl", "10m")
	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.path", "rooms.json")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
