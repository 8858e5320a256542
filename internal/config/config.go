package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/brensch/camava/internal/providers"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the camava configuration file.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Search   SearchConfig   `yaml:"search"`
	Watch    WatchConfig    `yaml:"watch"`
	DBPath   string         `yaml:"db_path" validate:"required"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// ProviderConfig names the Camava portal to search.
type ProviderConfig struct {
	Name              string `yaml:"name" validate:"required"`
	BaseURL           string `yaml:"base_url" validate:"required,url"`
	ParkName          string `yaml:"park_name" validate:"required"`
	DefaultFacilityID int    `yaml:"default_facility_id" validate:"gt=0"`
	StateCode         string `yaml:"state_code" validate:"omitempty,len=2"`
}

type SearchConfig struct {
	Facilities        []int   `yaml:"facilities" validate:"dive,gt=0"`
	Nights            int     `yaml:"nights" validate:"min=1,max=14"`
	HorizonDays       int     `yaml:"horizon_days" validate:"min=1,max=365"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule" validate:"required"`
	Timezone string `yaml:"timezone" validate:"required"`
}

// DiscordConfig is optional; without a token notifications go to the log.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id" validate:"required_with=Token"`
}

// Default returns the configuration for Santa Barbara County Parks.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Name:              "santabarbara",
			BaseURL:           providers.SantaBarbaraBaseURL,
			ParkName:          providers.SantaBarbaraParkName,
			DefaultFacilityID: 2,
			StateCode:         "CA",
		},
		Search: SearchConfig{
			Nights:            1,
			HorizonDays:       14,
			RequestsPerSecond: 0.5,
		},
		Watch: WatchConfig{
			Schedule: "*/15 * * * *",
			Timezone: "America/Los_Angeles",
		},
		DBPath: "./camava.duckdb",
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("DISCORD_TOKEN"); ok && v != "" {
		c.Discord.Token = v
	}
	if v, ok := lookup("DISCORD_CHANNEL_ID"); ok && v != "" {
		c.Discord.ChannelID = v
	}
	if v, ok := lookup("CAMAVA_BASE_URL"); ok && v != "" {
		c.Provider.BaseURL = v
	}
	if v, ok := lookup("CAMAVA_FACILITY_ID"); ok && v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAMAVA_FACILITY_ID: %w", err)
		}
		c.Provider.DefaultFacilityID = id
	}
	return nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Watch.Timezone); err != nil {
		return fmt.Errorf("invalid config: watch.timezone: %w", err)
	}
	return nil
}

// Location is the watch timezone. Validate has already checked it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Watch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) CamavaConfig() providers.CamavaConfig {
	return providers.CamavaConfig{
		Name:              c.Provider.Name,
		BaseURL:           c.Provider.BaseURL,
		ParkName:          c.Provider.ParkName,
		DefaultFacilityID: c.Provider.DefaultFacilityID,
		StateCode:         c.Provider.StateCode,
	}
}
