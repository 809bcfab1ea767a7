package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kdev47/stakehouse/go/internal/models"
)

// Config is the optional YAML configuration. Everything has a default; the
// file only overrides.
type Config struct {
	Casino struct {
		EnabledGames []string `yaml:"enabled_games"`
		ClientSeed   string   `yaml:"client_seed"`
		NumWorkers   int      `yaml:"num_workers"`
		BatchSize    int32    `yaml:"batch_size"`
	} `yaml:"casino"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// gameTypes maps the config's game names onto the model enum, rejecting
// unknown entries rather than silently skipping them.
func gameTypes(names []string) ([]models.GameType, error) {
	games := make([]models.GameType, 0, len(names))
	for _, name := range names {
		switch name {
		case "roulette":
			games = append(games, models.GameTypeRoulette)
		case "crash":
			games = append(games, models.GameTypeCrash)
		default:
			return nil, fmt.Errorf("unknown game %q in config", name)
		}
	}
	return games, nil
}
