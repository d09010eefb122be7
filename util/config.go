package util

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server settings, loaded from the environment (a .env
// file is honored when present).
type Config struct {
	Port        string `validate:"required,number"`
	TokenSecret string `validate:"required,len=32"`

	MapWidth         int     `validate:"min=1"`
	MapHeight        int     `validate:"min=1"`
	WaterProbability float64 `validate:"min=0,max=1"`
	NumCoins         int     `validate:"min=0"`
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	config := &Config{
		Port:             getEnv("PORT", "8765"),
		TokenSecret:      os.Getenv("TOKEN_SECRET"),
		MapWidth:         10,
		MapHeight:        10,
		WaterProbability: 0.2,
		NumCoins:         5,
	}

	var err error
	if config.MapWidth, err = getEnvInt("MAP_WIDTH", config.MapWidth); err != nil {
		return nil, err
	}
	if config.MapHeight, err = getEnvInt("MAP_HEIGHT", config.MapHeight); err != nil {
		return nil, err
	}
	if config.NumCoins, err = getEnvInt("NUM_COINS", config.NumCoins); err != nil {
		return nil, err
	}
	if config.WaterProbability, err = getEnvFloat("WATER_PROBABILITY", config.WaterProbability); err != nil {
		return nil, err
	}

	if err := Validate.Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
