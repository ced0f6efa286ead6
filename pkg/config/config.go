package config

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	CompletionsAPIURL string
	CompletionsAPIKey string
	CompletionsModel  string
	VisionModel       string
	DBPath            string
	OutputPath        string
	NotesDirPath      string
	ScreenshotsDir    string
	MboxPath          string
	FirefliesAPIKey   string
	FirefliesAPIURL   string
	HTTPPort          string
	NatsURL           string
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		logger.Info("Env", "key", key, "value", value)
	}
	if value == "" {
		return defaultValue
	}
	return value
}

func LoadConfig(printEnv bool) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		CompletionsAPIURL: getEnv("COMPLETIONS_API_URL", "https://api.openai.com/v1", printEnv),
		CompletionsAPIKey: getEnv("COMPLETIONS_API_KEY", "", printEnv),
		CompletionsModel:  getEnv("COMPLETIONS_MODEL", "gpt-4.1-mini", printEnv),
		VisionModel:       getEnv("VISION_MODEL", "gpt-4.1-mini", printEnv),
		DBPath:            getEnv("DB_PATH", "./output/sqlite/mindloom.db", printEnv),
		OutputPath:        getEnv("OUTPUT_PATH", "./output", printEnv),
		NotesDirPath:      getEnv("NOTES_DIR", "", printEnv),
		ScreenshotsDir:    getEnv("SCREENSHOTS_DIR", "", printEnv),
		MboxPath:          getEnv("MBOX_PATH", "", printEnv),
		FirefliesAPIKey:   getEnv("FIREFLIES_API_KEY", "", printEnv),
		FirefliesAPIURL:   getEnv("FIREFLIES_API_URL", "https://api.fireflies.ai/graphql", printEnv),
		HTTPPort:          getEnv("HTTP_PORT", "44777", printEnv),
		NatsURL:           getEnv("NATS_URL", "", printEnv),
	}

	if conf.ScreenshotsDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			conf.ScreenshotsDir = filepath.Join(home, "Desktop", "screenshots")
		}
	}

	return conf, nil
}
