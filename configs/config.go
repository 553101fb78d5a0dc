package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Port                  string
	Environment           string
	APIKey                string
	OpenAIEndpoint        string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAITranscribeModel string
	FollowUpTokenLimit    int
	SummaryTokenLimit     int
	RecordStorePath       string
	PromptConfigPath      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8080"),
		Environment:           getEnv("ENVIRONMENT", "development"),
		APIKey:                getEnv("API_KEY", ""),
		OpenAIEndpoint:        getEnv("OPENAI_ENDPOINT", "https://api.openai.com"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		FollowUpTokenLimit:    getEnvInt("FOLLOWUP_TOKEN_LIMIT", 500),
		SummaryTokenLimit:     getEnvInt("SUMMARY_TOKEN_LIMIT", 1500),
		RecordStorePath:       getEnv("RECORD_STORE_PATH", "data/records.xlsx"),
		PromptConfigPath:      getEnv("PROMPT_CONFIG_PATH", ""),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
