package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"phishing-detector/internal/ai"
	"phishing-detector/internal/api"
)

func main() {
	_ = godotenv.Load()

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	aiCfg := ai.Config{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Model:   os.Getenv("GEMINI_MODEL"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
	}
	if temp := os.Getenv("GEMINI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			aiCfg.Temperature = v
		}
	}
	if maxTokens := os.Getenv("GEMINI_MAX_TOKENS"); maxTokens != "" {
		if v, err := strconv.Atoi(maxTokens); err == nil {
			aiCfg.MaxTokens = v
		}
	}
	if rpm := os.Getenv("GEMINI_RPM"); rpm != "" {
		if v, err := strconv.Atoi(rpm); err == nil {
			aiCfg.RequestsPerMinute = v
		}
	}

	openAICfg := ai.OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}

	disableAI := false
	if v := strings.TrimSpace(os.Getenv("DISABLE_AI")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			disableAI = parsed
		}
	}

	cfg := api.Config{
		DBPath: filepath.Join(dataDir, "analyses.db"),
		AllowedOrigins: []string{
			"http://localhost:8000",
			"http://localhost:3000",
			"https://mail.google.com",
		},
		AIConfig:     aiCfg,
		OpenAIConfig: openAICfg,
		DisableAI:    disableAI,
	}

	if override := strings.TrimSpace(os.Getenv("PHISHING_DB_PATH")); override != "" {
		cfg.DBPath = override
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	logrus.Infof("starting phishing-detector backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
