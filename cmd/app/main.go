package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"PhantomEx/internal/di"
	"PhantomEx/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Local overrides (OLLAMA_HOST, PHANTOMEX_DB, ...) from .env if present
	_ = godotenv.Load()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s market=%s oracle=%s", cfg.Environment, cfg.Market.Mode, cfg.Oracle.BaseURL)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
