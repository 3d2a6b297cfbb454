package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"chathub/internal/api"
	"chathub/internal/auth"
	"chathub/internal/config"
	"chathub/internal/service/ai"
	"chathub/internal/service/chat"
	"chathub/internal/service/store"
	"chathub/internal/storage"
)

func main() {
	configPath := os.Getenv("CHATHUB_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("load config failed")
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("open database failed")
	}
	defer db.Close()

	if err := storage.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate database failed")
	}

	ctx := context.Background()
	st := store.NewService(db)
	if err := st.SeedDefaults(ctx); err != nil {
		log.WithError(err).Fatal("seed defaults failed")
	}

	authService := auth.NewService(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)

	aiClient, err := ai.NewClient(ctx, cfg.Completion)
	if err != nil {
		log.WithError(err).Fatal("init completion client failed")
	}
	if aiClient.Mode() == ai.ModeMock {
		log.Warn("no completion API key configured, running in mock mode")
	}

	chatService := chat.NewService(st, aiClient)

	router := gin.Default()
	handler := api.NewHandler(st, chatService, authService)
	handler.RegisterRoutes(router)

	log.WithField("address", cfg.Server.Address).Info("starting server")
	if err := router.Run(cfg.Server.Address); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
