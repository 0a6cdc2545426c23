package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"holodeck/assets"
	"holodeck/config"
	"holodeck/logging"
)

func main() {
	cfg := config.LoadServer()

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	if _, err := assets.RegisterRoutes(context.Background(), r, cfg, logger); err != nil {
		logger.Fatal("register asset routes", "error", err)
	}

	logger.Info("asset store listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("start server", "error", err)
	}
}
