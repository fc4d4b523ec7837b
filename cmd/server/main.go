package main

import (
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	mux := http.NewServeMux()
	handlers.NewHandler(service).Routes(mux)

	mux.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting poseshaemost server on %s", service.Config.Server.Port)
	logger.Debug.Printf("Edit window %s, time zone %s", service.Config.EditWindow(), service.Config.Location())
	if service.Config.Server.Debug {
		logger.Info.Println("Debug mode: test_date query parameter overrides today")
	}
	if err := http.ListenAndServe(service.Config.Server.Port, handlers.Middleware(mux)); err != nil {
		logger.Error.Fatalf("Poseshaemost server failed: %v", err)
	}
}
