package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/export"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	scheduler, err := export.StartScheduler(service.Config, service.Store, service.Calendar)
	if err != nil {
		logger.Error.Fatalf("Failed to start export scheduler: %v", err)
	}

	logger.Info.Printf("Садимся экспортить, заданий: %d", len(scheduler.Jobs()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	scheduler.Stop()
	logger.Info.Println("Закончили экспортить")
}
