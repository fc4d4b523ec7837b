package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/calendar"
)

// StartScheduler registers the sheet pushes and the xlsx drop from config and
// starts them. Jobs skip days off.
func StartScheduler(config *app.Config, s Store, cal *calendar.Calendar) (*gocron.Scheduler, error) {
	ctx := context.Background()
	scheduler := gocron.NewScheduler(config.Location())

	for _, cfg := range config.Export.GSheet {
		exporter, err := NewGSheetExporter(ctx, cfg, s)
		if err != nil {
			return nil, err
		}

		_, err = scheduler.Cron(cfg.Schedule).Do(func() {
			today := cal.Today()
			if !cal.IsSchoolDay(today) {
				return
			}
			if err := exporter.Export(ctx, today); err != nil {
				logger.Error.Printf("Export to sheet %s failed: %v", cfg.SheetName, err)
				return
			}
			logger.Info.Printf("Exported %s to sheet %s", today.Format(time.DateOnly), cfg.SheetName)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule export: %w", err)
		}
	}

	if config.Export.Dir != "" && config.Export.Schedule != "" {
		_, err := scheduler.Cron(config.Export.Schedule).Do(func() {
			today := cal.Today()
			if !cal.IsSchoolDay(today) {
				return
			}
			path, err := WriteDailyFile(ctx, s, config.Export.Dir, today)
			if err != nil {
				logger.Error.Printf("Daily xlsx export failed: %v", err)
				return
			}
			logger.Info.Printf("Saved daily export to %s", path)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule xlsx export: %w", err)
		}
	}

	scheduler.StartAsync()
	return scheduler, nil
}

// WriteDailyFile saves the day's xlsx into dir and returns its path.
func WriteDailyFile(ctx context.Context, s Store, dir string, day time.Time) (string, error) {
	rows, err := BuildDailyRows(ctx, s, day)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(dir, FileName(day, "xlsx"))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteXLSX(f, day, rows); err != nil {
		return "", err
	}
	return path, f.Close()
}
