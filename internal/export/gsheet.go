package export

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
)

// GSheetExporter overwrites one sheet tab with the daily table.
type GSheetExporter struct {
	store         Store
	cfg           app.GSheetConfig
	sheetsService *sheets.Service
}

func NewGSheetExporter(ctx context.Context, cfg app.GSheetConfig, s Store) (*GSheetExporter, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GSheetExporter{
		store:         s,
		cfg:           cfg,
		sheetsService: svc,
	}, nil
}

// SheetValues lays out the header, one line per class and an update stamp.
func SheetValues(day time.Time, rows []Row, updatedAt time.Time) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+2)

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	values = append(values, header)

	for _, row := range rows {
		line := make([]interface{}, len(row.Cells))
		for i, c := range row.Cells {
			line[i] = c
		}
		values = append(values, line)
	}

	stamp := fmt.Sprintf("%s, UPD: %s", day.Format("02.01.2006"), updatedAt.Format("2 January 15:04"))
	return append(values, []interface{}{stamp})
}

func (e *GSheetExporter) Export(ctx context.Context, day time.Time) error {
	rows, err := BuildDailyRows(ctx, e.store, day)
	if err != nil {
		return err
	}

	sheetRange := e.cfg.SheetName
	_, err = e.sheetsService.Spreadsheets.Values.Clear(e.cfg.SheetID, sheetRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", sheetRange, err)
	}

	updateRange := fmt.Sprintf("%s!A1", e.cfg.SheetName)
	_, err = e.sheetsService.Spreadsheets.Values.Update(e.cfg.SheetID, updateRange,
		&sheets.ValueRange{Values: SheetValues(day, rows, time.Now())}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update sheet %s: %w", sheetRange, err)
	}
	return nil
}
