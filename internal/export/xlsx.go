package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	okFill   = "C6EFCE"
	missFill = "FFC7CE"
)

var (
	columnWidths = []float64{12, 10, 10, 38, 8, 38, 10, 38, 10, 38, 42}
	// name lists wrap, counts do not
	wrapColumns = map[int]bool{4: true, 6: true, 8: true, 10: true, 11: true}
)

// WriteXLSX writes the daily table as a single sheet named after the date.
// Rows with data are green, missing classes are red.
func WriteXLSX(w io.Writer, day time.Time, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := day.Format("02.01.2006")
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	styles := map[bool]map[bool]int{}
	for _, hasData := range []bool{true, false} {
		styles[hasData] = map[bool]int{}
		color := missFill
		if hasData {
			color = okFill
		}
		for _, wrap := range []bool{true, false} {
			id, err := f.NewStyle(&excelize.Style{
				Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
				Alignment: &excelize.Alignment{WrapText: wrap, Vertical: "top"},
			})
			if err != nil {
				return fmt.Errorf("failed to create row style: %w", err)
			}
			styles[hasData][wrap] = id
		}
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		rowNum := i + 2
		for col, value := range row.Cells {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
			if err := f.SetCellStyle(sheet, cell, cell, styles[row.HasData][wrapColumns[col+1]]); err != nil {
				return err
			}
		}
	}

	for i, width := range columnWidths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
