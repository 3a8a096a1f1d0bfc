// Package export renders stored alerts as spreadsheets for offline review.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// AlertSheet is the name of the worksheet holding the alerts.
const AlertSheet = "Alerts"

// AlertHeader lists the exported columns in order.
var AlertHeader = []string{
	"Alert ID",
	"Device ID",
	"Alert Type",
	"Severity",
	"Measured Value",
	"Message",
	"Created At",
	"Resolved",
	"Resolved At",
	"Resolved By",
	"Resolution",
}

var alertColumnWidths = []float64{10, 14, 16, 10, 15, 60, 22, 10, 22, 16, 12}

// WriteAlerts writes alerts as an xlsx workbook to w. Times are rendered
// in loc, UTC when loc is nil.
func WriteAlerts(w io.Writer, alerts []entities.Alert, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AlertSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(AlertSheet, "A1", &AlertHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(AlertHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(AlertSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range alertColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(AlertSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i := range alerts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := alertRow(&alerts[i], loc)
		if err := f.SetSheetRow(AlertSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write alert %d: %w", alerts[i].ID, err)
		}
	}

	if err := f.AutoFilter(AlertSheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("failed to add filter: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func alertRow(a *entities.Alert, loc *time.Location) []any {
	row := make([]any, len(AlertHeader))
	row[0] = a.ID
	row[1] = a.DeviceID
	row[2] = a.AlertType
	row[3] = a.Severity
	if a.MeasuredValue != nil {
		row[4] = *a.MeasuredValue
	}
	row[5] = a.Message
	row[6] = formatTime(a.CreatedAt, loc)
	row[7] = "No"
	if a.IsResolved {
		row[7] = "Yes"
	}
	if a.ResolvedAt != nil {
		row[8] = formatTime(*a.ResolvedAt, loc)
	}
	if a.ResolvedBy != nil {
		row[9] = *a.ResolvedBy
	}
	if a.Resolution != nil {
		row[10] = *a.Resolution
	}
	return row
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateTime)
}
