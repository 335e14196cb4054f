// Package export renders MEL alerts as downloadable spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/engclin/melwatch/internal/database"
)

const (
	summarySheet = "Summary"
	alertsSheet  = "Alerts"
	timeLayout   = "2006-01-02 15:04:05"
)

var alertColumns = []string{
	"UUID", "Sector", "Group Key", "Group", "Minimum", "Available", "Shortfall", "Status", "Opened", "Updated", "Resolved",
}

// BuildAlertsXLSX writes a workbook with a summary sheet and one row per alert
func BuildAlertsXLSX(alerts []database.MelAlert, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(alertsSheet); err != nil {
		return nil, fmt.Errorf("failed to add alerts sheet: %w", err)
	}

	active := 0
	sectors := make(map[string]struct{})
	for _, a := range alerts {
		if a.IsActive() {
			active++
			sectors[a.SectorID] = struct{}{}
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "MEL Alerts")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(timeLayout))
	_ = f.SetCellValue(summarySheet, "A4", "Alerts")
	_ = f.SetCellValue(summarySheet, "B4", len(alerts))
	_ = f.SetCellValue(summarySheet, "A5", "Active")
	_ = f.SetCellValue(summarySheet, "B5", active)
	_ = f.SetCellValue(summarySheet, "A6", "Sectors in breach")
	_ = f.SetCellValue(summarySheet, "B6", len(sectors))

	for i, title := range alertColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(alertsSheet, cell, title)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(alertColumns), 1)
		_ = f.SetCellStyle(alertsSheet, "A1", last, style)
	}

	for i, a := range alerts {
		row := i + 2
		shortfall := a.MinimumQuantity - a.CurrentAvailable
		if shortfall < 0 {
			shortfall = 0
		}
		resolved := ""
		if a.ResolvedAt != nil {
			resolved = a.ResolvedAt.UTC().Format(timeLayout)
		}
		values := []any{
			a.UUID,
			a.SectorID,
			a.EquipmentGroupKey,
			a.EquipmentGroupName,
			a.MinimumQuantity,
			a.CurrentAvailable,
			shortfall,
			string(a.Status),
			a.CreatedAt.UTC().Format(timeLayout),
			a.UpdatedAt.UTC().Format(timeLayout),
			resolved,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(alertsSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write alert row %d: %w", row, err)
		}
	}
	_ = f.SetColWidth(alertsSheet, "A", "A", 38)
	_ = f.SetColWidth(alertsSheet, "D", "D", 28)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
