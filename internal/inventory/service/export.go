package service

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const alertsSheet = "Caducidades"

var alertsHeader = []string{
	"Producto", "Ubicación", "Lote", "Cantidad", "Unidad",
	"Caduca", "Días", "Estado", "Regla (días)", "Creada",
}

// WriteAlertsXLSX writes alerts as a spreadsheet, one row per alert
func WriteAlertsXLSX(w io.Writer, alerts []ExpiryAlert) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", alertsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range alertsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(alertsSheet, cell, h)
	}

	for i, a := range alerts {
		row := i + 2
		values := []interface{}{
			a.ProductName,
			deref(a.LocationName),
			deref(a.LotCode),
			a.Qty.InexactFloat64(),
			a.Unit,
			"",
			"",
			string(a.ExpiryCategory),
			a.DaysBefore,
			a.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if a.ExpiresAt != nil {
			values[5] = a.ExpiresAt.UTC().Format("2006-01-02")
		}
		if a.DaysUntil != nil {
			values[6] = *a.DaysUntil
		}

		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(alertsSheet, cell, v)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}
