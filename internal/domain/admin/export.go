package admin

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Appointments"

var exportHeaders = []string{
	"Appointment ID", "Date (UTC)", "Type", "Status", "Patient", "Patient Email", "Doctor", "Notes", "Requested At (UTC)",
}

var exportWidths = []float64{38, 20, 18, 12, 24, 30, 24, 40, 20}

// writeWorkbook renders rows as an XLSX workbook with a frozen, filterable
// header row.
func writeWorkbook(w io.Writer, rows []*ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(exportHeaders))
	if err := f.SetCellStyle(exportSheet, "A1", last+"1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, width := range exportWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		values := []interface{}{
			r.ID.String(),
			r.AppointmentDate.UTC().Format(time.DateTime),
			r.AppointmentType,
			r.Status,
			r.PatientName,
			r.PatientEmail,
			r.DoctorName,
			notes,
			r.CreatedAt.UTC().Format(time.DateTime),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.AutoFilter(exportSheet, fmt.Sprintf("A1:%s%d", last, len(rows)+1), nil); err != nil {
		return fmt.Errorf("auto filter: %w", err)
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
