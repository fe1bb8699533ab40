package booking

import (
	"github.com/xuri/excelize/v2"
)

const exportMaxRows = 5000

var exportColumns = []string{
	"Reference", "Date", "Patient", "Mobile", "Service", "Status", "Booked At",
}

// BuildWorkbook renders appointments into a single-sheet workbook for
// the admin export download.
func BuildWorkbook(items []Appointment) (*excelize.File, error) {
	book := excelize.NewFile()
	const sheet = "Appointments"
	book.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := book.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
	}
	if style, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = book.SetCellStyle(sheet, start, end, style)
	}

	for rowIdx, appt := range items {
		row := []interface{}{
			appt.Reference,
			appt.AppointmentDate,
			appt.FullName,
			appt.Mobile,
			appt.Service,
			appt.Status,
			appt.CreatedAt.Format("2006-01-02 15:04"),
		}
		for colIdx, val := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := book.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	return book, nil
}
