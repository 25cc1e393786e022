package export

import (
	"fmt"
	"io"

	"clothingrental/internal/availability"
	"clothingrental/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{"Booking ID", "Product Code", "Product", "Customer", "Email", "Phone", "From", "To", "Days", "Status", "Total", "Created At"}

// BookingsWorkbook builds a workbook with one row per booking. The caller
// closes the returned file.
func BookingsWorkbook(details []models.BookingDetails) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	styles := statusStyles(f)
	for i, d := range details {
		row := i + 2
		values := rowValues(d)
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		if style, ok := styles[d.Status]; ok {
			cell := fmt.Sprintf("J%d", row)
			_ = f.SetCellStyle(sheetName, cell, cell, style)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 36)
	_ = f.SetColWidth(sheetName, "B", "L", 18)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

// WriteBookings streams the workbook as XLSX to w.
func WriteBookings(w io.Writer, details []models.BookingDetails) error {
	f, err := BookingsWorkbook(details)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func rowValues(d models.BookingDetails) []interface{} {
	days := availability.Nights(d.FromDate, d.ToDate)
	code, name := "", "(deleted)"
	var total float64
	if d.Item != nil {
		code, name = d.Item.Code, d.Item.Name
		total = float64(days) * d.Item.DailyPrice
	}
	return []interface{}{
		d.ID,
		code,
		name,
		d.CustomerName,
		d.CustomerEmail,
		d.CustomerPhone,
		availability.FormatDate(d.FromDate),
		availability.FormatDate(d.ToDate),
		days,
		string(d.Status),
		total,
		d.CreatedAt.Format("2006-01-02 15:04"),
	}
}

func statusStyles(f *excelize.File) map[models.BookingStatus]int {
	colors := map[models.BookingStatus]string{
		models.BookingActive:    "#E2EFDA",
		models.BookingCompleted: "#EDEDED",
		models.BookingCancelled: "#FCE4D6",
	}
	styles := make(map[models.BookingStatus]int, len(colors))
	for status, color := range colors {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err == nil {
			styles[status] = style
		}
	}
	return styles
}
