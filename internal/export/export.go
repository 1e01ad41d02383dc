// Package export renders reservation reports as Excel workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"riad/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetOccupancy    = "Occupancy"
	sheetReservations = "Reservations"
	sheetPayments     = "Payments"
)

// Source is the read side of the store the report is built from.
type Source interface {
	GetRooms(ctx context.Context) ([]*models.Room, error)
	GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	GetPaymentEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*models.PaymentEntry, error)
}

type Exporter struct {
	source Source
	dir    string
	logger *zerolog.Logger
}

func NewExporter(source Source, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, dir: dir, logger: logger}
}

// Write builds the workbook for [start, end] and streams it to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, start, end time.Time) error {
	f, err := e.build(ctx, start, end)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// ExportToFile saves the workbook under the export directory and returns its path.
func (e *Exporter) ExportToFile(ctx context.Context, start, end time.Time) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.build(ctx, start, end)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("reservations_%s_to_%s.xlsx", start.Format(models.DateLayout), end.Format(models.DateLayout))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) build(ctx context.Context, start, end time.Time) (*excelize.File, error) {
	start, end = models.DateOf(start), models.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("export range end %s is before start %s", end.Format(models.DateLayout), start.Format(models.DateLayout))
	}

	rooms, err := e.source.GetRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting rooms: %w", err)
	}
	reservations, err := e.source.GetReservationsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("error getting reservations: %w", err)
	}
	payments, err := e.source.GetPaymentEntriesByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("error getting payments: %w", err)
	}

	f := excelize.NewFile()
	for _, name := range []string{sheetOccupancy, sheetReservations, sheetPayments} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating sheet: %w", err)
		}
	}
	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	roomNumbers := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		roomNumbers[r.ID] = r.Number
	}

	writeOccupancy(f, start, end, rooms, reservations)
	writeReservations(f, reservations, payments, roomNumbers)
	writePayments(f, payments)

	if idx, err := f.GetSheetIndex(sheetOccupancy); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// writeOccupancy draws a room by date grid; a cell holds the reservation
// occupying that night.
func writeOccupancy(f *excelize.File, start, end time.Time, rooms []*models.Room, reservations []*models.Reservation) {
	_ = f.SetCellValue(sheetOccupancy, "A1", fmt.Sprintf("Period: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	roomStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	styles := statusStyles(f)

	dateCols := make(map[string]int)
	col := 2
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetOccupancy, cell, d.Format("02.01"))
		_ = f.SetCellStyle(sheetOccupancy, cell, cell, headerStyle)
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}

	rowOf := make(map[int64]int, len(rooms))
	for i, room := range rooms {
		row := i + 3
		rowOf[room.ID] = row
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetOccupancy, cell, fmt.Sprintf("%s (%s, %d)", room.Number, room.TypeName, room.Capacity))
		_ = f.SetCellStyle(sheetOccupancy, cell, cell, roomStyle)
	}

	for _, res := range reservations {
		if !res.IsActive() {
			continue
		}
		row, ok := rowOf[res.RoomID]
		if !ok {
			continue
		}
		for d := res.CheckIn; d.Before(res.CheckOut); d = d.AddDate(0, 0, 1) {
			col, ok := dateCols[d.Format(models.DateLayout)]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetOccupancy, cell, fmt.Sprintf("#%d", res.ID))
			if style, ok := styles[res.Status]; ok {
				_ = f.SetCellStyle(sheetOccupancy, cell, cell, style)
			}
		}
	}

	_ = f.SetColWidth(sheetOccupancy, "A", "A", 28)
	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	if len(dateCols) > 0 {
		_ = f.SetColWidth(sheetOccupancy, "B", lastCol, 9)
	}
	_ = f.MergeCell(sheetOccupancy, "A1", lastCol+"1")
}

func writeReservations(f *excelize.File, reservations []*models.Reservation, payments []*models.PaymentEntry, roomNumbers map[int64]string) {
	headers := []interface{}{"ID", "Room", "Customer", "Check-in", "Check-out", "Nights", "Status", "Total", "Paid", "Balance", "Cancel reason"}
	_ = f.SetSheetRow(sheetReservations, "A1", &headers)

	paid := make(map[int64]int64)
	for _, p := range payments {
		if p.CountsAsPaid() {
			paid[p.ReservationID] += p.Amount
		}
	}

	for i, res := range reservations {
		balance := res.TotalPrice - paid[res.ID]
		if balance < 0 || res.Status == models.StatusCancelled {
			balance = 0
		}
		row := []interface{}{
			res.ID,
			roomNumbers[res.RoomID],
			res.CustomerID,
			res.CheckIn.Format(models.DateLayout),
			res.CheckOut.Format(models.DateLayout),
			res.Range().Nights(),
			res.Status,
			res.TotalPrice,
			paid[res.ID],
			balance,
			res.CancelReason,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheetReservations, cell, &row)
	}
	_ = f.SetColWidth(sheetReservations, "A", "K", 14)
}

func writePayments(f *excelize.File, payments []*models.PaymentEntry) {
	headers := []interface{}{"ID", "Reservation", "Kind", "Amount", "Recorded at"}
	_ = f.SetSheetRow(sheetPayments, "A1", &headers)

	for i, p := range payments {
		row := []interface{}{p.ID, p.ReservationID, p.Kind, p.Amount, p.CreatedAt.Format("2006-01-02 15:04")}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheetPayments, cell, &row)
	}
	_ = f.SetColWidth(sheetPayments, "A", "E", 16)
}

func statusStyles(f *excelize.File) map[string]int {
	colors := map[string]string{
		models.StatusReservation: "#FFF2CC",
		models.StatusCheckedIn:   "#C6EFCE",
		models.StatusCheckedOut:  "#D9D9D9",
	}
	styles := make(map[string]int, len(colors))
	for status, color := range colors {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err == nil {
			styles[status] = style
		}
	}
	return styles
}
