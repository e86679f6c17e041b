package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"simpkl/internal/availability"
	"simpkl/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const scheduleSheet = "Jadwal"

// Exporter renders occupancy schedules to xlsx: one row per resource
// group, one column per day, cell text listing the bookings that occupy
// that day.
type Exporter struct {
	path   string
	logger zerolog.Logger
}

func NewExporter(path string, logger *zerolog.Logger) *Exporter {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "export").Logger()
	}
	return &Exporter{path: path, logger: l}
}

// BuildSchedule builds the schedule workbook for [start, end] inclusive.
// daily is keyed by YYYY-MM-DD and already has multi-day bookings
// expanded onto each day they occupy.
func (e *Exporter) BuildSchedule(
	start, end time.Time,
	groups []models.ResourceGroup,
	daily map[string][]*models.Booking,
	quotas availability.QuotaTable,
) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Periode: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))

	dateCols := e.writeDateHeaders(f, start, end)
	e.writeGroupHeaders(f, groups, quotas)
	e.writeOccupancy(f, groups, daily, quotas, dateCols)

	_ = f.SetColWidth(scheduleSheet, "A", "A", 28)
	if len(dateCols) > 0 {
		firstCol, _ := excelize.ColumnNumberToName(2)
		lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
		_ = f.SetColWidth(scheduleSheet, firstCol, lastCol, 22)
		_ = f.MergeCell(scheduleSheet, "A1", lastCol+"1")
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(scheduleSheet, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	return f, nil
}

// SaveSchedule writes the schedule workbook under the export directory
// and returns the file path.
func (e *Exporter) SaveSchedule(
	start, end time.Time,
	groups []models.ResourceGroup,
	daily map[string][]*models.Booking,
	quotas availability.QuotaTable,
) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := e.BuildSchedule(start, end, groups, daily, quotas)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("jadwal_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save export file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("schedule export created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, start, end time.Time) map[string]int {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	col := 2
	dateCols := make(map[string]int)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheet, cell, day.Format("02.01"))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
		dateCols[availability.DayKey(day)] = col
		col++
	}
	return dateCols
}

func (e *Exporter) writeGroupHeaders(f *excelize.File, groups []models.ResourceGroup, quotas availability.QuotaTable) {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	for i, group := range groups {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%s (%d)", group.Name, quotas.For(group.Name)))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
	}
}

func (e *Exporter) writeOccupancy(
	f *excelize.File,
	groups []models.ResourceGroup,
	daily map[string][]*models.Booking,
	quotas availability.QuotaTable,
	dateCols map[string]int,
) {
	for dateKey, bookings := range daily {
		col, ok := dateCols[dateKey]
		if !ok {
			continue
		}

		byGroup := make(map[string][]*models.Booking)
		for _, booking := range bookings {
			byGroup[booking.ResourceGroup] = append(byGroup[booking.ResourceGroup], booking)
		}

		for i, group := range groups {
			cell, _ := excelize.CoordinatesToCellName(col, i+3)
			quota := quotas.For(group.Name)
			groupBookings := byGroup[group.Name]

			_ = f.SetCellValue(scheduleSheet, cell, cellText(groupBookings, quota))
			if styleID, err := cellStyle(f, groupBookings, quota); err == nil {
				_ = f.SetCellStyle(scheduleSheet, cell, cell, styleID)
			}
		}
	}
}

func cellText(bookings []*models.Booking, quota int) string {
	active := activeBookings(bookings)
	if len(active) == 0 {
		return fmt.Sprintf("Kosong\n%d/%d", 0, quota)
	}

	var text string
	for _, booking := range active {
		text += fmt.Sprintf("%s %s\n", statusIcon(booking.Status), booking.ApplicantName)
	}
	text += fmt.Sprintf("\nTerisi: %d/%d", approvedCount(active), quota)
	return text
}

// cellStyle picks the fill by pressure on the quota: red when the day
// is full, yellow when undecided submissions exist, green when every
// occupant is approved, plain when empty.
func cellStyle(f *excelize.File, bookings []*models.Booking, quota int) (int, error) {
	active := activeBookings(bookings)

	color := "#FFFFFF"
	switch {
	case len(active) == 0:
	case approvedCount(active) >= quota:
		color = "#FFC7CE"
	case hasPending(active):
		color = "#FFEB9C"
	default:
		color = "#C6EFCE"
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}

func statusIcon(status string) string {
	switch status {
	case models.StatusApproved:
		return "✅"
	case models.StatusPending:
		return "⏳"
	case models.StatusRejected:
		return "❌"
	default:
		return "❓"
	}
}

func activeBookings(bookings []*models.Booking) []*models.Booking {
	var active []*models.Booking
	for _, booking := range bookings {
		if booking.Status != models.StatusRejected {
			active = append(active, booking)
		}
	}
	return active
}

func approvedCount(bookings []*models.Booking) int {
	n := 0
	for _, booking := range bookings {
		if booking.Status == models.StatusApproved {
			n++
		}
	}
	return n
}

func hasPending(bookings []*models.Booking) bool {
	for _, booking := range bookings {
		if booking.Status == models.StatusPending {
			return true
		}
	}
	return false
}
