// Package export renders sessions as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	ResultsSheet   = "Results"
	DashboardSheet = "Dashboard"
)

// ContentType is the media type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteSession writes a workbook with one row per roster athlete holding
// every catalog field, followed by a sheet with the session dashboard.
func WriteSession(w io.Writer, s model.Session, athletes map[string]model.Athlete, d aggregation.Dashboard) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeResults(f, s, athletes, bold); err != nil {
		return err
	}
	if _, err := f.NewSheet(DashboardSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", DashboardSheet, err)
	}
	if err := writeDashboard(f, d, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeResults(f *excelize.File, s model.Session, athletes map[string]model.Athlete, style int) error {
	fields := schema.Fields()
	header := make([]interface{}, 0, len(fields)+2)
	header = append(header, "Athlete ID", "Name")
	for _, field := range fields {
		header = append(header, field)
	}
	if err := setRow(f, ResultsSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(ResultsSheet, 1, 1, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, id := range s.DistinctRoster() {
		name := id
		if a, ok := athletes[id]; ok {
			name = a.DisplayName()
		}
		row := make([]interface{}, 0, len(fields)+2)
		row = append(row, id, name)
		rec := s.Tests[id]
		for _, field := range fields {
			if v, ok := rec.Value(field); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		if err := setRow(f, ResultsSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(ResultsSheet, "A", "B", 24)
}

func writeDashboard(f *excelize.File, d aggregation.Dashboard, style int) error {
	header := []interface{}{"Test", "Label", "Unit", "Average", "Participants", "Rank", "Athlete ID", "Name", "Value"}
	if err := setRow(f, DashboardSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(DashboardSheet, 1, 1, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	n := 2
	for _, sum := range d.Tests {
		var avg interface{}
		if sum.Average != nil {
			avg = *sum.Average
		}
		base := []interface{}{sum.Test, sum.Label, sum.Unit, avg, sum.Participants}
		if len(sum.Top) == 0 {
			if err := setRow(f, DashboardSheet, n, base); err != nil {
				return err
			}
			n++
			continue
		}
		for _, e := range sum.Top {
			row := append(append([]interface{}{}, base...), e.Rank, e.AthleteID, e.Name, e.Value)
			if err := setRow(f, DashboardSheet, n, row); err != nil {
				return err
			}
			n++
		}
	}
	return f.SetColWidth(DashboardSheet, "B", "B", 32)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
